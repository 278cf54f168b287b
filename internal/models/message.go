package models

import (
	"sort"
	"strings"
	"time"
)

const MessageTypeText = "text"

// Message is a direct message. The body is stored twice, once encrypted for
// each participant; the server never sees plaintext.
type Message struct {
	ID                       string    `bson:"_id" json:"id"`
	SenderID                 string    `bson:"sender_id" json:"sender_id"`
	ReceiverID               string    `bson:"receiver_id" json:"receiver_id"`
	MessageType              string    `bson:"message_type" json:"message_type"`
	MessageSenderEncrypted   string    `bson:"message_sender_encrypted" json:"message_sender_encrypted"`
	MessageReceiverEncrypted string    `bson:"message_receiver_encrypted" json:"message_receiver_encrypted"`
	AttachmentURL            string    `bson:"attachment_url" json:"attachment_url"`
	CreatedAt                time.Time `bson:"created_at" json:"timestamp"`
}

// ChatKey holds the AES key of a conversation, encrypted once with each
// participant's public key. UserIDs is sorted; key 1 belongs to UserIDs[0].
// PairID is the scalar form of UserIDs and carries the unique index.
type ChatKey struct {
	ID               string   `bson:"_id" json:"id"`
	PairID           string   `bson:"pair_id" json:"-"`
	UserIDs          []string `bson:"user_ids" json:"user_ids"`
	EncryptedAESKey1 []byte   `bson:"encrypted_aes_key_1" json:"encrypted_aes_key_1"`
	EncryptedAESKey2 []byte   `bson:"encrypted_aes_key_2" json:"encrypted_aes_key_2"`
}

// GroupMessage wraps a Message posted to a group; ReceiverID is empty.
type GroupMessage struct {
	ID      string  `bson:"_id" json:"id"`
	GroupID string  `bson:"group_id" json:"group_id"`
	Message Message `bson:"message" json:"message"`
}

// ChatPair returns the sorted participants of a conversation and its pair id.
func ChatPair(a, b string) ([]string, string) {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids, strings.Join(ids, ":")
}
