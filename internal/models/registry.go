package models

import "reflect"

// Index describes one index of a collection. Keys are ascending.
type Index struct {
	Keys   []string
	Unique bool
}

// DocumentSpec ties a document type to its collection and indexes.
type DocumentSpec struct {
	Name       string
	Collection string
	Type       reflect.Type
	Indexes    []Index
}

func single(keys ...string) []Index {
	out := make([]Index, 0, len(keys))
	for _, k := range keys {
		out = append(out, Index{Keys: []string{k}})
	}
	return out
}

// Documents lists every persisted document type.
var Documents = []DocumentSpec{
	{
		Name: "User", Collection: CollectionUsers, Type: reflect.TypeOf(User{}),
		Indexes: append([]Index{{Keys: []string{"email"}, Unique: true}}, single("created_at")...),
	},
	{
		Name: "Friendship", Collection: CollectionFriendships, Type: reflect.TypeOf(Friendship{}),
		Indexes: single("requester_id", "recipient_id", "status", "created_at"),
	},
	{
		Name: "Group", Collection: CollectionGroups, Type: reflect.TypeOf(Group{}),
		Indexes: single("name", "created_by", "created_at"),
	},
	{
		Name: "GroupMembership", Collection: CollectionGroupMemberships, Type: reflect.TypeOf(GroupMembership{}),
		Indexes: append(single("group_id", "user_id", "role", "joined_at"),
			Index{Keys: []string{"group_id", "user_id"}, Unique: true}),
	},
	{
		Name: "Item", Collection: CollectionItems, Type: reflect.TypeOf(Item{}),
		Indexes: single("seller_id", "category", "status", "price", "created_at"),
	},
	{
		Name: "Transaction", Collection: CollectionTransactions, Type: reflect.TypeOf(Transaction{}),
		Indexes: single("item_id", "buyer_id", "seller_id", "status", "created_at"),
	},
	{
		Name: "Message", Collection: CollectionMessages, Type: reflect.TypeOf(Message{}),
		Indexes: append(single("sender_id", "created_at"),
			Index{Keys: []string{"sender_id", "receiver_id"}}),
	},
	{
		Name: "ChatKey", Collection: CollectionChatKeys, Type: reflect.TypeOf(ChatKey{}),
		Indexes: []Index{{Keys: []string{"pair_id"}, Unique: true}, {Keys: []string{"user_ids"}}},
	},
	{
		Name: "GroupMessage", Collection: CollectionGroupMessages, Type: reflect.TypeOf(GroupMessage{}),
		Indexes: single("group_id", "message.sender_id", "message.created_at"),
	},
	{
		Name: "Session", Collection: CollectionSessions, Type: reflect.TypeOf(Session{}),
		Indexes: []Index{{Keys: []string{"refresh_token"}, Unique: true}},
	},
}
