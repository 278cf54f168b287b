// Package passwords stores user passwords as "<salt>:<bcrypt(password+salt)>".
package passwords

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const saltBytes = 16

// bcrypt ignores everything after 72 bytes of input; newer x/crypto versions
// reject longer input instead, so it is cut here for both hash and verify.
const maxInput = 72

var cost = bcrypt.DefaultCost

func salted(password, salt string) []byte {
	b := []byte(password + salt)
	if len(b) > maxInput {
		b = b[:maxInput]
	}
	return b
}

// Hash returns the stored form of password with a fresh random salt.
func Hash(password string) (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	salt := hex.EncodeToString(raw)
	h, err := bcrypt.GenerateFromPassword(salted(password, salt), cost)
	if err != nil {
		return "", err
	}
	return salt + ":" + string(h), nil
}

// Verify reports whether password matches stored.
func Verify(password, stored string) bool {
	salt, hash, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), salted(password, salt)) == nil
}
