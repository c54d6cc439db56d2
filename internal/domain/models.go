package domain

import (
	"strconv"
	"time"
)

// ChatType distinguishes two-party chats from groups.
type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

// MemberStatus is always "member" for now.
const MemberStatus = "member"

// User represents a registered identity. PublicKey never changes after
// registration and the private half is never stored.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Nickname     string    `db:"nickname" json:"nickname"`
	Mail         string    `db:"mail" json:"mail"`
	PasswordHash string    `db:"password_hash" json:"-"`
	PasswordSalt string    `db:"password_salt" json:"-"`
	PublicKey    string    `db:"public_key" json:"public_key"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Chat represents a private or group conversation.
type Chat struct {
	ID        int64     `db:"id"`
	Type      ChatType  `db:"type"`
	Name      *string   `db:"name"`
	PairKey   *string   `db:"pair_key"`
	CreatedAt time.Time `db:"created_at"`
}

// PairKey returns the canonical key of an unordered user pair.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return strconv.FormatInt(a, 10) + "|" + strconv.FormatInt(b, 10)
}

// ChatMember represents the membership of a user in a chat.
type ChatMember struct {
	ChatID int64  `db:"chat_id"`
	UserID int64  `db:"user_id"`
	Status string `db:"status"`
}

// Message is an immutable ciphertext envelope. The server never sees the
// plaintext or the symmetric key.
type Message struct {
	ID         int64     `db:"id"`
	ChatID     int64     `db:"chat_id"`
	SenderID   int64     `db:"sender_id"`
	CipherText string    `db:"cipher_text"`
	IV         string    `db:"iv"`
	SentAt     time.Time `db:"sent_at"`
}

// MessageKey holds the message key wrapped for a single recipient.
type MessageKey struct {
	MessageID   int64  `db:"message_id"`
	RecipientID int64  `db:"recipient_id"`
	WrappedKey  string `db:"wrapped_key"`
}

// HistoryEntry is one message as visible to a specific viewer.
type HistoryEntry struct {
	MessageID      int64     `json:"message_id"`
	ChatID         int64     `json:"chat_id"`
	SenderNickname string    `json:"sender_nickname"`
	CipherText     string    `json:"cipher_text"`
	IV             string    `json:"iv"`
	WrappedKey     string    `json:"wrapped_key"`
	SentAt         time.Time `json:"sent_at"`
}
