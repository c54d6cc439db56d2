package domain

import (
	"context"
)

// UserRepository defines persistence operations for users. Lookups by mail
// and nickname are case-insensitive. Missing rows yield (nil, nil).
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByMail(ctx context.Context, mail string) (*User, error)
	GetByNickname(ctx context.Context, nickname string) (*User, error)
	GetByNicknames(ctx context.Context, nicknames []string) (map[string]*User, error)
	SearchByNickname(ctx context.Context, query string, limit int) ([]string, error)
}

// ChatRepository defines persistence operations for chats and memberships.
type ChatRepository interface {
	// CreatePrivate inserts the chat and both members atomically. It returns
	// ErrConflict when a private chat for the pair already exists.
	CreatePrivate(ctx context.Context, userA, userB int64) (*Chat, error)
	FindPrivate(ctx context.Context, userA, userB int64) (*Chat, error)
	CreateGroup(ctx context.Context, name string, memberIDs []int64) (*Chat, error)
	GetByID(ctx context.Context, id int64) (*Chat, error)
	ListParticipants(ctx context.Context, chatID int64) ([]string, error)
	IsMember(ctx context.Context, chatID, userID int64) (bool, error)
}

// MessageLedger persists messages together with their per-recipient keys.
type MessageLedger interface {
	// Append stores m and one key row per bundle entry in one transaction.
	// It fails with ErrUnknownRecipient, persisting nothing, when a nickname
	// does not resolve. The returned bundle is keyed by stored nickname.
	Append(ctx context.Context, m *Message, keyBundle map[string]string) (map[string]string, error)
	History(ctx context.Context, chatID, viewerID int64) ([]*HistoryEntry, error)
}
