// Package sqlstore implements the domain repositories on database/sql. The
// same queries serve SQLite and PostgreSQL; a Dialect supplies placeholder
// rebinding and constraint error detection.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"uchat/internal/domain"
)

// Dialect captures the differences between supported SQL engines.
type Dialect interface {
	Rebind(query string) string
	IsUniqueViolation(err error) bool
}

// Store bundles the repositories sharing one database handle.
type Store struct {
	Users    *UserRepo
	Chats    *ChatRepo
	Messages *MessageRepo

	db *sql.DB
}

func New(db *sql.DB, d Dialect) *Store {
	return &Store{
		Users:    NewUserRepo(db, d),
		Chats:    NewChatRepo(db, d),
		Messages: NewMessageRepo(db, d),
		db:       db,
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabaseConnection, err)
	}
	return nil
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, with wildcards
// in s escaped.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
