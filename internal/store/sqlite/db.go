package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Open opens a SQLite database with the given DSN. The pool is limited to a
// single connection: SQLite allows one writer at a time and ":memory:"
// databases are private to the connection that created them.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. All statements are idempotent.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			mail VARCHAR(255) NOT NULL,
			nickname VARCHAR(32) NOT NULL,
			password_hash TEXT NOT NULL,
			password_salt TEXT NOT NULL,
			public_key TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chats (
			id INTEGER PRIMARY KEY,
			type VARCHAR(16) NOT NULL CHECK (type IN ('private', 'group')),
			name VARCHAR(100),
			pair_key VARCHAR(64) UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS chat_members (
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'member',
			PRIMARY KEY (chat_id, user_id),
			FOREIGN KEY (chat_id) REFERENCES chats(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			sender_id INTEGER NOT NULL,
			cipher_text TEXT NOT NULL,
			iv TEXT NOT NULL,
			sent_at DATETIME NOT NULL,
			FOREIGN KEY (chat_id) REFERENCES chats(id),
			FOREIGN KEY (sender_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS message_keys (
			message_id INTEGER NOT NULL,
			recipient_id INTEGER NOT NULL,
			wrapped_key TEXT NOT NULL,
			PRIMARY KEY (message_id, recipient_id),
			FOREIGN KEY (message_id) REFERENCES messages(id),
			FOREIGN KEY (recipient_id) REFERENCES users(id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_mail ON users(LOWER(mail));`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_nickname ON users(LOWER(nickname));`,
		`CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages(chat_id, sent_at, id);`,
		`CREATE INDEX IF NOT EXISTS idx_message_keys_recipient ON message_keys(recipient_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

// Dialect adapts the shared SQL repositories to SQLite.
type Dialect struct{}

// Rebind is a no-op: SQLite understands "?" placeholders.
func (Dialect) Rebind(query string) string { return query }

// IsUniqueViolation reports whether err was raised by a UNIQUE or PRIMARY KEY
// constraint.
func (Dialect) IsUniqueViolation(err error) bool {
	var sqlErr *msqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
