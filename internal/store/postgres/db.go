package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             BIGSERIAL    PRIMARY KEY,
			mail           VARCHAR(255) NOT NULL,
			nickname       VARCHAR(32)  NOT NULL,
			password_hash  TEXT         NOT NULL,
			password_salt  TEXT         NOT NULL,
			public_key     TEXT         NOT NULL,
			created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chats (
			id         BIGSERIAL    PRIMARY KEY,
			type       VARCHAR(16)  NOT NULL CHECK (type IN ('private', 'group')),
			name       VARCHAR(100),
			pair_key   VARCHAR(64)  UNIQUE,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_members (
			chat_id  BIGINT      NOT NULL REFERENCES chats(id),
			user_id  BIGINT      NOT NULL REFERENCES users(id),
			status   VARCHAR(16) NOT NULL DEFAULT 'member',
			PRIMARY KEY (chat_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id          BIGSERIAL   PRIMARY KEY,
			chat_id     BIGINT      NOT NULL REFERENCES chats(id),
			sender_id   BIGINT      NOT NULL REFERENCES users(id),
			cipher_text TEXT        NOT NULL,
			iv          TEXT        NOT NULL,
			sent_at     TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS message_keys (
			message_id   BIGINT NOT NULL REFERENCES messages(id),
			recipient_id BIGINT NOT NULL REFERENCES users(id),
			wrapped_key  TEXT   NOT NULL,
			PRIMARY KEY (message_id, recipient_id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_mail ON users (LOWER(mail))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_nickname ON users (LOWER(nickname))`,
		`CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages (chat_id, sent_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_message_keys_recipient ON message_keys (recipient_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Dialect adapts the shared SQL repositories to PostgreSQL.
type Dialect struct{}

// Rebind rewrites "?" placeholders to "$1", "$2", ...
func (Dialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
