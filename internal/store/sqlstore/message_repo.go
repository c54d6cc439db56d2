package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"uchat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
	d  Dialect
}

func NewMessageRepo(db *sql.DB, d Dialect) *MessageRepo {
	return &MessageRepo{db: db, d: d}
}

var _ domain.MessageLedger = (*MessageRepo)(nil)

type recipient struct {
	id       int64
	nickname string
}

// Append persists m and one message_keys row per bundle entry in a single
// transaction. Recipients are resolved inside the transaction, so either the
// message and every key are stored or nothing is.
func (r *MessageRepo) Append(ctx context.Context, m *domain.Message, keyBundle map[string]string) (map[string]string, error) {
	if len(keyBundle) == 0 {
		return nil, fmt.Errorf("empty key bundle: %w", domain.ErrInvalidInput)
	}

	names := make([]string, 0, len(keyBundle))
	for n := range keyBundle {
		names = append(names, n)
	}
	sort.Strings(names)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	resolved, err := r.resolveRecipients(ctx, tx, names)
	if err != nil {
		return nil, err
	}

	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	err = tx.QueryRowContext(ctx, r.d.Rebind(`
		INSERT INTO messages (chat_id, sender_id, cipher_text, iv, sent_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), m.ChatID, m.SenderID, m.CipherText, m.IV, m.SentAt).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	insertKey := r.d.Rebind(`
		INSERT INTO message_keys (message_id, recipient_id, wrapped_key)
		VALUES (?, ?, ?)
	`)
	routed := make(map[string]string, len(names))
	for _, n := range names {
		rcpt := resolved[n]
		if _, err := tx.ExecContext(ctx, insertKey, m.ID, rcpt.id, keyBundle[n]); err != nil {
			return nil, fmt.Errorf("insert message key: %w", err)
		}
		routed[rcpt.nickname] = keyBundle[n]
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return routed, nil
}

// resolveRecipients maps every bundle nickname to its user. Two bundle
// entries naming the same user are rejected.
func (r *MessageRepo) resolveRecipients(ctx context.Context, tx *sql.Tx, names []string) (map[string]recipient, error) {
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = strings.ToLower(n)
	}
	rows, err := tx.QueryContext(ctx, r.d.Rebind(`
		SELECT id, nickname
		FROM users
		WHERE LOWER(nickname) IN (`+placeholders(len(args))+`)
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	defer rows.Close()

	byLower := make(map[string]recipient, len(names))
	for rows.Next() {
		var rc recipient
		if err := rows.Scan(&rc.id, &rc.nickname); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		byLower[strings.ToLower(rc.nickname)] = rc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}

	res := make(map[string]recipient, len(names))
	seen := make(map[int64]string, len(names))
	for _, n := range names {
		rc, ok := byLower[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRecipient, n)
		}
		if prev, dup := seen[rc.id]; dup {
			return nil, fmt.Errorf("%w: %q and %q name the same recipient", domain.ErrInvalidInput, prev, n)
		}
		seen[rc.id] = n
		res[n] = rc
	}
	return res, nil
}

// History returns the messages of chatID that carry a key for viewerID,
// oldest first. Messages without such a key are not returned.
func (r *MessageRepo) History(ctx context.Context, chatID, viewerID int64) ([]*domain.HistoryEntry, error) {
	query := r.d.Rebind(`
		SELECT m.id, m.chat_id, u.nickname, m.cipher_text, m.iv, mk.wrapped_key, m.sent_at
		FROM messages m
		JOIN message_keys mk ON mk.message_id = m.id AND mk.recipient_id = ?
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = ?
		ORDER BY m.sent_at ASC, m.id ASC
	`)
	rows, err := r.db.QueryContext(ctx, query, viewerID, chatID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	res := []*domain.HistoryEntry{}
	for rows.Next() {
		e := &domain.HistoryEntry{}
		if err := rows.Scan(
			&e.MessageID,
			&e.ChatID,
			&e.SenderNickname,
			&e.CipherText,
			&e.IV,
			&e.WrappedKey,
			&e.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return res, nil
}
