package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uchat/internal/domain"
)

type ChatRepo struct {
	db *sql.DB
	d  Dialect
}

func NewChatRepo(db *sql.DB, d Dialect) *ChatRepo {
	return &ChatRepo{db: db, d: d}
}

var _ domain.ChatRepository = (*ChatRepo)(nil)

// CreatePrivate inserts a private chat for the pair with both members. The
// UNIQUE pair_key column makes a concurrent duplicate fail with
// domain.ErrConflict instead of producing a second chat.
func (r *ChatRepo) CreatePrivate(ctx context.Context, userA, userB int64) (*domain.Chat, error) {
	key := domain.PairKey(userA, userB)
	c := &domain.Chat{
		Type:    domain.ChatPrivate,
		PairKey: &key,
	}
	if err := r.create(ctx, c, []int64{userA, userB}); err != nil {
		if r.d.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create private chat %s: %w", key, domain.ErrConflict)
		}
		return nil, err
	}
	return c, nil
}

func (r *ChatRepo) CreateGroup(ctx context.Context, name string, memberIDs []int64) (*domain.Chat, error) {
	c := &domain.Chat{
		Type: domain.ChatGroup,
		Name: &name,
	}
	if err := r.create(ctx, c, memberIDs); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChatRepo) create(ctx context.Context, c *domain.Chat, memberIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	c.CreatedAt = time.Now().UTC()
	err = tx.QueryRowContext(ctx, r.d.Rebind(`
		INSERT INTO chats (type, name, pair_key, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), string(c.Type), c.Name, c.PairKey, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}

	insertMember := r.d.Rebind(`
		INSERT INTO chat_members (chat_id, user_id, status)
		VALUES (?, ?, ?)
	`)
	for _, uid := range memberIDs {
		if _, err := tx.ExecContext(ctx, insertMember, c.ID, uid, domain.MemberStatus); err != nil {
			return fmt.Errorf("insert chat member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindPrivate returns the private chat of the pair, or nil when none exists.
func (r *ChatRepo) FindPrivate(ctx context.Context, userA, userB int64) (*domain.Chat, error) {
	query := r.d.Rebind(`
		SELECT id, type, name, pair_key, created_at
		FROM chats
		WHERE pair_key = ? AND type = 'private'
	`)
	c, err := scanChat(r.db.QueryRowContext(ctx, query, domain.PairKey(userA, userB)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find private chat: %w", err)
	}
	return c, nil
}

func (r *ChatRepo) GetByID(ctx context.Context, id int64) (*domain.Chat, error) {
	query := r.d.Rebind(`
		SELECT id, type, name, pair_key, created_at
		FROM chats
		WHERE id = ?
	`)
	c, err := scanChat(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return c, nil
}

func (r *ChatRepo) ListParticipants(ctx context.Context, chatID int64) ([]string, error) {
	query := r.d.Rebind(`
		SELECT u.nickname
		FROM users u
		JOIN chat_members cm ON cm.user_id = u.id
		WHERE cm.chat_id = ?
		ORDER BY u.nickname ASC
	`)
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	res := []string{}
	for rows.Next() {
		var nick string
		if err := rows.Scan(&nick); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		res = append(res, nick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return res, nil
}

func (r *ChatRepo) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, r.d.Rebind(`
		SELECT 1
		FROM chat_members
		WHERE chat_id = ? AND user_id = ?
	`), chatID, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return true, nil
}

func scanChat(row rowScanner) (*domain.Chat, error) {
	c := &domain.Chat{}
	var typ string
	if err := row.Scan(&c.ID, &typ, &c.Name, &c.PairKey, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Type = domain.ChatType(typ)
	return c, nil
}
