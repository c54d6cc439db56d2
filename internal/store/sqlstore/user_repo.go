package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"uchat/internal/domain"
)

const userColumns = `id, mail, nickname, password_hash, password_salt, public_key, created_at`

type UserRepo struct {
	db *sql.DB
	d  Dialect
}

func NewUserRepo(db *sql.DB, d Dialect) *UserRepo {
	return &UserRepo{db: db, d: d}
}

var _ domain.UserRepository = (*UserRepo)(nil)

// Create inserts u and sets its ID. A clash on mail or nickname yields
// domain.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query := r.d.Rebind(`
		INSERT INTO users (mail, nickname, password_hash, password_salt, public_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowContext(ctx, query,
		u.Mail, u.Nickname, u.PasswordHash, u.PasswordSalt, u.PublicKey, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if r.d.IsUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(ctx, query, id)
}

func (r *UserRepo) GetByMail(ctx context.Context, mail string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(mail) = LOWER(?)`
	return r.scanUser(ctx, query, mail)
}

func (r *UserRepo) GetByNickname(ctx context.Context, nickname string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(nickname) = LOWER(?)`
	return r.scanUser(ctx, query, nickname)
}

// GetByNicknames resolves a set of nicknames in one query. The result is
// keyed by the lower-cased nickname; unknown names are absent and empty
// input yields an empty map.
func (r *UserRepo) GetByNicknames(ctx context.Context, nicknames []string) (map[string]*domain.User, error) {
	res := make(map[string]*domain.User, len(nicknames))

	seen := make(map[string]struct{}, len(nicknames))
	args := make([]any, 0, len(nicknames))
	for _, n := range nicknames {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		args = append(args, key)
	}
	if len(args) == 0 {
		return res, nil
	}

	query := r.d.Rebind(`SELECT ` + userColumns + ` FROM users WHERE LOWER(nickname) IN (` + placeholders(len(args)) + `)`)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get users by nickname: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res[strings.ToLower(u.Nickname)] = u
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return res, nil
}

// SearchByNickname returns up to limit nicknames containing query,
// case-insensitively, in ascending order.
func (r *UserRepo) SearchByNickname(ctx context.Context, query string, limit int) ([]string, error) {
	q := r.d.Rebind(`
		SELECT nickname
		FROM users
		WHERE LOWER(nickname) LIKE ? ESCAPE '\'
		ORDER BY nickname ASC
		LIMIT ?
	`)
	rows, err := r.db.QueryContext(ctx, q, containsPattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	res := make([]string, 0, limit)
	for rows.Next() {
		var nick string
		if err := rows.Scan(&nick); err != nil {
			return nil, fmt.Errorf("scan nickname: %w", err)
		}
		res = append(res, nick)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nicknames: %w", err)
	}
	return res, nil
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUserRow(r.db.QueryRowContext(ctx, r.d.Rebind(query), arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	if err := row.Scan(
		&u.ID,
		&u.Mail,
		&u.Nickname,
		&u.PasswordHash,
		&u.PasswordSalt,
		&u.PublicKey,
		&u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return u, nil
}
