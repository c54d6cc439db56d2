package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"uchat/internal/domain"
	"uchat/internal/security"
)

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,32}$`)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(plain string) (hash, salt string, err error)
	Verify(plain, hash, salt string) bool
}

// KeyIssuer generates user keypairs.
type KeyIssuer interface {
	GenerateKeypair() (publicKey, privateKey string, err error)
}

// AuthService registers users and validates credentials.
type AuthService struct {
	users  domain.UserRepository
	hash   Hasher
	keys   KeyIssuer
	tokens *security.TokenService
	log    *zap.Logger

	dummyOnce sync.Once
	dummyHash string
	dummySalt string
}

func NewAuthService(
	users domain.UserRepository,
	hash Hasher,
	keys KeyIssuer,
	tokens *security.TokenService,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		hash:   hash,
		keys:   keys,
		tokens: tokens,
		log:    log.Named("auth"),
	}
}

type RegisterInput struct {
	Mail     string
	Password string
	Nickname string
}

// Registration is the result of a successful Register. PrivateKey is handed
// out exactly once and never persisted.
type Registration struct {
	User       *domain.User
	PrivateKey string
}

// Session is an authenticated identity plus a token that can rebind it.
type Session struct {
	User  *domain.User
	Token string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	in.Mail = strings.TrimSpace(in.Mail)
	in.Nickname = strings.TrimSpace(in.Nickname)
	if err := validateRegister(in); err != nil {
		return nil, err
	}

	if err := s.checkAvailable(ctx, in.Mail, in.Nickname); err != nil {
		return nil, err
	}

	pub, priv, err := s.keys.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	hash, salt, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Mail:         in.Mail,
		Nickname:     in.Nickname,
		PasswordHash: hash,
		PasswordSalt: salt,
		PublicKey:    pub,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race against a concurrent registration; report which field.
		if errors.Is(err, domain.ErrConflict) {
			if cerr := s.checkAvailable(ctx, in.Mail, in.Nickname); cerr != nil {
				return nil, cerr
			}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("nickname", user.Nickname))
	return &Registration{User: user, PrivateKey: priv}, nil
}

func validateRegister(in RegisterInput) error {
	switch {
	case in.Mail == "" || in.Password == "" || in.Nickname == "":
		return fmt.Errorf("mail, password and nickname are required: %w", domain.ErrInvalidInput)
	case len(in.Mail) > 255 || !strings.Contains(in.Mail, "@"):
		return fmt.Errorf("malformed mail: %w", domain.ErrInvalidInput)
	case !nicknamePattern.MatchString(in.Nickname):
		return fmt.Errorf("nickname must be 1-32 letters, digits, '.', '_' or '-': %w", domain.ErrInvalidInput)
	}
	return nil
}

func (s *AuthService) checkAvailable(ctx context.Context, mail, nickname string) error {
	if existing, err := s.users.GetByMail(ctx, mail); err != nil {
		return fmt.Errorf("check mail: %w", err)
	} else if existing != nil {
		return domain.ErrDuplicateMail
	}
	if existing, err := s.users.GetByNickname(ctx, nickname); err != nil {
		return fmt.Errorf("check nickname: %w", err)
	} else if existing != nil {
		return domain.ErrDuplicateNickname
	}
	return nil
}

// Authenticate verifies mail and password. An unknown mail still costs one
// hash verification so both failure paths take comparable time.
func (s *AuthService) Authenticate(ctx context.Context, mail, password string) (*domain.User, error) {
	mail = strings.TrimSpace(mail)
	if mail == "" || password == "" {
		return nil, fmt.Errorf("mail and password are required: %w", domain.ErrInvalidInput)
	}

	user, err := s.users.GetByMail(ctx, mail)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		hash, salt := s.dummyCredentials()
		s.hash.Verify(password, hash, salt)
		return nil, domain.ErrUserNotFound
	}
	if !s.hash.Verify(password, user.PasswordHash, user.PasswordSalt) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) dummyCredentials() (string, string) {
	s.dummyOnce.Do(func() {
		h, salt, err := s.hash.Hash("uchat-dummy-password")
		if err != nil {
			s.log.Warn("dummy hash", zap.Error(err))
			return
		}
		s.dummyHash, s.dummySalt = h, salt
	})
	return s.dummyHash, s.dummySalt
}

// Login authenticates and issues a session token.
func (s *AuthService) Login(ctx context.Context, mail, password string) (*Session, error) {
	user, err := s.Authenticate(ctx, mail, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.CreateForUser(user.ID, user.Nickname)
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

// Resume validates a session token and returns its (still existing) user.
func (s *AuthService) Resume(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("parse token: %v: %w", err, domain.ErrUnauthorized)
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || !strings.EqualFold(user.Nickname, claims.Nickname) {
		return nil, domain.ErrUnauthorized
	}
	return &Session{User: user, Token: token}, nil
}
