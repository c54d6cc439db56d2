package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService wraps JWT creation and validation. Tokens carry the nickname
// as subject and the user id as "uid".
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// Claims is the validated content of a session token.
type Claims struct {
	UserID   int64
	Nickname string
}

// CreateForUser creates a JWT for the given user using the default TTL.
func (t *TokenService) CreateForUser(userID int64, nickname string) (string, error) {
	return t.CreateWithTTL(userID, nickname, t.expiresIn)
}

// CreateWithTTL creates a JWT for the given user with an explicit TTL.
func (t *TokenService) CreateWithTTL(userID int64, nickname string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": nickname,
		"uid": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a token and returns its claims.
func (t *TokenService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenMalformed
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("token has no subject")
	}
	// JSON numbers decode as float64.
	uid, ok := mc["uid"].(float64)
	if !ok || uid <= 0 {
		return nil, errors.New("token has no user id")
	}
	return &Claims{UserID: int64(uid), Nickname: sub}, nil
}
