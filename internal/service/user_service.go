package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"uchat/internal/domain"
)

// PublicKeyNotFound is returned by the singular public key lookup on the
// wire when the nickname does not exist.
const PublicKeyNotFound = "NOT_FOUND"

// SearchLimit bounds SearchUsers results.
const SearchLimit = 10

// UserService provides directory lookups: public keys and nickname search.
type UserService struct {
	users domain.UserRepository
	cache *expirable.LRU[string, cachedKey]
}

type cachedKey struct {
	nickname  string
	publicKey string
}

// KeyCacheOptions sizes the public key cache. Public keys never change, so
// the TTL only bounds memory held for inactive users.
type KeyCacheOptions struct {
	Size int
	TTL  time.Duration
}

func NewUserService(users domain.UserRepository, cacheOpts KeyCacheOptions) *UserService {
	if cacheOpts.Size <= 0 {
		cacheOpts.Size = 1024
	}
	return &UserService{
		users: users,
		cache: expirable.NewLRU[string, cachedKey](cacheOpts.Size, nil, cacheOpts.TTL),
	}
}

// LookupPublicKey returns the public key of nickname and whether it exists.
func (s *UserService) LookupPublicKey(ctx context.Context, nickname string) (string, bool, error) {
	key := strings.ToLower(strings.TrimSpace(nickname))
	if key == "" {
		return "", false, nil
	}
	if ck, ok := s.cache.Get(key); ok {
		return ck.publicKey, true, nil
	}
	user, err := s.users.GetByNickname(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("lookup public key: %w", err)
	}
	if user == nil {
		return "", false, nil
	}
	s.cache.Add(key, cachedKey{nickname: user.Nickname, publicKey: user.PublicKey})
	return user.PublicKey, true, nil
}

// LookupPublicKeys resolves many nicknames at once. The result is keyed by
// stored nickname; unknown names are omitted and empty input yields an empty
// map.
func (s *UserService) LookupPublicKeys(ctx context.Context, nicknames []string) (map[string]string, error) {
	res := make(map[string]string, len(nicknames))
	var misses []string
	for _, n := range nicknames {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "" {
			continue
		}
		if ck, ok := s.cache.Get(key); ok {
			res[ck.nickname] = ck.publicKey
			continue
		}
		misses = append(misses, key)
	}
	if len(misses) == 0 {
		return res, nil
	}

	found, err := s.users.GetByNicknames(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("lookup public keys: %w", err)
	}
	for key, u := range found {
		s.cache.Add(key, cachedKey{nickname: u.Nickname, publicKey: u.PublicKey})
		res[u.Nickname] = u.PublicKey
	}
	return res, nil
}

// SearchUsers returns up to SearchLimit nicknames containing query.
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}
	res, err := s.users.SearchByNickname(ctx, query, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return res, nil
}
