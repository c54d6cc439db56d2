package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2Params tunes the Argon2id password hash.
type Argon2Params struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   int
}

// DefaultArgon2Params: 64 MiB, 4 passes, 4 lanes, 32-byte key, 16-byte salt.
var DefaultArgon2Params = Argon2Params{
	MemoryKiB: 64 * 1024,
	Time:      4,
	Threads:   4,
	KeyLen:    32,
	SaltLen:   16,
}

// PasswordHasher wraps Argon2id hashing and verification. Hash and salt are
// stored base64 encoded in separate columns.
type PasswordHasher struct {
	p Argon2Params
}

// NewPasswordHasher returns a hasher; zero fields in p fall back to the
// defaults.
func NewPasswordHasher(p Argon2Params) *PasswordHasher {
	d := DefaultArgon2Params
	if p.MemoryKiB == 0 {
		p.MemoryKiB = d.MemoryKiB
	}
	if p.Time == 0 {
		p.Time = d.Time
	}
	if p.Threads == 0 {
		p.Threads = d.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = d.KeyLen
	}
	if p.SaltLen == 0 {
		p.SaltLen = d.SaltLen
	}
	return &PasswordHasher{p: p}
}

func (h *PasswordHasher) Hash(plain string) (hash, salt string, err error) {
	s := make([]byte, h.p.SaltLen)
	if _, err := rand.Read(s); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), s, h.p.Time, h.p.MemoryKiB, h.p.Threads, h.p.KeyLen)
	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(s), nil
}

// Verify recomputes the hash and compares in constant time. Malformed stored
// values never verify.
func (h *PasswordHasher) Verify(plain, hash, salt string) bool {
	want, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}
	s, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(plain), s, h.p.Time, h.p.MemoryKiB, h.p.Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
