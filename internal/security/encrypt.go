package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// This file is the client-side reference for the message envelope. The server
// never calls Seal or Open; it stores and forwards envelopes as opaque strings.
// Clients and tests use these helpers to produce and read what the server relays.

// Envelope is a message sealed for several recipients: one ciphertext plus
// one wrapped copy of the message key per recipient. It is what clients
// submit to SendSecureMessage.
type Envelope struct {
	CipherText string
	IV         string
	KeyBundle  map[string]string
}

// Seal encrypts plain with a fresh AES-256-GCM key and wraps that key with
// RSA-OAEP(SHA-256) for every recipient.
func Seal(plain []byte, recipients map[string]*rsa.PublicKey) (*Envelope, error) {
	if len(recipients) == 0 {
		return nil, errors.New("no recipients")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate message key: %w", err)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	env := &Envelope{
		CipherText: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, nil)),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		KeyBundle:  make(map[string]string, len(recipients)),
	}
	for nick, pub := range recipients {
		wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, key, nil)
		if err != nil {
			return nil, fmt.Errorf("wrap key for %s: %w", nick, err)
		}
		env.KeyBundle[nick] = base64.StdEncoding.EncodeToString(wrapped)
	}
	return env, nil
}

// Open unwraps wrappedKey with priv and decrypts cipherText.
func Open(cipherText, iv, wrappedKey string, priv *rsa.PrivateKey) ([]byte, error) {
	wk, err := base64.StdEncoding.DecodeString(wrappedKey)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped key: %w", err)
	}
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wk, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap key: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("invalid iv length")
	}
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return aead, nil
}
