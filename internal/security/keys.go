package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// DefaultRSABits is the modulus size of issued keypairs.
const DefaultRSABits = 2048

// KeyGenerator issues RSA keypairs for new users. The public key is base64
// PKIX (SubjectPublicKeyInfo) DER, the private key base64 PKCS#8 DER.
type KeyGenerator struct {
	bits int
}

func NewKeyGenerator(bits int) *KeyGenerator {
	if bits == 0 {
		bits = DefaultRSABits
	}
	return &KeyGenerator{bits: bits}
}

func (g *KeyGenerator) GenerateKeypair() (publicKey, privateKey string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, g.bits)
	if err != nil {
		return "", "", fmt.Errorf("generate rsa key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("marshal public key: %w", err)
	}
	priv, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), base64.StdEncoding.EncodeToString(priv), nil
}

// ParsePublicKey decodes a key produced by GenerateKeypair.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	k, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, not RSA", k)
	}
	return pub, nil
}

// ParsePrivateKey decodes a key produced by GenerateKeypair.
func ParsePrivateKey(encoded string) (*rsa.PrivateKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	k, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, not RSA", k)
	}
	return priv, nil
}
