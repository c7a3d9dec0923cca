// Package identity issues and verifies the bearer tokens that bind an HTTP
// caller to an actor address. Tokens are RS256 JWTs signed with a service
// key that is generated on first boot and reused thereafter.
package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	keyFile    = "gatemint.key"
	signerBits = 2048
)

// LoadOrCreateKey loads the service signing key from dir, generating and
// persisting a fresh one if none exists yet.
func LoadOrCreateKey(dir string) (*rsa.PrivateKey, error) {
	path := filepath.Join(dir, keyFile)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		return parseKeyPEM(raw)
	case errors.Is(err, os.ErrNotExist):
		return createKey(dir, path)
	default:
		return nil, fmt.Errorf("read signing key: %w", err)
	}
}

func parseKeyPEM(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("signing key file is not an RSA PRIVATE KEY PEM block")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}

func createKey(dir, path string) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, signerBits)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(path, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return key, nil
}
