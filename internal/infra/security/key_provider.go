package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyProvider supplies the RSA key material for session token signing.
type KeyProvider interface {
	SigningKey() (*rsa.PrivateKey, error)
	VerificationKeys() map[string]*rsa.PublicKey
}

// FileKeyProvider loads PEM-encoded RSA keys from a directory. Each file name
// (minus extension) becomes the kid. Private keys contribute both a signing
// candidate and their public half; public-only files contribute verification
// keys for rotated-out signers.
type FileKeyProvider struct {
	signingKey *rsa.PrivateKey
	signingKID string
	keys       map[string]*rsa.PublicKey
}

// NewFileKeyProvider reads every key file in dir. At least one private key
// must be present.
func NewFileKeyProvider(dir string) (*FileKeyProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	provider := &FileKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(raw)
		if block == nil {
			return nil, fmt.Errorf("no PEM block in %s", path)
		}

		kid := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		if private := parsePrivateKey(block.Bytes); private != nil {
			if provider.signingKey == nil {
				provider.signingKey = private
				provider.signingKID = kid
			}
			provider.keys[kid] = &private.PublicKey
			continue
		}

		if public := parsePublicKey(block.Bytes); public != nil {
			provider.keys[kid] = public
			continue
		}

		return nil, fmt.Errorf("unsupported key material in %s", path)
	}

	if provider.signingKey == nil {
		return nil, errors.New("no private key found for signing")
	}

	return provider, nil
}

// SigningKID returns the kid of the first private key found.
func (p *FileKeyProvider) SigningKID() string {
	return p.signingKID
}

func (p *FileKeyProvider) SigningKey() (*rsa.PrivateKey, error) {
	return p.signingKey, nil
}

func (p *FileKeyProvider) VerificationKeys() map[string]*rsa.PublicKey {
	out := make(map[string]*rsa.PublicKey, len(p.keys))
	for kid, key := range p.keys {
		out[kid] = key
	}
	return out
}

func parsePrivateKey(der []byte) *rsa.PrivateKey {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey
		}
	}
	return nil
}

func parsePublicKey(der []byte) *rsa.PublicKey {
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey
		}
	}
	return nil
}

// StaticKeyProvider holds an in-memory key pair, used by tests and local
// bootstrap when no key directory is configured.
type StaticKeyProvider struct {
	KID     string
	Private *rsa.PrivateKey
}

func (p *StaticKeyProvider) SigningKey() (*rsa.PrivateKey, error) {
	if p.Private == nil {
		return nil, errors.New("no signing key configured")
	}
	return p.Private, nil
}

func (p *StaticKeyProvider) VerificationKeys() map[string]*rsa.PublicKey {
	if p.Private == nil {
		return nil
	}
	return map[string]*rsa.PublicKey{p.KID: &p.Private.PublicKey}
}
