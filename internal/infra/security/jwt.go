package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	ErrKeyUnknown   = errors.New("jwt: key not registered")

	// ErrTokenMalformed covers tokens that do not parse as a JWT at all.
	ErrTokenMalformed = errors.New("jwt: malformed token")
	// ErrTokenSignature covers any signature or algorithm failure. Claims of
	// such tokens are never surfaced to callers.
	ErrTokenSignature = errors.New("jwt: invalid signature")
	// ErrTokenExpired covers tokens whose signature checks out but whose
	// validity window has passed.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// SessionTokenClaims carries account identity and role membership inside a
// signed session token.
type SessionTokenClaims struct {
	Roles     []string `json:"roles,omitempty"`
	AccountID string   `json:"uid"`
	jwt.RegisteredClaims
}

// SessionTokenIssuer signs and verifies stateless session tokens with RS256.
// Verification resolves the public key from the token's kid header, so key
// rotation only requires registering the new key pair.
type SessionTokenIssuer struct {
	provider KeyProvider
	kid      string
	issuer   string
	ttl      time.Duration

	mu         sync.RWMutex
	publicKeys map[string]*rsa.PublicKey
}

// NewSessionTokenIssuer constructs an issuer signing with the key identified
// by kid from the provider.
func NewSessionTokenIssuer(provider KeyProvider, kid, issuer string, ttl time.Duration) (*SessionTokenIssuer, error) {
	if provider == nil {
		return nil, errors.New("jwt: key provider is required")
	}
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}
	if ttl <= 0 {
		return nil, errors.New("jwt: token ttl must be positive")
	}

	it := &SessionTokenIssuer{
		provider:   provider,
		kid:        kid,
		issuer:     issuer,
		ttl:        ttl,
		publicKeys: make(map[string]*rsa.PublicKey),
	}

	for id, key := range provider.VerificationKeys() {
		it.publicKeys[id] = key
	}

	return it, nil
}

// KID returns the key identifier used for signing.
func (it *SessionTokenIssuer) KID() string {
	return it.kid
}

// TTL returns the configured token lifetime.
func (it *SessionTokenIssuer) TTL() time.Duration {
	return it.ttl
}

// Issue builds and signs a session token for the account.
func (it *SessionTokenIssuer) Issue(accountID string, roles []string, now time.Time) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", errors.New("jwt: account id is required")
	}

	now = now.UTC()
	claims := &SessionTokenClaims{
		Roles:     normalizeRoles(roles),
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    it.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(it.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signingKey, err := it.provider.SigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = it.kid

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the token signature and validity window and returns its
// claims. The signature is validated before any claim is read.
func (it *SessionTokenIssuer) Verify(signed string) (*SessionTokenClaims, error) {
	claims := &SessionTokenClaims{}

	_, err := jwt.ParseWithClaims(signed, claims, it.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenSignature
		}
	}

	return claims, nil
}

func (it *SessionTokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	raw, ok := token.Header["kid"]
	if !ok {
		return nil, ErrKeyIDMissing
	}
	kid, ok := raw.(string)
	if !ok || strings.TrimSpace(kid) == "" {
		return nil, ErrKeyIDMissing
	}

	it.mu.RLock()
	key, ok := it.publicKeys[kid]
	it.mu.RUnlock()
	if ok {
		return key, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyUnknown, kid)
}

// RegisterPublicKey adds a verification key, typically during key rotation.
func (it *SessionTokenIssuer) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	it.mu.Lock()
	it.publicKeys[kid] = key
	it.mu.Unlock()
	return nil
}

// JWKS renders the registered verification keys as a JSON Web Key Set.
func (it *SessionTokenIssuer) JWKS() ([]byte, error) {
	it.mu.RLock()
	defer it.mu.RUnlock()

	keys := make([]map[string]string, 0, len(it.publicKeys))
	for kid, key := range it.publicKeys {
		keys = append(keys, map[string]string{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}

	return json.Marshal(map[string]any{"keys": keys})
}

func normalizeRoles(input []string) []string {
	if len(input) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(input))
	result := make([]string, 0, len(input))
	for _, role := range input {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		result = append(result, role)
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
