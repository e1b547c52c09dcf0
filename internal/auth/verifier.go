package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yourusername/maintenance-gate/internal/config"
)

// Verifier decides whether a presented token authorizes the operation.
type Verifier interface {
	Verify(token string) bool
}

// NewVerifier builds the verifier selected by cfg.Mode.
func NewVerifier(cfg config.AuthConfig, operation string) (Verifier, error) {
	switch cfg.Mode {
	case config.AuthModeStatic, "":
		return NewStaticVerifier(cfg.Token), nil
	case config.AuthModeBcrypt:
		if err := ValidateHash(cfg.TokenHash); err != nil {
			return nil, err
		}
		return NewHashVerifier(cfg.TokenHash), nil
	case config.AuthModeJWT:
		return NewJWTVerifier(cfg.JWTSecret, operation), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// StaticVerifier compares against a configured token in constant time
type StaticVerifier struct {
	token []byte
}

func NewStaticVerifier(token string) *StaticVerifier {
	return &StaticVerifier{token: []byte(token)}
}

func (v *StaticVerifier) Verify(token string) bool {
	if len(v.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), v.token) == 1
}

// HashVerifier checks tokens against a bcrypt hash so the secret itself
// never sits in configuration.
type HashVerifier struct {
	hash string
}

func NewHashVerifier(hash string) *HashVerifier {
	return &HashVerifier{hash: hash}
}

func (v *HashVerifier) Verify(token string) bool {
	if token == "" || v.hash == "" {
		return false
	}
	return CompareToken(token, v.hash) == nil
}

// MaintenanceClaims are carried by tokens accepted by JWTVerifier
type MaintenanceClaims struct {
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens whose subject names the operation
type JWTVerifier struct {
	secret    []byte
	operation string
}

func NewJWTVerifier(secret, operation string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), operation: operation}
}

func (v *JWTVerifier) Verify(token string) bool {
	if token == "" || len(v.secret) == 0 {
		return false
	}

	parsed, err := jwt.ParseWithClaims(token, &MaintenanceClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(v.operation),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return false
	}
	return parsed.Valid
}

// Issue signs a token for the operation valid for ttl
func (v *JWTVerifier) Issue(ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &MaintenanceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   v.operation,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
