package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashToken hashes a shared maintenance token with bcrypt
func HashToken(token string, cost int) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token must not be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}

	return string(hash), nil
}

// CompareToken reports whether token matches a bcrypt hash
func CompareToken(token, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
}

// ValidateHash rejects values that are not bcrypt hashes
func ValidateHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("invalid token_hash: %w", err)
	}
	return nil
}
