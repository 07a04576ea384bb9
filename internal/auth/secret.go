package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashBootstrapSecret hashes the admin bootstrap secret using bcrypt. The
// hash is what gets deployed (HIP_ADMIN_SECRET_HASH), never the plaintext.
func HashBootstrapSecret(secret string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyBootstrapSecret compares a presented secret with the stored hash.
func VerifyBootstrapSecret(hash, secret string) error {
	if hash == "" {
		return errors.New("secret hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
}
