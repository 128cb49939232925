package identity

import (
	"fmt"
	"strings"

	"github.com/GehirnInc/crypt/sha256_crypt"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash stored in users_table.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// checkPassword compares password with a stored hash. Rows written by older
// deployments hold sha256_crypt hashes ("$5$rounds=...$salt$sum"); new rows
// hold bcrypt hashes.
func checkPassword(hash, password string) error {
	if strings.HasPrefix(hash, sha256_crypt.MagicPrefix) {
		return sha256_crypt.New().Verify(hash, []byte(password))
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
