package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// userClaim is the claim carrying the username.
const userClaim = "user"

// Tokens issues and verifies HS256 session tokens.
//
// Tokens carry no expiry. A token stays valid until the catalog secret
// changes.
type Tokens struct {
	secret []byte
}

// NewTokens returns a token codec signing with secret.
func NewTokens(secret []byte) *Tokens {
	return &Tokens{secret: secret}
}

// Issue returns a signed token embedding username.
func (t *Tokens) Issue(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{userClaim: username})
	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return s, nil
}

// Verify reports whether the token's signature validates. It never fails
// with an error; the reason for a false result is not exposed.
func (t *Tokens) Verify(tokenString string) bool {
	_, err := t.parse(tokenString)
	return err == nil
}

// UserOf returns the username embedded in a valid token, or "" and false.
// Call Verify first; a username alone does not authorize anything.
func (t *Tokens) UserOf(tokenString string) (string, bool) {
	claims, err := t.parse(tokenString)
	if err != nil {
		return "", false
	}
	user, ok := claims[userClaim].(string)
	if !ok || user == "" {
		return "", false
	}
	return user, true
}

func (t *Tokens) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
