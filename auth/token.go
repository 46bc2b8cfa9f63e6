package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expired reports whether the token carries an exp claim that has already
// passed. The token is otherwise treated as opaque: the client holds no
// signing secret, so this is an unverified peek used only to skip a dial
// the server is guaranteed to reject. Tokens that do not parse as JWTs,
// or carry no exp claim, are left for the server to judge.
func Expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(now)
}
