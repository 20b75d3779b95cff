package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Persistent store keys for the two halves of a CredentialPair.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// CredentialPair is the bearer pair held by a session.
//
// Both fields are set together or cleared together; a pair with only one
// half is never adopted.
type CredentialPair struct {
	AccessToken  string
	RefreshToken string
}

// IsZero reports whether neither token is set.
func (p CredentialPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Complete reports whether both tokens are set.
func (p CredentialPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// AccessExpiry returns the exp claim of the access token when it is a JWT.
// The signature is not verified; the value is only a scheduling hint.
func (p CredentialPair) AccessExpiry() (time.Time, bool) {
	return TokenExpiry(p.AccessToken)
}

// TokenExpiry decodes the exp claim of a JWT without verifying it.
// Opaque tokens and JWTs without exp report false.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
