package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info is what can be read from a token without verifying it.
type Info struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token carries an expiry at or before now.
// Tokens without exp never expire client-side.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Inspect decodes the registered claims of a JWT without checking its
// signature. ok is false for opaque (non-JWT) tokens.
func Inspect(raw string) (Info, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Info{}, false
	}

	info := Info{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	return info, true
}
