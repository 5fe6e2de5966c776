package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrKeyExpired indicates the mirror API key's exp claim is in the past
	ErrKeyExpired = errors.New("mirror api key has expired")
)

// KeyInfo is what can be learned from a Supabase API key without verifying it
type KeyInfo struct {
	Role      string    // anon, service_role, ...
	Ref       string    // project ref, when present
	ExpiresAt time.Time // zero when the key carries no exp
	Opaque    bool      // key is not a JWT (newer publishable/secret keys)
}

// IsAnon reports whether the key only grants anonymous access
func (k KeyInfo) IsAnon() bool {
	return k.Role == "anon"
}

// InspectAPIKey decodes the claims of a JWT-shaped API key without checking its
// signature; only the project can verify it. Non-JWT keys are reported as opaque.
func InspectAPIKey(key string, now time.Time) (KeyInfo, error) {
	if key == "" {
		return KeyInfo{}, errors.New("mirror api key is empty")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return KeyInfo{Opaque: true}, nil
		}
		return KeyInfo{}, fmt.Errorf("inspect mirror api key: %w", err)
	}

	info := KeyInfo{}
	info.Role, _ = claims["role"].(string)
	info.Ref, _ = claims["ref"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
		if !exp.Time.After(now) {
			return info, fmt.Errorf("%w at %s", ErrKeyExpired, exp.Time.UTC().Format(time.RFC3339))
		}
	}
	return info, nil
}
