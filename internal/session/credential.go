package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrIncomplete is returned when a credential is missing its token or its
// user record. Partial credentials are never persisted.
var ErrIncomplete = errors.New("credential must carry both token and user")

// Credential is the bearer token plus the profile of the logged-in operator.
type Credential struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// Complete reports whether both halves of the credential are present.
func (c Credential) Complete() bool {
	user := bytes.TrimSpace(c.User)
	return c.Token != "" && len(user) > 0 && !bytes.Equal(user, []byte("null"))
}

// ExpiresAt reads the exp claim when the token is a JWT. The signature is
// not verified; the server remains the authority on validity.
func (c Credential) ExpiresAt() (time.Time, bool) {
	if c.Token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token carries an exp claim in the past.
func (c Credential) Expired(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	return ok && !now.Before(exp)
}
