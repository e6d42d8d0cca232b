package insurance

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClaims is the bearer token payload
type TokenClaims struct {
	jwt.RegisteredClaims
	UID       string `json:"user_id"`
	Email     string `json:"email"`
	TokenRole Role   `json:"role"`
}

// UserID returns the account id, falling back to the subject
func (c *TokenClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// AccountID parses the embedded account id
func (c *TokenClaims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID())
}

// Role returns the role at issuance time. Authorization decisions use the
// freshly loaded account instead.
func (c *TokenClaims) Role() Role {
	return c.TokenRole
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issued at time
func (c *TokenClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}
