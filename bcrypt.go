package insurance

import (
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordHash = goerrors.New("failed to hash password", goerrors.CategoryInternal).
	WithTextCode("PASSWORD_HASH_FAILED").
	WithCode(goerrors.CodeInternal)

// PasswordHasher hashes and verifies credentials with bcrypt
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, clamped to the bcrypt range
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return PasswordHasher{cost: cost}
}

// Cost returns the configured work factor
func (h PasswordHasher) Cost() int {
	if h.cost == 0 {
		return passwordHashCost()
	}
	return h.cost
}

// Hash will generate a password hash
func (h PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost())
	if err != nil {
		return "", WrapAs(err, ErrPasswordHash)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. A malformed digest
// never matches.
func (h PasswordHasher) Verify(password, digest string) bool {
	if password == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// HashPassword hashes with the default cost
func HashPassword(password string) (string, error) {
	return PasswordHasher{}.Hash(password)
}

// VerifyPassword compares a cleartext password against a digest
func VerifyPassword(password, digest string) bool {
	return PasswordHasher{}.Verify(password, digest)
}
