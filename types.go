package insurance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock returns the current time, swapped out in tests
type Clock func() time.Time

// Accounts persists account records in the users table
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Create(ctx context.Context, record *Account) (*Account, error)
	Update(ctx context.Context, record *Account, columns ...string) (*Account, error)
}

// Policies persists policy records
type Policies interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Policy, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	List(ctx context.Context, filter PolicyFilter) ([]*Policy, error)
	Create(ctx context.Context, record *Policy) (*Policy, error)
	Update(ctx context.Context, record *Policy, columns ...string) (*Policy, error)
}

// Claims persists claim records
type Claims interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	List(ctx context.Context, filter ClaimFilter) ([]*Claim, error)
	Create(ctx context.Context, record *Claim) (*Claim, error)
	Update(ctx context.Context, record *Claim, columns ...string) (*Claim, error)
}

// RepositoryManager exposes all record stores
type RepositoryManager interface {
	Validate() error
	MustValidate()
	Accounts() Accounts
	Policies() Policies
	Claims() Claims
}

// PolicyFilter narrows policy listings. Zero values match everything.
type PolicyFilter struct {
	UserID       uuid.UUID
	PayerProgram PayerProgram
}

// ClaimFilter narrows claim listings. Zero values match everything.
type ClaimFilter struct {
	UserID   uuid.UUID
	PolicyID uuid.UUID
}

// AttemptStore counts failed logins per key inside a rolling window
type AttemptStore interface {
	Count(ctx context.Context, key string) (int, error)
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

// TokenService signs and parses bearer tokens
type TokenService interface {
	Issue(accountID uuid.UUID, email string, role Role) (string, error)
	IssueWithTTL(accountID uuid.UUID, email string, role Role, ttl time.Duration) (string, error)
	Parse(token string) (*TokenClaims, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] INSURANCE " + line(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] INSURANCE " + line(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] INSURANCE " + line(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] INSURANCE " + line(format, args...))
}

// line renders key/value pairs after the message
func line(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}
