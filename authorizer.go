package insurance

import (
	"context"
	"strings"

	"github.com/samber/lo"
)

const bearerScheme = "Bearer"

// Principal is the authenticated account attached to a request. It never
// carries the credential digest.
type Principal struct {
	Account
}

// NewPrincipal builds a principal from a loaded account
func NewPrincipal(account *Account) Principal {
	if account == nil {
		return Principal{}
	}
	return Principal{Account: *account.Sanitized()}
}

// IsAdmin reports whether the principal is an administrator
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdministrator
}

// Authorizer resolves bearer tokens into active principals
type Authorizer struct {
	tokens   TokenService
	accounts Accounts
	logger   Logger
}

// AuthorizerOption customizes the authorizer
type AuthorizerOption func(*Authorizer)

// WithAuthorizerLogger overrides the logger
func WithAuthorizerLogger(logger Logger) AuthorizerOption {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthorizer returns an authorizer backed by the given token service and
// account store
func NewAuthorizer(tokens TokenService, accounts Accounts, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		tokens:   tokens,
		accounts: accounts,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// Authenticate turns an Authorization header into a principal. The account
// is always re-read so role and activity reflect the current record rather
// than what the token carried at issuance.
func (a *Authorizer) Authenticate(ctx context.Context, header string) (Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		return Principal{}, err
	}

	claims, err := a.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}

	id, err := claims.AccountID()
	if err != nil {
		return Principal{}, WrapAs(err, ErrTokenInvalid)
	}

	account, err := a.accounts.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return Principal{}, ErrAccountNotFound
		}
		a.logger.Error("authorizer failed to load account", "account_id", id, "error", err)
		return Principal{}, err
	}

	if !account.IsActive {
		return Principal{}, ErrAccountDeactivated
	}

	return NewPrincipal(account), nil
}

// RequireRole fails unless the principal holds one of the allowed roles
func RequireRole(principal Principal, allowed ...Role) error {
	if lo.Contains(allowed, principal.Role) {
		return nil
	}
	return Detailed(ErrInsufficientRole, map[string]any{
		"required": lo.Map(allowed, func(r Role, _ int) string { return string(r) }),
		"actual":   string(principal.Role),
	})
}
