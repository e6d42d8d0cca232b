package insurance

import (
	"context"
	"time"
)

// DefaultMaxLoginAttempts is the number of failed logins allowed in a window
const DefaultMaxLoginAttempts = 5

// DefaultLoginCooldown is the window in which failed logins are counted
const DefaultLoginCooldown = 15 * time.Minute

const loginAttemptKeyPrefix = "login_attempts:"

// Authenticator verifies credentials and issues tokens
type Authenticator struct {
	accounts    *AccountManager
	tokens      TokenService
	hasher      PasswordHasher
	attempts    AttemptStore
	maxAttempts int
	cooldown    time.Duration
	logger      Logger
}

// AuthenticatorOption customizes the authenticator
type AuthenticatorOption func(*Authenticator)

// WithAttemptStore enables login throttling backed by store
func WithAttemptStore(store AttemptStore, maxAttempts int, cooldown time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		a.attempts = store
		a.maxAttempts = maxAttempts
		if cooldown > 0 {
			a.cooldown = cooldown
		}
	}
}

// WithAuthenticatorLogger overrides the logger
func WithAuthenticatorLogger(logger Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAuthenticatorHasher overrides the hasher used to verify passwords
func WithAuthenticatorHasher(hasher PasswordHasher) AuthenticatorOption {
	return func(a *Authenticator) {
		a.hasher = hasher
	}
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(accounts *AccountManager, tokens TokenService, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		accounts:    accounts,
		tokens:      tokens,
		hasher:      NewPasswordHasher(0),
		maxAttempts: DefaultMaxLoginAttempts,
		cooldown:    DefaultLoginCooldown,
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Login checks the credentials and returns a signed token with the
// principal. Unknown emails and wrong passwords fail the same way.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, Principal, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", Principal{}, NewValidationError("Email and password are required")
	}

	if err := a.checkThrottle(ctx, email); err != nil {
		return "", Principal{}, err
	}

	account, err := a.accounts.GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			a.recordFailure(ctx, email)
			return "", Principal{}, ErrInvalidCredentials
		}
		a.logger.Error("login failed to load account", "error", err)
		return "", Principal{}, err
	}

	if !a.hasher.Verify(password, account.PasswordHash) {
		a.recordFailure(ctx, email)
		return "", Principal{}, ErrInvalidCredentials
	}

	if !account.IsActive {
		return "", Principal{}, ErrAccountDeactivated
	}

	token, err := a.tokens.Issue(account.ID, account.Email, account.Role)
	if err != nil {
		return "", Principal{}, err
	}

	a.resetFailures(ctx, email)
	a.logger.Info("login succeeded", "account_id", account.ID)

	return token, NewPrincipal(account), nil
}

func (a *Authenticator) throttled() bool {
	return a.attempts != nil && a.maxAttempts > 0
}

func (a *Authenticator) checkThrottle(ctx context.Context, email string) error {
	if !a.throttled() {
		return nil
	}

	count, err := a.attempts.Count(ctx, loginAttemptKeyPrefix+email)
	if err != nil {
		a.logger.Warn("login throttle lookup failed", "error", err)
		return nil
	}

	if count >= a.maxAttempts {
		return Detailed(ErrTooManyAttempts, map[string]any{
			"retry_after": a.cooldown.String(),
		})
	}
	return nil
}

func (a *Authenticator) recordFailure(ctx context.Context, email string) {
	if !a.throttled() {
		return
	}
	if _, err := a.attempts.Incr(ctx, loginAttemptKeyPrefix+email, a.cooldown); err != nil {
		a.logger.Warn("login throttle increment failed", "error", err)
	}
}

func (a *Authenticator) resetFailures(ctx context.Context, email string) {
	if !a.throttled() {
		return
	}
	if err := a.attempts.Reset(ctx, loginAttemptKeyPrefix+email); err != nil {
		a.logger.Warn("login throttle reset failed", "error", err)
	}
}
