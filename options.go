package insurance

import "time"

// Option customizes the lifecycle managers
type Option func(*settings)

type settings struct {
	logger        Logger
	now           Clock
	hasher        PasswordHasher
	policyNumbers *NumberGenerator
	claimNumbers  *NumberGenerator
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:        defLogger{},
		now:           time.Now,
		hasher:        NewPasswordHasher(0),
		policyNumbers: NewNumberGenerator(PolicyNumberPrefix),
		claimNumbers:  NewNumberGenerator(ClaimNumberPrefix),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// WithLogger overrides the logger
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a custom clock. "Today" is derived from it on every
// check.
func WithClock(clock Clock) Option {
	return func(s *settings) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithPasswordHasher overrides the credential hasher
func WithPasswordHasher(hasher PasswordHasher) Option {
	return func(s *settings) {
		s.hasher = hasher
	}
}

// WithPolicyNumbers overrides the policy number generator
func WithPolicyNumbers(g *NumberGenerator) Option {
	return func(s *settings) {
		if g != nil {
			s.policyNumbers = g
		}
	}
}

// WithClaimNumbers overrides the claim number generator
func WithClaimNumbers(g *NumberGenerator) Option {
	return func(s *settings) {
		if g != nil {
			s.claimNumbers = g
		}
	}
}
