package insurance

import (
	"context"
	"math/rand/v2"
	"strings"
)

const (
	PolicyNumberPrefix = "POL"
	ClaimNumberPrefix  = "CLM"

	DefaultNumberDigits   = 10
	DefaultNumberAttempts = 10
)

// NumberGenerator draws human readable identifiers such as POL0123456789.
// Uniqueness is best effort: a drawn number is checked against the store and
// an insert rejected by a uniqueness constraint counts as another collision.
type NumberGenerator struct {
	prefix   string
	digits   int
	attempts int
	digit    func() int
}

// NumberOption customizes a NumberGenerator
type NumberOption func(*NumberGenerator)

// WithNumberDigits sets how many digits follow the prefix
func WithNumberDigits(digits int) NumberOption {
	return func(g *NumberGenerator) {
		if digits > 0 {
			g.digits = digits
		}
	}
}

// WithNumberAttempts bounds how many numbers are drawn before giving up
func WithNumberAttempts(attempts int) NumberOption {
	return func(g *NumberGenerator) {
		if attempts > 0 {
			g.attempts = attempts
		}
	}
}

// WithDigitSource overrides the random digit source. fn must return 0-9.
func WithDigitSource(fn func() int) NumberOption {
	return func(g *NumberGenerator) {
		if fn != nil {
			g.digit = fn
		}
	}
}

// NewNumberGenerator returns a generator for the given prefix
func NewNumberGenerator(prefix string, opts ...NumberOption) *NumberGenerator {
	g := &NumberGenerator{
		prefix:   prefix,
		digits:   DefaultNumberDigits,
		attempts: DefaultNumberAttempts,
		digit:    func() int { return rand.IntN(10) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Prefix returns the configured prefix
func (g *NumberGenerator) Prefix() string { return g.prefix }

// Attempts returns the retry bound
func (g *NumberGenerator) Attempts() int { return g.attempts }

// Next draws a candidate number
func (g *NumberGenerator) Next() string {
	var b strings.Builder
	b.Grow(len(g.prefix) + g.digits)
	b.WriteString(g.prefix)
	for i := 0; i < g.digits; i++ {
		b.WriteByte(byte('0' + g.digit()%10))
	}
	return b.String()
}

// Reserve draws numbers until insert succeeds with one that is not taken.
// exists is consulted first; insert failing with a store conflict is
// retried as well. Other errors abort immediately.
func (g *NumberGenerator) Reserve(
	ctx context.Context,
	exists func(ctx context.Context, number string) (bool, error),
	insert func(ctx context.Context, number string) error,
) error {
	for i := 0; i < g.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		number := g.Next()

		taken, err := exists(ctx, number)
		if err != nil {
			return err
		}
		if taken {
			continue
		}

		err = insert(ctx, number)
		if err == nil {
			return nil
		}
		if HasTextCode(err, TextCodeStoreConflict) {
			continue
		}
		return err
	}

	return Detailed(ErrNumberSpaceExhausted, map[string]any{
		"prefix":   g.prefix,
		"attempts": g.attempts,
	})
}
