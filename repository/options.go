package repository

import (
	"time"

	insurance "github.com/goliatone/go-insurance"
)

// Option configures the stores
type Option func(*settings)

type settings struct {
	now    insurance.Clock
	logger insurance.Logger
}

func newSettings(opts []Option) settings {
	s := settings{
		now:    time.Now,
		logger: insurance.NopLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// WithClock sets the clock used for created_at and updated_at
func WithClock(clock insurance.Clock) Option {
	return func(s *settings) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithLogger sets the logger used for unclassified store failures
func WithLogger(logger insurance.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}
