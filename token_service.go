package insurance

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the token lifetime used when none is configured
const DefaultTokenTTL = 24 * time.Hour

// TokenServiceOption customizes the token service
type TokenServiceOption func(*tokenService)

// WithTokenIssuer sets the iss claim and requires it when parsing
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *tokenService) {
		ts.issuer = issuer
	}
}

// WithTokenTTL sets the default expiry horizon
func WithTokenTTL(ttl time.Duration) TokenServiceOption {
	return func(ts *tokenService) {
		if ttl > 0 {
			ts.ttl = ttl
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests)
func WithTokenClock(clock Clock) TokenServiceOption {
	return func(ts *tokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *tokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

type tokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        Clock
	logger     Logger
}

// NewTokenService creates an HS256 token service
func NewTokenService(signingKey []byte, opts ...TokenServiceOption) TokenService {
	ts := &tokenService{
		signingKey: signingKey,
		ttl:        DefaultTokenTTL,
		now:        time.Now,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}
	return ts
}

func (ts *tokenService) Issue(accountID uuid.UUID, email string, role Role) (string, error) {
	return ts.IssueWithTTL(accountID, email, role, ts.ttl)
}

func (ts *tokenService) IssueWithTTL(accountID uuid.UUID, email string, role Role, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = ts.ttl
	}

	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   accountID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:       accountID.String(),
		Email:     email,
		TokenRole: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Parse validates signature, algorithm and expiry
func (ts *tokenService) Parse(tokenString string) (*TokenClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token service rejected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, WrapAs(err, ErrTokenInvalid)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
