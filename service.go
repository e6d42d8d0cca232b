package insurance

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// ServiceConfig carries everything needed to assemble the API
type ServiceConfig struct {
	SigningKey       []byte
	TokenTTL         time.Duration
	Issuer           string
	BcryptCost       int
	NumberAttempts   int
	Attempts         AttemptStore
	MaxLoginAttempts int
	LoginCooldown    time.Duration
	Exporter         ClaimExporter
	Logger           Logger
	Clock            Clock
}

// Service bundles the managers and middleware built over one store
type Service struct {
	Repos         RepositoryManager
	Tokens        TokenService
	Hasher        PasswordHasher
	Accounts      *AccountManager
	Authenticator *Authenticator
	Authorizer    *Authorizer
	Policies      *PolicyManager
	Claims        *ClaimManager
	Guard         *RouteGuard
	exporter      ClaimExporter
	logger        Logger
	now           Clock
}

// NewService wires token issuance, the role gate and the lifecycle
// managers over repos
func NewService(repos RepositoryManager, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	hasher := NewPasswordHasher(cfg.BcryptCost)

	tokenOpts := []TokenServiceOption{WithTokenClock(now), WithTokenLogger(logger)}
	if cfg.TokenTTL > 0 {
		tokenOpts = append(tokenOpts, WithTokenTTL(cfg.TokenTTL))
	}
	if cfg.Issuer != "" {
		tokenOpts = append(tokenOpts, WithTokenIssuer(cfg.Issuer))
	}
	tokens := NewTokenService(cfg.SigningKey, tokenOpts...)

	opts := []Option{
		WithLogger(logger),
		WithClock(now),
		WithPasswordHasher(hasher),
		WithPolicyNumbers(NewNumberGenerator(PolicyNumberPrefix, WithNumberAttempts(cfg.NumberAttempts))),
		WithClaimNumbers(NewNumberGenerator(ClaimNumberPrefix, WithNumberAttempts(cfg.NumberAttempts))),
	}

	accounts := NewAccountManager(repos.Accounts(), opts...)
	policies := NewPolicyManager(repos.Policies(), repos.Accounts(), opts...)
	claims := NewClaimManager(repos.Claims(), policies, opts...)

	authOpts := []AuthenticatorOption{
		WithAuthenticatorLogger(logger),
		WithAuthenticatorHasher(hasher),
	}
	if cfg.Attempts != nil {
		authOpts = append(authOpts, WithAttemptStore(cfg.Attempts, cfg.MaxLoginAttempts, cfg.LoginCooldown))
	}

	authorizer := NewAuthorizer(tokens, repos.Accounts(), WithAuthorizerLogger(logger))

	return &Service{
		Repos:         repos,
		Tokens:        tokens,
		Hasher:        hasher,
		Accounts:      accounts,
		Authenticator: NewAuthenticator(accounts, tokens, authOpts...),
		Authorizer:    authorizer,
		Policies:      policies,
		Claims:        claims,
		Guard:         NewRouteGuard(authorizer, logger),
		exporter:      cfg.Exporter,
		logger:        logger,
		now:           now,
	}
}

// Mount registers every route on app
func (s *Service) Mount(app fiber.Router) *HTTPController {
	opts := []ControllerOption{
		WithControllerLogger(s.logger),
		WithServices(s.Accounts, s.Authenticator, s.Policies, s.Claims),
		WithRouteGuard(s.Guard),
		WithControllerClock(s.now),
	}
	if s.exporter != nil {
		opts = append(opts, WithClaimExporter(s.exporter))
	}
	return RegisterRoutes(app, opts...)
}
