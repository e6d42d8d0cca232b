package insurance_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	insurance "github.com/goliatone/go-insurance"
	"github.com/goliatone/go-insurance/repository"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

const testPassword = "password123"

type fixture struct {
	repos    insurance.RepositoryManager
	attempts *repository.MemoryAttempts
	svc      *insurance.Service
}

// newFixture wires the service over memory stores with a fixed clock and
// the cheapest bcrypt cost
func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := insurance.NopLogger()
	repos := repository.NewMemoryManager(repository.WithClock(fixedClock), repository.WithLogger(logger))
	attempts := repository.NewMemoryAttempts(fixedClock)

	svc := insurance.NewService(repos, insurance.ServiceConfig{
		SigningKey:       []byte("test-secret"),
		TokenTTL:         time.Hour,
		Issuer:           "insurance-test",
		BcryptCost:       4,
		Attempts:         attempts,
		MaxLoginAttempts: 3,
		LoginCooldown:    15 * time.Minute,
		Logger:           logger,
		Clock:            fixedClock,
	})

	return &fixture{repos: repos, attempts: attempts, svc: svc}
}

func (f *fixture) register(t *testing.T, email string, role insurance.Role) *insurance.Account {
	t.Helper()
	account, err := f.svc.Accounts.CreateAccount(context.Background(), insurance.AccountInput{
		Email:    email,
		Password: testPassword,
		FullName: "Test " + string(role),
		Role:     string(role),
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) principal(t *testing.T, account *insurance.Account) insurance.Principal {
	t.Helper()
	return insurance.NewPrincipal(account)
}

func policyInput(owner uuid.UUID) insurance.PolicyInput {
	return insurance.PolicyInput{
		UserID:         &owner,
		PolicyType:     "Individual Health",
		CoverageAmount: ptr(50000.0),
		PremiumAmount:  ptr(500.0),
		StartDate:      "2025-01-01",
		EndDate:        "2025-12-31",
	}
}

func (f *fixture) policy(t *testing.T, owner, creator uuid.UUID) *insurance.Policy {
	t.Helper()
	policy, err := f.svc.Policies.Create(context.Background(), policyInput(owner), creator)
	require.NoError(t, err)
	return policy
}

func claimInput(policyID uuid.UUID, amount float64) insurance.ClaimInput {
	return insurance.ClaimInput{
		PolicyID:         &policyID,
		ClaimAmount:      &amount,
		Diagnosis:        "Fractured arm",
		TreatmentDetails: "Cast and follow up",
		ProviderName:     "City Hospital",
		ServiceDate:      "2025-06-01",
	}
}

func (f *fixture) claim(t *testing.T, policyID, owner uuid.UUID, amount float64) *insurance.Claim {
	t.Helper()
	claim, err := f.svc.Claims.Create(context.Background(), claimInput(policyID, amount), owner)
	require.NoError(t, err)
	return claim
}

func ptr[T any](v T) *T { return &v }

// MockAttemptStore implements insurance.AttemptStore
type MockAttemptStore struct {
	mock.Mock
}

func (m *MockAttemptStore) Count(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *MockAttemptStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	args := m.Called(ctx, key, window)
	return args.Int(0), args.Error(1)
}

func (m *MockAttemptStore) Reset(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockTokenService implements insurance.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(accountID uuid.UUID, email string, role insurance.Role) (string, error) {
	args := m.Called(accountID, email, role)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) IssueWithTTL(accountID uuid.UUID, email string, role insurance.Role, ttl time.Duration) (string, error) {
	args := m.Called(accountID, email, role, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Parse(token string) (*insurance.TokenClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*insurance.TokenClaims)
	return claims, args.Error(1)
}
