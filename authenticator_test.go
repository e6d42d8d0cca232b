package insurance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	insurance "github.com/goliatone/go-insurance"
)

func TestAuthenticator_Login(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.register(t, "login@example.com", insurance.RoleProvider)

	token, principal, err := f.svc.Authenticator.Login(ctx, " LOGIN@example.com ", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, account.ID, principal.ID)
	assert.Empty(t, principal.PasswordHash)

	resolved, err := f.svc.Authorizer.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, resolved.ID)
}

func TestAuthenticator_LoginFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.register(t, "user@example.com", insurance.RolePatient)

	t.Run("missing fields", func(t *testing.T) {
		_, _, err := f.svc.Authenticator.Login(ctx, "", testPassword)
		assert.True(t, insurance.HasTextCode(err, insurance.TextCodeValidation))
		assert.Equal(t, 400, insurance.HTTPStatus(err))

		_, _, err = f.svc.Authenticator.Login(ctx, "user@example.com", "")
		assert.True(t, insurance.HasTextCode(err, insurance.TextCodeValidation))
	})

	t.Run("unknown email and wrong password look the same", func(t *testing.T) {
		_, _, unknown := f.svc.Authenticator.Login(ctx, "nobody@example.com", testPassword)
		_, _, wrong := f.svc.Authenticator.Login(ctx, "user@example.com", "wrong-password")

		assert.ErrorIs(t, unknown, insurance.ErrInvalidCredentials)
		assert.ErrorIs(t, wrong, insurance.ErrInvalidCredentials)
		assert.Equal(t, 401, insurance.HTTPStatus(wrong))
	})

	t.Run("deactivated", func(t *testing.T) {
		_, err := f.svc.Accounts.SetActive(ctx, account.ID, false)
		require.NoError(t, err)

		_, _, err = f.svc.Authenticator.Login(ctx, "user@example.com", testPassword)
		assert.ErrorIs(t, err, insurance.ErrAccountDeactivated)
		assert.Equal(t, 403, insurance.HTTPStatus(err))

		_, _, err = f.svc.Authenticator.Login(ctx, "user@example.com", "wrong-password")
		assert.ErrorIs(t, err, insurance.ErrInvalidCredentials, "password is checked before activity")
	})
}

func TestAuthenticator_Throttling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "throttle@example.com", insurance.RolePatient)

	for i := 0; i < 3; i++ {
		_, _, err := f.svc.Authenticator.Login(ctx, "throttle@example.com", "wrong-password")
		assert.ErrorIs(t, err, insurance.ErrInvalidCredentials)
	}

	_, _, err := f.svc.Authenticator.Login(ctx, "throttle@example.com", testPassword)
	require.Error(t, err)
	assert.True(t, insurance.HasTextCode(err, insurance.TextCodeTooManyAttempts))
	assert.Equal(t, 429, insurance.HTTPStatus(err))

	var rich *goerrors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, "15m0s", rich.Metadata["retry_after"])

	count, err := f.attempts.Count(ctx, "login_attempts:throttle@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAuthenticator_SuccessResetsCounter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "reset@example.com", insurance.RolePatient)

	_, _, err := f.svc.Authenticator.Login(ctx, "reset@example.com", "wrong-password")
	require.Error(t, err)

	_, _, err = f.svc.Authenticator.Login(ctx, "reset@example.com", testPassword)
	require.NoError(t, err)

	count, err := f.attempts.Count(ctx, "login_attempts:reset@example.com")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAuthenticator_ThrottleStoreFailsOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "open@example.com", insurance.RolePatient)

	store := new(MockAttemptStore)
	down := errors.New("redis down")
	store.On("Count", mock.Anything, "login_attempts:open@example.com").Return(0, down)
	store.On("Reset", mock.Anything, "login_attempts:open@example.com").Return(down)

	auth := insurance.NewAuthenticator(f.svc.Accounts, f.svc.Tokens,
		insurance.WithAttemptStore(store, 3, time.Minute),
		insurance.WithAuthenticatorHasher(f.svc.Hasher),
		insurance.WithAuthenticatorLogger(insurance.NopLogger()),
	)

	token, _, err := auth.Login(ctx, "open@example.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	store.AssertExpectations(t)
}

func TestAuthenticator_WithoutStoreNeverThrottles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "free@example.com", insurance.RolePatient)

	auth := insurance.NewAuthenticator(f.svc.Accounts, f.svc.Tokens,
		insurance.WithAuthenticatorHasher(f.svc.Hasher),
		insurance.WithAuthenticatorLogger(insurance.NopLogger()),
	)

	for i := 0; i < 10; i++ {
		_, _, err := auth.Login(ctx, "free@example.com", "wrong-password")
		assert.ErrorIs(t, err, insurance.ErrInvalidCredentials)
	}

	_, _, err := auth.Login(ctx, "free@example.com", testPassword)
	assert.NoError(t, err)
}
