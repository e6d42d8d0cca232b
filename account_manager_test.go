package insurance_test

import (
	"context"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insurance "github.com/goliatone/go-insurance"
)

func TestAccountManager_CreateAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	account, err := f.svc.Accounts.CreateAccount(ctx, insurance.AccountInput{
		Email:       "  Jane@Example.COM ",
		Password:    testPassword,
		FullName:    " Jane Doe ",
		Phone:       "+1 201-555-0123",
		DateOfBirth: "1990-04-12",
	})
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", account.Email)
	assert.Equal(t, "Jane Doe", account.FullName)
	assert.Equal(t, insurance.RolePatient, account.Role)
	assert.True(t, account.IsActive)
	assert.Empty(t, account.PasswordHash)
	assert.True(t, account.CreatedAt.Equal(fixedNow))

	stored, err := f.repos.Accounts().GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, stored.PasswordHash)
	assert.True(t, f.svc.Hasher.Verify(testPassword, stored.PasswordHash))
}

func TestAccountManager_CreateAccountRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "taken@example.com", insurance.RolePatient)

	valid := func() insurance.AccountInput {
		return insurance.AccountInput{Email: "new@example.com", Password: testPassword, FullName: "New"}
	}

	tests := []struct {
		name   string
		mutate func(in *insurance.AccountInput)
		code   string
		status int
	}{
		{"invalid role", func(in *insurance.AccountInput) { in.Role = "superuser" }, insurance.TextCodeInvalidRole, 400},
		{"missing password", func(in *insurance.AccountInput) { in.Password = "" }, insurance.TextCodePasswordRequired, 400},
		{"short password", func(in *insurance.AccountInput) { in.Password = "short" }, insurance.TextCodePasswordTooShort, 400},
		{"missing email", func(in *insurance.AccountInput) { in.Email = "" }, insurance.TextCodeValidation, 400},
		{"bad email", func(in *insurance.AccountInput) { in.Email = "nope" }, insurance.TextCodeValidation, 400},
		{"missing name", func(in *insurance.AccountInput) { in.FullName = "  " }, insurance.TextCodeValidation, 400},
		{"bad phone", func(in *insurance.AccountInput) { in.Phone = "12" }, insurance.TextCodeValidation, 400},
		{"bad birth date", func(in *insurance.AccountInput) { in.DateOfBirth = "12/04/1990" }, insurance.TextCodeValidation, 400},
		{"duplicate email", func(in *insurance.AccountInput) { in.Email = "TAKEN@example.com" }, insurance.TextCodeDuplicateEmail, 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			_, err := f.svc.Accounts.CreateAccount(ctx, in)
			require.Error(t, err)
			assert.True(t, insurance.HasTextCode(err, tt.code), "got %v", err)
			assert.Equal(t, tt.status, insurance.HTTPStatus(err))
		})
	}
}

func TestAccountManager_DuplicateEmailHidesStoreDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "taken@example.com", insurance.RolePatient)

	_, err := f.svc.Accounts.CreateAccount(ctx, insurance.AccountInput{
		Email:    "taken@example.com",
		Password: testPassword,
		FullName: "Second",
	})
	require.Error(t, err)

	var rich *goerrors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, "Email already exists", rich.Message)
	assert.Equal(t, insurance.ErrDuplicateEmail.Category, rich.Category)
	assert.Equal(t, http.StatusConflict, insurance.HTTPStatus(err))
	assert.ErrorIs(t, err, insurance.ErrStoreConflict)
}

func TestAccountManager_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	patient := f.register(t, "patient@example.com", insurance.RolePatient)
	other := f.register(t, "other@example.com", insurance.RolePatient)
	admin := f.register(t, "admin@example.com", insurance.RoleAdministrator)

	t.Run("self update", func(t *testing.T) {
		updated, err := f.svc.Accounts.Update(ctx, patient.ID, insurance.AccountPatch{
			FullName: ptr("Renamed Patient"),
			Address:  ptr("1 Main St"),
		}, f.principal(t, patient))
		require.NoError(t, err)
		assert.Equal(t, "Renamed Patient", updated.FullName)
		assert.Equal(t, "1 Main St", updated.Address)
		assert.Equal(t, "patient@example.com", updated.Email)
	})

	t.Run("other profile", func(t *testing.T) {
		_, err := f.svc.Accounts.Update(ctx, other.ID, insurance.AccountPatch{FullName: ptr("x")}, f.principal(t, patient))
		assert.ErrorIs(t, err, insurance.ErrNotProfileOwner)
		assert.Equal(t, 403, insurance.HTTPStatus(err))
	})

	t.Run("role change needs admin", func(t *testing.T) {
		_, err := f.svc.Accounts.Update(ctx, patient.ID, insurance.AccountPatch{Role: ptr("administrator")}, f.principal(t, patient))
		assert.ErrorIs(t, err, insurance.ErrRoleChangeForbidden)

		updated, err := f.svc.Accounts.Update(ctx, patient.ID, insurance.AccountPatch{Role: ptr("Provider")}, f.principal(t, admin))
		require.NoError(t, err)
		assert.Equal(t, insurance.RoleProvider, updated.Role)

		_, err = f.svc.Accounts.Update(ctx, patient.ID, insurance.AccountPatch{Role: ptr("king")}, f.principal(t, admin))
		assert.ErrorIs(t, err, insurance.ErrInvalidRole)
	})

	t.Run("password change", func(t *testing.T) {
		_, err := f.svc.Accounts.Update(ctx, other.ID, insurance.AccountPatch{Password: ptr("short")}, f.principal(t, other))
		assert.ErrorIs(t, err, insurance.ErrPasswordTooShort)

		_, err = f.svc.Accounts.Update(ctx, other.ID, insurance.AccountPatch{Password: ptr("new-password")}, f.principal(t, other))
		require.NoError(t, err)

		stored, err := f.repos.Accounts().GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.True(t, f.svc.Hasher.Verify("new-password", stored.PasswordHash))
	})

	t.Run("email collision", func(t *testing.T) {
		_, err := f.svc.Accounts.Update(ctx, other.ID, insurance.AccountPatch{Email: ptr("admin@example.com")}, f.principal(t, other))
		assert.True(t, insurance.HasTextCode(err, insurance.TextCodeDuplicateEmail), "got %v", err)
	})

	t.Run("empty patch", func(t *testing.T) {
		same, err := f.svc.Accounts.Update(ctx, other.ID, insurance.AccountPatch{}, f.principal(t, other))
		require.NoError(t, err)
		assert.Equal(t, other.ID, same.ID)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := f.svc.Accounts.Update(ctx, uuid.New(), insurance.AccountPatch{FullName: ptr("x")}, f.principal(t, admin))
		assert.ErrorIs(t, err, insurance.ErrUserNotFound)
	})
}

func TestAccountManager_SetActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	account := f.register(t, "toggle@example.com", insurance.RoleProvider)

	off, err := f.svc.Accounts.SetActive(ctx, account.ID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	again, err := f.svc.Accounts.SetActive(ctx, account.ID, false)
	require.NoError(t, err)
	assert.False(t, again.IsActive)

	on, err := f.svc.Accounts.SetActive(ctx, account.ID, true)
	require.NoError(t, err)
	assert.True(t, on.IsActive)

	_, err = f.svc.Accounts.SetActive(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, insurance.ErrUserNotFound)
}

func TestAccountManager_ListAllHidesDigests(t *testing.T) {
	f := newFixture(t)
	f.register(t, "one@example.com", insurance.RolePatient)
	f.register(t, "two@example.com", insurance.RoleProvider)

	accounts, err := f.svc.Accounts.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, a := range accounts {
		assert.Empty(t, a.PasswordHash)
	}
}
