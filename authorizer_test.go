package insurance_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insurance "github.com/goliatone/go-insurance"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		code   string
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", ""},
		{"case insensitive scheme", "bearer abc", "abc", ""},
		{"empty", "", "", insurance.TextCodeMissingToken},
		{"blank", "   ", "", insurance.TextCodeMissingToken},
		{"no scheme", "abc.def.ghi", "", insurance.TextCodeMalformedHeader},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "", insurance.TextCodeMalformedHeader},
		{"extra parts", "Bearer a b", "", insurance.TextCodeMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := insurance.BearerToken(tt.header)
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.token, token)
				return
			}
			assert.True(t, insurance.HasTextCode(err, tt.code), "got %v", err)
			assert.Equal(t, 401, insurance.HTTPStatus(err))
		})
	}
}

func TestAuthorizer_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	account := f.register(t, "provider@example.com", insurance.RoleProvider)
	token, err := f.svc.Tokens.Issue(account.ID, account.Email, account.Role)
	require.NoError(t, err)

	principal, err := f.svc.Authorizer.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, principal.ID)
	assert.Equal(t, insurance.RoleProvider, principal.Role)
	assert.Empty(t, principal.PasswordHash)

	t.Run("role is read from the store", func(t *testing.T) {
		admin := f.register(t, "root@example.com", insurance.RoleAdministrator)
		_, err := f.svc.Accounts.Update(ctx, account.ID, insurance.AccountPatch{Role: ptr("patient")}, f.principal(t, admin))
		require.NoError(t, err)

		principal, err := f.svc.Authorizer.Authenticate(ctx, "Bearer "+token)
		require.NoError(t, err)
		assert.Equal(t, insurance.RolePatient, principal.Role)
	})

	t.Run("deactivated account", func(t *testing.T) {
		_, err := f.svc.Accounts.SetActive(ctx, account.ID, false)
		require.NoError(t, err)

		_, err = f.svc.Authorizer.Authenticate(ctx, "Bearer "+token)
		assert.True(t, insurance.HasTextCode(err, insurance.TextCodeAccountDeactivated))
		assert.Equal(t, 403, insurance.HTTPStatus(err))
	})

	t.Run("unknown account", func(t *testing.T) {
		ghost, err := f.svc.Tokens.Issue(uuid.New(), "ghost@example.com", insurance.RolePatient)
		require.NoError(t, err)

		_, err = f.svc.Authorizer.Authenticate(ctx, "Bearer "+ghost)
		assert.True(t, insurance.HasTextCode(err, insurance.TextCodeAccountNotFound))
		assert.Equal(t, 401, insurance.HTTPStatus(err))
	})

	t.Run("missing header", func(t *testing.T) {
		_, err := f.svc.Authorizer.Authenticate(ctx, "")
		assert.True(t, insurance.HasTextCode(err, insurance.TextCodeMissingToken))
	})
}

func TestAuthorizer_BadSubject(t *testing.T) {
	tokens := new(MockTokenService)
	tokens.On("Parse", "opaque").Return(&insurance.TokenClaims{UID: "not-a-uuid"}, nil)

	f := newFixture(t)
	authorizer := insurance.NewAuthorizer(tokens, f.repos.Accounts())

	_, err := authorizer.Authenticate(context.Background(), "Bearer opaque")
	assert.True(t, insurance.HasTextCode(err, insurance.TextCodeTokenInvalid))
	tokens.AssertExpectations(t)
}

func TestRequireRole(t *testing.T) {
	patient := insurance.Principal{Account: insurance.Account{Role: insurance.RolePatient}}
	admin := insurance.Principal{Account: insurance.Account{Role: insurance.RoleAdministrator}}

	assert.NoError(t, insurance.RequireRole(admin, insurance.StaffRoles...))
	assert.NoError(t, insurance.RequireRole(patient, insurance.Roles...))

	err := insurance.RequireRole(patient, insurance.RoleAdministrator, insurance.RoleProvider)
	require.Error(t, err)
	assert.True(t, insurance.HasTextCode(err, insurance.TextCodeInsufficientRole))
	assert.Equal(t, 403, insurance.HTTPStatus(err))

	var rich *goerrors.Error
	require.ErrorAs(t, err, &rich)
	assert.Equal(t, "patient", rich.Metadata["actual"])
	assert.Equal(t, []string{"administrator", "provider"}, rich.Metadata["required"])

	assert.Empty(t, insurance.ErrInsufficientRole.Metadata, "sentinel must stay untouched")
}
