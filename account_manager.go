package insurance

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// AccountInput is the registration payload
type AccountInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth"`
}

// Validate checks the profile fields. Role and password carry their own
// typed errors and are checked by CreateAccount.
func (in AccountInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email,
			validation.Required.Error("email is required"),
			is.Email.Error("Invalid email format"),
		),
		validation.Field(&in.FullName,
			validation.Required.Error("full_name is required"),
			validation.Length(1, 200),
		),
		validation.Field(&in.Phone, validation.By(PhoneNumber)),
		validation.Field(&in.DateOfBirth,
			validation.By(CalendarDate("Invalid date_of_birth format. Use YYYY-MM-DD")),
		),
	)
	return validationFailure(err, "email", "full_name", "phone", "date_of_birth")
}

// AccountPatch holds the fields an update may touch. Absent fields are nil.
// Identity and creation fields are not part of the patch and are ignored
// when present in a payload.
type AccountPatch struct {
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	FullName    *string `json:"full_name"`
	Role        *string `json:"role"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	DateOfBirth *string `json:"date_of_birth"`
}

func (p AccountPatch) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Email,
			validation.NilOrNotEmpty.Error("email cannot be blank"),
			is.Email.Error("Invalid email format"),
		),
		validation.Field(&p.FullName,
			validation.NilOrNotEmpty.Error("full_name cannot be blank"),
			validation.Length(1, 200),
		),
		validation.Field(&p.Phone, validation.By(PhoneNumber)),
		validation.Field(&p.DateOfBirth,
			validation.By(CalendarDate("Invalid date_of_birth format. Use YYYY-MM-DD")),
		),
	)
	return validationFailure(err, "email", "full_name", "phone", "date_of_birth")
}

// AccountManager handles registration, profile updates and activation
type AccountManager struct {
	accounts Accounts
	hasher   PasswordHasher
	now      Clock
	logger   Logger
}

// NewAccountManager creates an account manager on top of the account store
func NewAccountManager(accounts Accounts, opts ...Option) *AccountManager {
	s := newSettings(opts)
	return &AccountManager{
		accounts: accounts,
		hasher:   s.hasher,
		now:      s.now,
		logger:   s.logger,
	}
}

func checkPassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// CreateAccount registers a new account and returns it without the digest
func (m *AccountManager) CreateAccount(ctx context.Context, in AccountInput) (*Account, error) {
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	digest, err := m.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	record := &Account{
		Email:        in.Email,
		PasswordHash: digest,
		FullName:     in.FullName,
		Role:         role,
		Phone:        in.Phone,
		Address:      in.Address,
		DateOfBirth:  in.DateOfBirth,
		IsActive:     true,
	}

	created, err := m.accounts.Create(ctx, record)
	if err != nil {
		return nil, m.storeError("create account", err)
	}

	m.logger.Info("account registered", "account_id", created.ID, "role", created.Role)
	return created.Sanitized(), nil
}

// GetByID returns the account without its digest
func (m *AccountManager) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	account, err := m.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, m.lookupError(err)
	}
	return account.Sanitized(), nil
}

// GetByEmail returns the full record including the digest. Only login
// should call it.
func (m *AccountManager) GetByEmail(ctx context.Context, email string) (*Account, error) {
	account, err := m.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, m.lookupError(err)
	}
	return account, nil
}

// ListAll returns every account without digests
func (m *AccountManager) ListAll(ctx context.Context) ([]*Account, error) {
	records, err := m.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Account, 0, len(records))
	for _, r := range records {
		out = append(out, r.Sanitized())
	}
	return out, nil
}

// Update applies patch to account id on behalf of requester. Only the
// account itself or an administrator may update, and only administrators
// may change roles.
func (m *AccountManager) Update(ctx context.Context, id uuid.UUID, patch AccountPatch, requester Principal) (*Account, error) {
	if !requester.IsAdmin() && requester.ID != id {
		return nil, ErrNotProfileOwner
	}

	var role Role
	if patch.Role != nil {
		if !requester.IsAdmin() {
			return nil, ErrRoleChangeForbidden
		}
		r := Role(strings.ToLower(strings.TrimSpace(*patch.Role)))
		if !r.IsValid() {
			return nil, ErrInvalidRole
		}
		role = r
	}

	if patch.Password != nil {
		if err := checkPassword(*patch.Password); err != nil {
			return nil, err
		}
	}

	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := m.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, m.lookupError(err)
	}

	columns := make([]string, 0, 8)
	if patch.Email != nil {
		current.Email = normalizeEmail(*patch.Email)
		columns = append(columns, "email")
	}
	if patch.FullName != nil {
		current.FullName = strings.TrimSpace(*patch.FullName)
		columns = append(columns, "full_name")
	}
	if patch.Phone != nil {
		current.Phone = *patch.Phone
		columns = append(columns, "phone")
	}
	if patch.Address != nil {
		current.Address = *patch.Address
		columns = append(columns, "address")
	}
	if patch.DateOfBirth != nil {
		current.DateOfBirth = *patch.DateOfBirth
		columns = append(columns, "date_of_birth")
	}
	if patch.Role != nil {
		current.Role = role
		columns = append(columns, "role")
	}
	if patch.Password != nil {
		digest, err := m.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, err
		}
		current.PasswordHash = digest
		columns = append(columns, "password_hash")
	}

	if len(columns) == 0 {
		return current.Sanitized(), nil
	}

	updated, err := m.accounts.Update(ctx, current, columns...)
	if err != nil {
		return nil, m.storeError("update account", err)
	}
	return updated.Sanitized(), nil
}

// SetActive toggles the active flag. Callers gate this to administrators.
func (m *AccountManager) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Account, error) {
	current, err := m.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, m.lookupError(err)
	}

	if current.IsActive == active {
		return current.Sanitized(), nil
	}

	current.IsActive = active
	updated, err := m.accounts.Update(ctx, current, "is_active")
	if err != nil {
		return nil, m.storeError("set account activity", err)
	}

	m.logger.Info("account activity changed", "account_id", id, "active", active)
	return updated.Sanitized(), nil
}

func (m *AccountManager) lookupError(err error) error {
	if IsNotFound(err) {
		return ErrUserNotFound
	}
	return err
}

func (m *AccountManager) storeError(op string, err error) error {
	switch {
	case HasTextCode(err, TextCodeStoreConflict):
		return WrapAs(err, ErrDuplicateEmail)
	case IsNotFound(err):
		return ErrUserNotFound
	default:
		m.logger.Error("account store failure", "operation", op, "error", err)
		return err
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
