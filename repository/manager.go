package repository

import (
	"errors"
	"log"

	insurance "github.com/goliatone/go-insurance"
	"github.com/uptrace/bun"
)

type mngr struct {
	accounts insurance.Accounts
	policies insurance.Policies
	claims   insurance.Claims
}

// NewRepositoryManager returns bun backed stores sharing db
func NewRepositoryManager(db *bun.DB, opts ...Option) insurance.RepositoryManager {
	return &mngr{
		accounts: NewAccounts(db, opts...),
		policies: NewPolicies(db, opts...),
		claims:   NewClaims(db, opts...),
	}
}

// NewMemoryManager returns in memory stores, used in tests and the smoke
// runner's self hosted mode
func NewMemoryManager(opts ...Option) insurance.RepositoryManager {
	s := newSettings(opts)
	return &mngr{
		accounts: NewMemoryAccounts(s.now),
		policies: NewMemoryPolicies(s.now),
		claims:   NewMemoryClaims(s.now),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.policies == nil {
		return errors.New("repository policies should be initialized")
	}

	if m.claims == nil {
		return errors.New("repository claims should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) Accounts() insurance.Accounts {
	return m.accounts
}

func (m mngr) Policies() insurance.Policies {
	return m.policies
}

func (m mngr) Claims() insurance.Claims {
	return m.claims
}
