package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	insurance "github.com/goliatone/go-insurance"
)

type accounts struct {
	db *bun.DB
	s  settings
}

// NewAccounts returns the bun backed account store
func NewAccounts(db *bun.DB, opts ...Option) insurance.Accounts {
	return &accounts{db: db, s: newSettings(opts)}
}

func (r *accounts) GetByID(ctx context.Context, id uuid.UUID) (*insurance.Account, error) {
	record := new(insurance.Account)
	err := r.db.NewSelect().
		Model(record).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return record, nil
}

func (r *accounts) GetByEmail(ctx context.Context, email string) (*insurance.Account, error) {
	record := new(insurance.Account)
	err := r.db.NewSelect().
		Model(record).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return record, nil
}

func (r *accounts) List(ctx context.Context) ([]*insurance.Account, error) {
	records := make([]*insurance.Account, 0)
	err := r.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return records, nil
}

func (r *accounts) Create(ctx context.Context, record *insurance.Account) (*insurance.Account, error) {
	now := r.s.now().UTC()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = now
	record.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return r.GetByID(ctx, record.ID)
}

func (r *accounts) Update(ctx context.Context, record *insurance.Account, columns ...string) (*insurance.Account, error) {
	record.UpdatedAt = r.s.now().UTC()
	if err := updateColumns(ctx, r.db, record, columns); err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return r.GetByID(ctx, record.ID)
}
