package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	insurance "github.com/goliatone/go-insurance"
)

type policies struct {
	db *bun.DB
	s  settings
}

// NewPolicies returns the bun backed policy store
func NewPolicies(db *bun.DB, opts ...Option) insurance.Policies {
	return &policies{db: db, s: newSettings(opts)}
}

func (r *policies) GetByID(ctx context.Context, id uuid.UUID) (*insurance.Policy, error) {
	record := new(insurance.Policy)
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

func (r *policies) NumberExists(ctx context.Context, number string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*insurance.Policy)(nil)).
		Where("policy_number = ?", number).
		Exists(ctx)
	if err != nil {
		return false, Classify(err, r.s.logger)
	}
	return exists, nil
}

func (r *policies) List(ctx context.Context, filter insurance.PolicyFilter) ([]*insurance.Policy, error) {
	records := make([]*insurance.Policy, 0)
	q := r.db.NewSelect().Model(&records)
	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.PayerProgram != "" {
		q = q.Where("payer_program = ?", filter.PayerProgram)
	}
	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return records, nil
}

func (r *policies) Create(ctx context.Context, record *insurance.Policy) (*insurance.Policy, error) {
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

func (r *policies) Update(ctx context.Context, record *insurance.Policy, columns ...string) (*insurance.Policy, error) {
	record.UpdatedAt = r.s.now().UTC()
	if err := updateColumns(ctx, r.db, record, columns); err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return r.GetByID(ctx, record.ID)
}
