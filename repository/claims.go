package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	insurance "github.com/goliatone/go-insurance"
)

type claims struct {
	db *bun.DB
	s  settings
}

// NewClaims returns the bun backed claim store
func NewClaims(db *bun.DB, opts ...Option) insurance.Claims {
	return &claims{db: db, s: newSettings(opts)}
}

func (r *claims) GetByID(ctx context.Context, id uuid.UUID) (*insurance.Claim, error) {
	record := new(insurance.Claim)
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

func (r *claims) NumberExists(ctx context.Context, number string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*insurance.Claim)(nil)).
		Where("claim_number = ?", number).
		Exists(ctx)
	if err != nil {
		return false, Classify(err, r.s.logger)
	}
	return exists, nil
}

func (r *claims) List(ctx context.Context, filter insurance.ClaimFilter) ([]*insurance.Claim, error) {
	records := make([]*insurance.Claim, 0)
	q := r.db.NewSelect().Model(&records)
	if filter.UserID != uuid.Nil {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.PolicyID != uuid.Nil {
		q = q.Where("policy_id = ?", filter.PolicyID)
	}
	if err := q.Order("created_at DESC").Scan(ctx); err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return records, nil
}

func (r *claims) Create(ctx context.Context, record *insurance.Claim) (*insurance.Claim, error) {
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

func (r *claims) Update(ctx context.Context, record *insurance.Claim, columns ...string) (*insurance.Claim, error) {
	record.UpdatedAt = r.s.now().UTC()
	if err := updateColumns(ctx, r.db, record, columns); err != nil {
		return nil, Classify(err, r.s.logger)
	}
	return r.GetByID(ctx, record.ID)
}

// updateColumns writes columns plus updated_at for the row matching the
// model's primary key. No matching row yields sql.ErrNoRows.
func updateColumns(ctx context.Context, db bun.IDB, model any, columns []string) error {
	cols := append(append([]string{}, columns...), "updated_at")
	res, err := db.NewUpdate().
		Model(model).
		Column(cols...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
