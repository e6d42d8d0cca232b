package repository

import (
	"context"

	"github.com/uptrace/bun"

	insurance "github.com/goliatone/go-insurance"
)

// Models lists the tables in creation order
var Models = []any{
	(*insurance.Account)(nil),
	(*insurance.Policy)(nil),
	(*insurance.Claim)(nil),
}

// Migrate creates the missing tables and indexes inside one transaction
func Migrate(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range Models {
			if _, err := tx.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
				return Classify(err, nil)
			}
		}

		indexes := []struct {
			model  any
			name   string
			column string
		}{
			{(*insurance.Policy)(nil), "policies_user_id_idx", "user_id"},
			{(*insurance.Policy)(nil), "policies_payer_program_idx", "payer_program"},
			{(*insurance.Claim)(nil), "claims_user_id_idx", "user_id"},
			{(*insurance.Claim)(nil), "claims_policy_id_idx", "policy_id"},
		}
		for _, idx := range indexes {
			_, err := tx.NewCreateIndex().
				Model(idx.model).
				Index(idx.name).
				Column(idx.column).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return Classify(err, nil)
			}
		}
		return nil
	})
}
