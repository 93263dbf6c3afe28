package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/courier-pricing/internal/domain/shipment"
)

const (
	getActiveRuleSQL = `SELECT id, base_fee, fee_per_kilometer, min_fee, is_active
		FROM pricing_rules WHERE is_active ORDER BY id DESC LIMIT 1`

	deactivateRulesSQL = `UPDATE pricing_rules SET is_active = FALSE WHERE is_active`

	insertActiveRuleSQL = `INSERT INTO pricing_rules (base_fee, fee_per_kilometer, min_fee, is_active)
		VALUES ($1, $2, $3, TRUE) RETURNING id`
)

var _ shipment.PricingRuleStore = (*PricingRuleRepository)(nil)

// PricingRuleRepository implements shipment.PricingRuleStore backed by
// PostgreSQL.
type PricingRuleRepository struct {
	pool *pgxpool.Pool
}

// NewPricingRuleRepository returns a PricingRuleRepository that uses the
// given pool.
func NewPricingRuleRepository(pool *pgxpool.Pool) *PricingRuleRepository {
	return &PricingRuleRepository{pool: pool}
}

// ActiveRule returns the active pricing rule, or shipment.ErrNoActiveRule.
func (r *PricingRuleRepository) ActiveRule(ctx context.Context) (*shipment.PricingRule, error) {
	rows, err := r.pool.Query(ctx, getActiveRuleSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query active pricing rule")
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanPricingRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipment.ErrNoActiveRule
		}
		return nil, errors.Wrap(err, "scan active pricing rule")
	}
	return &rule, nil
}

// Activate stores rule as the only active pricing rule.
func (r *PricingRuleRepository) Activate(ctx context.Context, rule shipment.PricingRule) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deactivateRulesSQL); err != nil {
			return errors.Wrap(err, "deactivate pricing rules")
		}
		row := tx.QueryRow(ctx, insertActiveRuleSQL, rule.BaseFee, rule.FeePerKilometer, rule.MinFee)
		if err := row.Scan(&id); err != nil {
			return errors.Wrap(err, "insert pricing rule")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func scanPricingRule(row pgx.CollectableRow) (shipment.PricingRule, error) {
	var rule shipment.PricingRule
	err := row.Scan(&rule.ID, &rule.BaseFee, &rule.FeePerKilometer, &rule.MinFee, &rule.IsActive)
	return rule, err
}
