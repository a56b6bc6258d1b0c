package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Load(ctx context.Context) (*Settings, error) {
	s := &Settings{}
	err := r.db.GetContext(ctx, s, `SELECT * FROM settings ORDER BY id LIMIT 1`)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repository) Update(ctx context.Context, upd Update) (*Settings, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.GlobalMarkupPercent != nil {
		add("global_markup_percent", *upd.GlobalMarkupPercent)
	}
	if upd.PlatformCommissionPercent != nil {
		add("platform_commission_percent", *upd.PlatformCommissionPercent)
	}
	if upd.GatewayCommissionPercent != nil {
		add("gateway_commission_percent", *upd.GatewayCommissionPercent)
	}
	if upd.GatewayBonusMock != nil {
		add("gateway_bonus_mock", *upd.GatewayBonusMock)
	}
	if upd.GatewayBonusPlatformCard != nil {
		add("gateway_bonus_platform_card", *upd.GatewayBonusPlatformCard)
	}
	if upd.GatewayBonusPlatformSBP != nil {
		add("gateway_bonus_platform_sbp", *upd.GatewayBonusPlatformSBP)
	}
	if upd.USDTRateRUB != nil {
		add("usdt_rate_rub", *upd.USDTRateRUB)
	}
	if upd.ReferralPercent != nil {
		add("referral_percent", *upd.ReferralPercent)
	}

	query := fmt.Sprintf(`
		UPDATE settings
		SET %s
		WHERE id = (SELECT id FROM settings ORDER BY id LIMIT 1)
		RETURNING *
	`, strings.Join(sets, ", "))

	s := &Settings{}
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(s); err != nil {
		return nil, err
	}
	return s, nil
}
