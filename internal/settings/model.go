package settings

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings is the single-row pricing configuration of the store.
// All *_percent fields are percentages, e.g. 1.5 means 1.5%.
type Settings struct {
	ID                        int             `db:"id" json:"id"`
	GlobalMarkupPercent       decimal.Decimal `db:"global_markup_percent" json:"global_markup_percent"`
	PlatformCommissionPercent decimal.Decimal `db:"platform_commission_percent" json:"platform_commission_percent"`
	GatewayCommissionPercent  decimal.Decimal `db:"gateway_commission_percent" json:"gateway_commission_percent"`
	GatewayBonusMock          decimal.Decimal `db:"gateway_bonus_mock" json:"gateway_bonus_mock"`
	GatewayBonusPlatformCard  decimal.Decimal `db:"gateway_bonus_platform_card" json:"gateway_bonus_platform_card"`
	GatewayBonusPlatformSBP   decimal.Decimal `db:"gateway_bonus_platform_sbp" json:"gateway_bonus_platform_sbp"`
	USDTRateRUB               decimal.Decimal `db:"usdt_rate_rub" json:"usdt_rate_rub"`
	ReferralPercent           decimal.Decimal `db:"referral_percent" json:"referral_percent"`
	UpdatedAt                 time.Time       `db:"updated_at" json:"updated_at"`
}

type Update struct {
	GlobalMarkupPercent       *decimal.Decimal `json:"global_markup_percent"`
	PlatformCommissionPercent *decimal.Decimal `json:"platform_commission_percent"`
	GatewayCommissionPercent  *decimal.Decimal `json:"gateway_commission_percent"`
	GatewayBonusMock          *decimal.Decimal `json:"gateway_bonus_mock"`
	GatewayBonusPlatformCard  *decimal.Decimal `json:"gateway_bonus_platform_card"`
	GatewayBonusPlatformSBP   *decimal.Decimal `json:"gateway_bonus_platform_sbp"`
	USDTRateRUB               *decimal.Decimal `json:"usdt_rate_rub"`
	ReferralPercent           *decimal.Decimal `json:"referral_percent"`
}
