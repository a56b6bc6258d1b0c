// Package pricing is the single place where commission and markup math
// lives. Every ledger-affecting component computes its amounts here so
// that rounding and commission order of application never diverge.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the accounting split of a completed deposit.
type Breakdown struct {
	PlatformCommission decimal.Decimal
	GatewayCommission  decimal.Decimal
	StoreBalanceDelta  decimal.Decimal
}

// DepositBreakdown splits a deposit of originalAmount into commissions and
// the store-reserve delta. The customer is credited the full original
// amount; commissions come out of the store's share.
func DepositBreakdown(originalAmount decimal.Decimal, s *settings.Settings) Breakdown {
	platform := percentOf(originalAmount, s.PlatformCommissionPercent)
	gateway := percentOf(originalAmount, s.GatewayCommissionPercent)
	return Breakdown{
		PlatformCommission: platform,
		GatewayCommission:  gateway,
		StoreBalanceDelta:  originalAmount.Sub(platform).Sub(gateway),
	}
}

// GatewayBonusPercent returns the deposit bonus configured for a gateway.
// Unknown gateways get no bonus.
func GatewayBonusPercent(s *settings.Settings, gateway string) decimal.Decimal {
	switch gateway {
	case "mock":
		return s.GatewayBonusMock
	case "platform_card":
		return s.GatewayBonusPlatformCard
	case "platform_sbp":
		return s.GatewayBonusPlatformSBP
	default:
		return decimal.Zero
	}
}

// ApplyGatewayBonus discounts the payable amount by the gateway bonus,
// applied exactly once at invoice creation.
func ApplyGatewayBonus(amount decimal.Decimal, bonusPercent decimal.Decimal) decimal.Decimal {
	return amount.Sub(percentOf(amount, bonusPercent)).Round(2)
}

// ProductPrice applies the global markup to a product's base price.
func ProductPrice(basePrice decimal.Decimal, s *settings.Settings) decimal.Decimal {
	return basePrice.Add(percentOf(basePrice, s.GlobalMarkupPercent)).Round(2)
}

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(2)
}
