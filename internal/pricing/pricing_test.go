package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDepositBreakdown(t *testing.T) {
	cfg := &settings.Settings{
		PlatformCommissionPercent: d("2"),
		GatewayCommissionPercent:  d("4"),
	}

	cases := []struct {
		name       string
		original   string
		platform   string
		gateway    string
		storeDelta string
	}{
		{"round amount", "1000", "20", "40", "940"},
		{"rounds commissions to kopecks", "333.33", "6.67", "13.33", "313.33"},
		{"small deposit", "1", "0.02", "0.04", "0.94"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := DepositBreakdown(d(tc.original), cfg)
			require.True(t, b.PlatformCommission.Equal(d(tc.platform)),
				"platform commission %s", b.PlatformCommission)
			require.True(t, b.GatewayCommission.Equal(d(tc.gateway)),
				"gateway commission %s", b.GatewayCommission)
			require.True(t, b.StoreBalanceDelta.Equal(d(tc.storeDelta)),
				"store delta %s", b.StoreBalanceDelta)
		})
	}
}

func TestDepositBreakdownZeroCommissions(t *testing.T) {
	b := DepositBreakdown(d("500"), &settings.Settings{})
	require.True(t, b.PlatformCommission.IsZero())
	require.True(t, b.GatewayCommission.IsZero())
	require.True(t, b.StoreBalanceDelta.Equal(d("500")))
}

func TestGatewayBonusPercent(t *testing.T) {
	cfg := &settings.Settings{
		GatewayBonusMock:         d("10"),
		GatewayBonusPlatformCard: d("5"),
		GatewayBonusPlatformSBP:  d("7.5"),
	}

	require.True(t, GatewayBonusPercent(cfg, "mock").Equal(d("10")))
	require.True(t, GatewayBonusPercent(cfg, "platform_card").Equal(d("5")))
	require.True(t, GatewayBonusPercent(cfg, "platform_sbp").Equal(d("7.5")))
	require.True(t, GatewayBonusPercent(cfg, "unknown").IsZero())
}

func TestApplyGatewayBonus(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		percent string
		want    string
	}{
		{"ten percent off", "1000", "10", "900"},
		{"no bonus", "1000", "0", "1000"},
		{"fractional result rounds", "999.99", "7.5", "924.99"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyGatewayBonus(d(tc.amount), d(tc.percent))
			require.True(t, got.Equal(d(tc.want)), "got %s", got)
		})
	}
}

func TestProductPrice(t *testing.T) {
	cfg := &settings.Settings{GlobalMarkupPercent: d("15")}

	require.True(t, ProductPrice(d("100"), cfg).Equal(d("115")))
	require.True(t, ProductPrice(d("99.99"), cfg).Equal(d("114.99")))
	require.True(t, ProductPrice(d("300"), &settings.Settings{}).Equal(d("300")))
}
