package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
)

type rateResponse struct {
	USDTRUB decimal.Decimal `json:"usdt_rub"`
}

// NewRateSync polls the exchange-rate source and stores the USDT/RUB rate in
// settings. Withdrawal conversions always use the stored rate, never a live
// call.
func NewRateSync(repo settings.Repository, sourceURL string, interval time.Duration) Job {
	client := &http.Client{Timeout: 10 * time.Second}
	return Job{
		Name:     "rate-sync",
		Interval: interval,
		Run: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("fetch rate: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("rate source returned %d", resp.StatusCode)
			}

			var rate rateResponse
			if err := json.NewDecoder(resp.Body).Decode(&rate); err != nil {
				return fmt.Errorf("decode rate: %w", err)
			}
			if !rate.USDTRUB.IsPositive() {
				return fmt.Errorf("rate source returned non-positive rate %s", rate.USDTRUB)
			}

			if _, err := repo.Update(ctx, settings.Update{USDTRateRUB: &rate.USDTRUB}); err != nil {
				return fmt.Errorf("store rate: %w", err)
			}
			logger.Debugf("rate-sync: usdt rate updated to %s", rate.USDTRUB)
			return nil
		},
	}
}
