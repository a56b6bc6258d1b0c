package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer — покупатель из телеграм-бота. Balance кэширует сумму всех
// его транзакций и меняется только вместе со вставкой транзакции.
type Customer struct {
	ID                int64           `db:"id" json:"id"`
	TelegramID        int64           `db:"telegram_id" json:"telegram_id"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	IsBlocked         bool            `db:"is_blocked" json:"is_blocked"`
	RegisteredWithBot int64           `db:"registered_with_bot" json:"registered_with_bot"`
	LastSeenWithBot   int64           `db:"last_seen_with_bot" json:"last_seen_with_bot"`
	LastSeenAt        time.Time       `db:"last_seen_at" json:"last_seen_at"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}
