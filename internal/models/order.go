package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord представляет запись об исполненном ордере в истории
type OrderRecord struct {
	ID             int             `json:"id" db:"id"`
	ClientOrderID  string          `json:"client_order_id" db:"client_order_id"`
	ExchangeID     int64           `json:"exchange_id" db:"exchange_order_id"`
	Symbol         string          `json:"symbol" db:"symbol"`
	Side           string          `json:"side" db:"side"` // BUY, SELL
	Type           string          `json:"type" db:"type"` // MARKET, LIMIT
	Quantity       decimal.Decimal `json:"quantity" db:"quantity"`
	PriceAvg       decimal.Decimal `json:"price_avg" db:"price_avg"` // средняя цена исполнения
	QuoteQty       decimal.Decimal `json:"quote_qty" db:"quote_qty"`
	Status         string          `json:"status" db:"status"`
	IsEntry        bool            `json:"is_entry" db:"is_entry"`
	ExitReason     string          `json:"exit_reason,omitempty" db:"exit_reason"`
	StrategyType   string          `json:"strategy_type" db:"strategy_type"`
	PerformancePct decimal.Decimal `json:"performance_pct" db:"performance_pct"` // для выходов
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
