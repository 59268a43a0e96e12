package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookTicker представляет лучший bid/ask из стакана
type BookTicker struct {
	Symbol    string          `json:"symbol"`
	BidPrice  decimal.Decimal `json:"bid_price"`
	BidQty    decimal.Decimal `json:"bid_qty"`
	AskPrice  decimal.Decimal `json:"ask_price"`
	AskQty    decimal.Decimal `json:"ask_qty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DepthLevel представляет один уровень стакана
type DepthLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// DepthSnapshot представляет частичный срез стакана
//
// Bids отсортированы по убыванию цены, Asks по возрастанию,
// как их отдает биржа.
type DepthSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []DepthLevel `json:"bids"`
	Asks      []DepthLevel `json:"asks"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Candle представляет одну свечу OHLCV
type Candle struct {
	OpenTime  time.Time       `json:"open_time"`
	CloseTime time.Time       `json:"close_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Closed    bool            `json:"closed"`
}

// BalanceSnapshot представляет балансы торгуемых активов
type BalanceSnapshot struct {
	BaseAsset  string          `json:"base_asset"`  // BTC
	QuoteAsset string          `json:"quote_asset"` // USDT
	BaseFree   decimal.Decimal `json:"base_free"`
	QuoteFree  decimal.Decimal `json:"quote_free"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SymbolRules представляет торговые ограничения символа с биржи
type SymbolRules struct {
	Symbol      string          `json:"symbol"`
	BaseAsset   string          `json:"base_asset"`
	QuoteAsset  string          `json:"quote_asset"`
	StepSize    decimal.Decimal `json:"step_size"`    // шаг количества (LOT_SIZE)
	TickSize    decimal.Decimal `json:"tick_size"`    // шаг цены (PRICE_FILTER)
	MinQty      decimal.Decimal `json:"min_qty"`      // минимальное количество
	MinNotional decimal.Decimal `json:"min_notional"` // минимальная стоимость ордера
}

// Стороны ордера
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Типы ордеров
const (
	OrderTypeMarket = "MARKET"
	OrderTypeLimit  = "LIMIT"
)

// Статусы ордера на бирже
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
	OrderStatusExpired         = "EXPIRED"
)

// IsTerminalOrderStatus проверяет, что статус ордера финальный
func IsTerminalOrderStatus(status string) bool {
	switch status {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// IsFailedOrderStatus проверяет, что ордер завершился без исполнения
func IsFailedOrderStatus(status string) bool {
	switch status {
	case OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// ExecutionReport представляет отчет об исполнении ордера из user data stream
type ExecutionReport struct {
	Symbol          string          `json:"symbol"`
	ClientOrderID   string          `json:"client_order_id"`
	OrigClientID    string          `json:"orig_client_id,omitempty"` // для отмен: исходный client id
	OrderID         int64           `json:"order_id"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	FilledQty       decimal.Decimal `json:"filled_qty"`       // накопленное исполненное количество
	FilledQuoteQty  decimal.Decimal `json:"filled_quote_qty"` // накопленная стоимость в quote
	TransactionTime time.Time       `json:"transaction_time"`
}

// AvgFillPrice возвращает среднюю цену исполнения.
// Считается как cumQuote/cumBase, а не по цене последнего трейда.
func (r *ExecutionReport) AvgFillPrice() decimal.Decimal {
	if r.FilledQty.IsZero() {
		return decimal.Zero
	}
	return r.FilledQuoteQty.Div(r.FilledQty)
}
