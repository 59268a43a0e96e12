package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Причины выхода из позиции
const (
	ExitReasonStopLoss          = "SL"
	ExitReasonTakeProfit        = "TP"
	ExitReasonTrailing          = "TRAILING"
	ExitReasonTimeStop          = "TIME_STOP"
	ExitReasonImbalanceReversal = "IMBALANCE_REVERSAL"
	ExitReasonSignal            = "SIGNAL"
)

// EntryDetails представляет детали открытой позиции.
// Заполняется реконсилиатором после подтверждения входа биржей.
type EntryDetails struct {
	EntryPrice      decimal.Decimal `json:"entry_price"` // средняя цена исполнения
	Quantity        decimal.Decimal `json:"quantity"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	TakeProfit2     decimal.Decimal `json:"take_profit_2,omitempty"`
	HighestPrice    decimal.Decimal `json:"highest_price"` // для трейлинг-стопа, только растет
	LowestPrice     decimal.Decimal `json:"lowest_price"`  // только падает
	EntryTime       time.Time       `json:"entry_time"`
	StrategyType    string          `json:"strategy_type"`
}

// Clone возвращает независимую копию деталей позиции
func (e *EntryDetails) Clone() *EntryDetails {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// OrderIntent представляет торговое намерение стратегии.
// Стратегия описывает ЧТО сделать; исполнитель решает КАК.
type OrderIntent struct {
	Side  string          `json:"side"`            // BUY для входа, SELL для выхода
	Type  string          `json:"type"`            // MARKET или LIMIT
	Price decimal.Decimal `json:"price,omitempty"` // только для LIMIT

	// Цены защитных уровней, рассчитанные стратегией.
	// Нулевые значения означают "использовать проценты из конфигурации".
	StopLossPrice   decimal.Decimal `json:"stop_loss_price,omitempty"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price,omitempty"`
	TakeProfit2     decimal.Decimal `json:"take_profit_2,omitempty"`

	ExitReason string `json:"exit_reason,omitempty"` // только для выходов
	Comment    string `json:"comment,omitempty"`
}

// PendingRisk представляет защитные уровни, подготовленные при отправке
// ордера на вход. Привязывается к correlation id и потребляется ровно
// один раз при подтверждении исполнения.
type PendingRisk struct {
	ClientOrderID   string          `json:"client_order_id"`
	Side            string          `json:"side"`
	IsEntry         bool            `json:"is_entry"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	TakeProfit2     decimal.Decimal `json:"take_profit_2"`
	ExitReason      string          `json:"exit_reason,omitempty"`
	StrategyType    string          `json:"strategy_type"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OpenOrderRef представляет отслеживаемый открытый LIMIT-ордер
type OpenOrderRef struct {
	ClientOrderID   string    `json:"client_order_id"`
	Side            string    `json:"side"`
	PlacedAt        time.Time `json:"placed_at"`
	CancelRequested bool      `json:"cancel_requested"`
}
