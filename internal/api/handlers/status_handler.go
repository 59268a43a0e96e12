package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"tradebot/internal/bot"
	"tradebot/internal/models"
)

// BotStateReader предоставляет доступ на чтение к рантайм-состоянию бота.
// Реализуется bot.StateStore; интерфейс здесь, чтобы handler не тянул
// за собой весь пакет bot и легко мокался в тестах.
type BotStateReader interface {
	Status() models.BotStatus
	InPosition() bool
	Entry() *models.EntryDetails
	Balances() (quote, base decimal.Decimal)
	OpenOrder() *models.OpenOrderRef
	LastError() string
	CandleCount() int
}

// StatusResponse - снимок состояния бота для UI
type StatusResponse struct {
	Status       models.BotStatus     `json:"status"`
	StatusText   string               `json:"status_text"`
	InPosition   bool                 `json:"in_position"`
	Entry        *models.EntryDetails `json:"entry,omitempty"`
	OpenOrder    *models.OpenOrderRef `json:"open_order,omitempty"`
	QuoteBalance decimal.Decimal      `json:"quote_balance"`
	BaseBalance  decimal.Decimal      `json:"base_balance"`
	CandleCount  int                  `json:"candle_count"`
	LastError    string               `json:"last_error,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// StatusHandler обрабатывает HTTP запросы состояния бота.
//
// Endpoints:
// - GET /api/v1/status - текущий статус, позиция, балансы
//
// Состояние читается напрямую из StateStore: это всегда защитные
// копии, handler ничего не может сломать в рантайме бота.
type StatusHandler struct {
	state BotStateReader
}

// NewStatusHandler создает новый StatusHandler с внедрением зависимостей.
func NewStatusHandler(state BotStateReader) *StatusHandler {
	return &StatusHandler{state: state}
}

// GetStatus возвращает текущее состояние бота.
//
// GET /api/v1/status
//
// Response 200 OK:
//
//	{
//	  "status": "RUNNING",
//	  "status_text": "Бот работает (поиск сигналов)",
//	  "in_position": true,
//	  "entry": {
//	    "entry_price": "100.5",
//	    "quantity": "0.5",
//	    "stop_loss_price": "99.99",
//	    "take_profit_price": "101.5",
//	    "highest_price": "101.2",
//	    "lowest_price": "100.5",
//	    "entry_time": "2026-08-31T10:00:00Z",
//	    "strategy_type": "SCALPING"
//	  },
//	  "quote_balance": "9949.75",
//	  "base_balance": "0.5",
//	  "candle_count": 50,
//	  "timestamp": "2026-08-31T10:05:00Z"
//	}
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.state == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "state store not initialized"})
		return
	}

	quote, base := h.state.Balances()

	status := h.state.Status()

	resp := StatusResponse{
		Status:       status,
		StatusText:   bot.StatusInfo(status),
		InPosition:   h.state.InPosition(),
		Entry:        h.state.Entry(),
		OpenOrder:    h.state.OpenOrder(),
		QuoteBalance: quote,
		BaseBalance:  base,
		CandleCount:  h.state.CandleCount(),
		LastError:    h.state.LastError(),
		Timestamp:    time.Now().UTC(),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
