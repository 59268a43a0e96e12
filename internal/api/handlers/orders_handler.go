package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"tradebot/internal/models"
)

// OrderStore дает доступ к журналу ордеров и агрегированной статистике.
// Реализуется repository.OrderRepository.
type OrderStore interface {
	List(limit, offset int) ([]*models.OrderRecord, error)
	GetStats() (*models.Stats, error)
}

// OrdersHandler обрабатывает HTTP запросы журнала ордеров.
//
// Endpoints:
// - GET /api/v1/orders?limit=50&offset=0 - история ордеров
// - GET /api/v1/stats - агрегированная статистика торговли
type OrdersHandler struct {
	orders OrderStore
}

// NewOrdersHandler создает новый OrdersHandler с внедрением зависимостей.
func NewOrdersHandler(orders OrderStore) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// GetOrders возвращает историю ордеров, новые первыми.
//
// GET /api/v1/orders?limit=50&offset=0
//
// Query Parameters:
// - limit (optional): количество записей (по умолчанию 50, максимум 200)
// - offset (optional): смещение для пагинации (по умолчанию 0)
//
// Response 200 OK:
//
//	[
//	  {
//	    "id": 12,
//	    "client_order_id": "bot_exit_a1b2c3",
//	    "symbol": "BTCUSDT",
//	    "side": "SELL",
//	    "type": "MARKET",
//	    "quantity": "0.5",
//	    "price_avg": "101",
//	    "status": "FILLED",
//	    "is_entry": false,
//	    "exit_reason": "TP",
//	    "performance_pct": "1",
//	    "created_at": "2026-08-31T10:05:00Z"
//	  }
//	]
func (h *OrdersHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.orders == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "order store not initialized"})
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	orders, err := h.orders.List(limit, offset)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "failed to get orders",
			Details: err.Error(),
		})
		return
	}

	// Пустой результат сериализуется как [], а не null
	if orders == nil {
		orders = []*models.OrderRecord{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(orders)
}

// GetStats возвращает агрегированную статистику завершенных сделок.
//
// GET /api/v1/stats
//
// Response 200 OK:
//
//	{
//	  "total_trades": 10,
//	  "win_trades": 6,
//	  "loss_trades": 4,
//	  "win_rate_pct": "60",
//	  "total_pnl_pct": "3.5",
//	  "today_trades": 2,
//	  "today_pnl_pct": "0.8",
//	  "by_reason": [{"reason": "TP", "count": 6, "pnl_pct": "5.1"}],
//	  "updated_at": "2026-08-31T10:05:00Z"
//	}
func (h *OrdersHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.orders == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "order store not initialized"})
		return
	}

	stats, err := h.orders.GetStats()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "failed to get stats",
			Details: err.Error(),
		})
		return
	}

	if stats.ByReason == nil {
		stats.ByReason = []models.ReasonStat{}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}
