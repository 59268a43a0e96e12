package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tradebot/internal/bot"
	"tradebot/internal/models"
)

// ConfigProvider дает доступ к активной торговой конфигурации.
// Реализуется bot.ConfigStore.
type ConfigProvider interface {
	Get() *models.TradingConfig
	Update(params map[string]string) (*bot.UpdateResult, error)
}

// ConfigBroadcaster рассылает уведомление о смене конфигурации
// подключенным WebSocket клиентам. Реализуется websocket.Hub.
type ConfigBroadcaster interface {
	BroadcastConfigUpdate(changedKeys []string, restartRecommended bool)
}

// ConfigHandler обрабатывает HTTP запросы торговой конфигурации.
//
// Endpoints:
// - GET /api/v1/config - активная конфигурация (доли, не проценты)
// - PATCH /api/v1/config - горячее обновление параметров
//
// PATCH принимает параметры в пользовательском виде: проценты как
// проценты ("RISK_PER_TRADE": "1.5" означает 1.5%). Конвертацию в доли
// выполняет ConfigStore. Попытка изменить неизменяемый параметр
// (API ключи, символ, testnet) отклоняет весь запрос целиком.
type ConfigHandler struct {
	config      ConfigProvider
	broadcaster ConfigBroadcaster
}

// NewConfigHandler создает новый ConfigHandler с внедрением зависимостей.
// broadcaster может быть nil, тогда уведомления не рассылаются.
func NewConfigHandler(config ConfigProvider, broadcaster ConfigBroadcaster) *ConfigHandler {
	return &ConfigHandler{
		config:      config,
		broadcaster: broadcaster,
	}
}

// GetConfig возвращает активную торговую конфигурацию.
//
// GET /api/v1/config
//
// Процентные параметры в ответе - доли: risk_per_trade 0.01 означает 1%.
// API ключи в ответ не попадают.
//
// Response 200 OK:
//
//	{
//	  "symbol": "BTCUSDT",
//	  "testnet": true,
//	  "strategy_type": "SCALPING",
//	  "timeframe": "1m",
//	  "risk_per_trade": "0.01",
//	  "capital_allocation": "0.5",
//	  "stop_loss": "0.005",
//	  ...
//	}
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.config == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "config store not initialized"})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(h.config.Get())
}

// UpdateConfig применяет новые значения параметров.
//
// PATCH /api/v1/config
//
// Request body - параметры в пользовательском виде (проценты):
//
//	{"RISK_PER_TRADE": "1.5", "ORDER_COOLDOWN_MS": "5000"}
//
// Response 200 OK:
//
//	{
//	  "message": "config updated",
//	  "data": {"changed_keys": ["RISK_PER_TRADE", "ORDER_COOLDOWN_MS"], "restart_recommended": false}
//	}
//
// Response 400 Bad Request: невалидное значение, весь запрос отклонен
// Response 409 Conflict: попытка сменить неизменяемый параметр
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.config == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "config store not initialized"})
		return
	}

	var params map[string]string
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "invalid request body",
			Details: err.Error(),
		})
		return
	}

	if len(params) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "no parameters provided"})
		return
	}

	result, err := h.config.Update(params)
	if err != nil {
		if errors.Is(err, bot.ErrImmutableField) {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(ErrorResponse{
				Error:   "immutable parameter",
				Code:    "restart_required",
				Details: err.Error(),
			})
			return
		}

		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "invalid configuration",
			Details: err.Error(),
		})
		return
	}

	if h.broadcaster != nil && len(result.ChangedKeys) > 0 {
		h.broadcaster.BroadcastConfigUpdate(result.ChangedKeys, result.RestartRecommended)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(SuccessResponse{
		Message: "config updated",
		Data:    result,
	})
}
