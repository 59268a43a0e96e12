package handlers

import (
	"encoding/json"
	"net/http"
)

// BotController управляет жизненным циклом торгового движка.
// Реализуется bot.Engine.
type BotController interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// ControlHandler обрабатывает команды запуска и остановки бота.
//
// Endpoints:
// - POST /api/v1/bot/start - запустить торговый движок
// - POST /api/v1/bot/stop - остановить торговый движок
//
// Start выполняет полную инициализацию (правила символа, балансы,
// история свечей, подписки) и может занять несколько секунд.
// Stop не закрывает открытую позицию: она переживает остановку
// и восстанавливается при следующем запуске.
type ControlHandler struct {
	bot BotController
}

// NewControlHandler создает новый ControlHandler с внедрением зависимостей.
func NewControlHandler(bot BotController) *ControlHandler {
	return &ControlHandler{bot: bot}
}

// StartBot запускает торговый движок.
//
// POST /api/v1/bot/start
//
// Response 200 OK:
//
//	{"message": "bot started"}
//
// Response 409 Conflict:
//
//	{"error": "failed to start bot", "details": "engine already running"}
func (h *ControlHandler) StartBot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.bot == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "bot engine not initialized"})
		return
	}

	if h.bot.IsRunning() {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "failed to start bot",
			Details: "engine already running",
		})
		return
	}

	if err := h.bot.Start(); err != nil {
		// Старт провалился: ошибка инициализации (биржа, история, балансы)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "failed to start bot",
			Details: err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(SuccessResponse{Message: "bot started"})
}

// StopBot останавливает торговый движок.
//
// POST /api/v1/bot/stop
//
// Response 200 OK:
//
//	{"message": "bot stopped"}
//
// Response 409 Conflict:
//
//	{"error": "failed to stop bot", "details": "engine is not running"}
func (h *ControlHandler) StopBot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.bot == nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "bot engine not initialized"})
		return
	}

	if err := h.bot.Stop(); err != nil {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   "failed to stop bot",
			Details: err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(SuccessResponse{Message: "bot stopped"})
}
