package api

import (
	"net/http"
	_ "net/http/pprof" // регистрирует pprof handlers на DefaultServeMux

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebot/internal/api/handlers"
	"tradebot/internal/api/middleware"
	"tradebot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Bot    handlers.BotController
	State  handlers.BotStateReader
	Config handlers.ConfigProvider
	Orders handlers.OrderStore
	Hub    *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── GET  /status - текущее состояние бота
//	├── GET  /config - активная конфигурация
//	├── PATCH /config - горячее обновление параметров [auth]
//	├── GET  /orders - история ордеров
//	├── GET  /stats - агрегированная статистика
//	└── /bot/
//	    ├── POST /start - запустить движок [auth]
//	    └── POST /stop - остановить движок [auth]
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /health - health check
// /debug/pprof/* - профилирование [debug auth]
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. APIAuth (только для мутирующих маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var statusHandler *handlers.StatusHandler
	if deps != nil && deps.State != nil {
		statusHandler = handlers.NewStatusHandler(deps.State)
	}

	var configHandler *handlers.ConfigHandler
	if deps != nil && deps.Config != nil {
		// Типизированный nil *Hub в интерфейсе перестает быть nil,
		// поэтому присваивание только при живом хабе
		var broadcaster handlers.ConfigBroadcaster
		if deps.Hub != nil {
			broadcaster = deps.Hub
		}
		configHandler = handlers.NewConfigHandler(deps.Config, broadcaster)
	}

	var controlHandler *handlers.ControlHandler
	if deps != nil && deps.Bot != nil {
		controlHandler = handlers.NewControlHandler(deps.Bot)
	}

	var ordersHandler *handlers.OrdersHandler
	if deps != nil && deps.Orders != nil {
		ordersHandler = handlers.NewOrdersHandler(deps.Orders)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	if statusHandler != nil {
		api.HandleFunc("/status", statusHandler.GetStatus).Methods("GET")
	}

	if configHandler != nil {
		api.HandleFunc("/config", configHandler.GetConfig).Methods("GET")
		api.Handle("/config",
			middleware.APIAuth(http.HandlerFunc(configHandler.UpdateConfig))).Methods("PATCH", "POST")
	}

	if controlHandler != nil {
		api.Handle("/bot/start",
			middleware.APIAuth(http.HandlerFunc(controlHandler.StartBot))).Methods("POST")
		api.Handle("/bot/stop",
			middleware.APIAuth(http.HandlerFunc(controlHandler.StopBot))).Methods("POST")
	}

	if ordersHandler != nil {
		api.HandleFunc("/orders", ordersHandler.GetOrders).Methods("GET")
		api.HandleFunc("/stats", ordersHandler.GetStats).Methods("GET")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// pprof защищен отдельным Basic Auth
	router.PathPrefix("/debug/").Handler(middleware.DebugAuth(http.DefaultServeMux))

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
