package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/api"
	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/repository"
	"tradebot/internal/websocket"
	"tradebot/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name))

	// Инициализация репозиториев
	botStateRepo := repository.NewBotStateRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Торговая конфигурация с горячим обновлением
	configStore, err := bot.NewConfigStore(cfg.Exchange, cfg.Trading)
	if err != nil {
		logger.Fatal("invalid trading configuration", zap.Error(err))
	}

	// Рантайм-состояние бота
	stateStore := bot.NewStateStore(botStateRepo, 50)

	// Восстановление durable-состояния: открытая позиция переживает
	// перезапуск процесса
	inPosition, entry, err := botStateRepo.Get()
	if err != nil {
		logger.Fatal("failed to load persisted bot state", zap.Error(err))
	}
	stateStore.RestoreDurable(inPosition, entry)
	if inPosition && entry != nil {
		logger.Info("restored open position from database",
			zap.String("entry_price", entry.EntryPrice.String()),
			zap.String("quantity", entry.Quantity.String()))
	}

	// WebSocket hub для real-time обновлений UI
	hub := websocket.NewHub()
	go hub.Run()

	stateStore.SetStatusListener(func(status models.BotStatus, inPos bool) {
		hub.BroadcastStatusUpdate(status, inPos, stateStore.Entry(), stateStore.LastError())
	})

	// Шлюз биржи
	gateway := exchange.NewBinanceGateway(
		cfg.Exchange.APIKey,
		cfg.Exchange.APISecret,
		cfg.Exchange.Testnet,
		cfg.Bot.WSReconnectDelay,
		cfg.Bot.WSMaxReconnect,
	)

	// Торговый движок
	executor := bot.NewExecutor(gateway, configStore, stateStore)
	reconciler := bot.NewReconciler(stateStore, orderRepo)
	reconciler.SetOrderNotifier(func(record models.OrderRecord) {
		hub.BroadcastOrderUpdate(&record)
	})

	engine := bot.NewEngine(configStore, stateStore, gateway, executor, reconciler)

	// Периодическая рассылка статистики подключенным клиентам
	statsCtx, stopStats := context.WithCancel(context.Background())
	go broadcastStats(statsCtx, hub, orderRepo, cfg.Bot.StatsUpdateFreq)

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		Bot:    engine,
		State:  stateStore,
		Config: configStore,
		Orders: orderRepo,
		Hub:    hub,
	})

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	stopStats()

	// Останавливаем торговый движок: позиция сохранена в БД и
	// будет восстановлена при следующем старте
	if engine.IsRunning() {
		if err := engine.Stop(); err != nil {
			logger.Error("error stopping trading engine", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// broadcastStats периодически рассылает агрегированную статистику
// торговли WebSocket клиентам
func broadcastStats(ctx context.Context, hub *websocket.Hub, orders *repository.OrderRepository, freq time.Duration) {
	if freq <= 0 {
		freq = 5 * time.Second
	}

	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ОПТИМИЗАЦИЯ: без подключенных клиентов не ходим в БД
			if hub.ClientCount() == 0 {
				continue
			}
			stats, err := orders.GetStats()
			if err != nil {
				logger.Warn("failed to load stats for broadcast", zap.Error(err))
				continue
			}
			hub.BroadcastStatsUpdate(stats)
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
