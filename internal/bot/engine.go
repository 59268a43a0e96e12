package bot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/strategy"
	"tradebot/pkg/logger"
)

// ============================================================
// Engine - жизненный цикл торгового бота
// ============================================================
//
// Последовательность старта:
//  1. STOPPED -> STARTING
//  2. фатальные проверки: правила символа, балансы, история свечей -
//     любая ошибка здесь означает ERROR и отказ от старта
//  3. подписка на рыночные потоки и user data stream
//  4. STARTING -> RUNNING
//
// Остановка кооперативная: отмена контекста, ожидание потоков,
// STOPPED. Открытая позиция при остановке НЕ закрывается - ее детали
// сохранены и будут восстановлены при следующем старте.

// ExchangeClient объединяет REST-шлюз и потоковые подписки
type ExchangeClient interface {
	exchange.Gateway
	exchange.Streamer
}

// Engine управляет жизненным циклом бота
type Engine struct {
	cfg        *ConfigStore
	state      *StateStore
	client     ExchangeClient
	executor   *Executor
	reconciler *Reconciler
	router     *Router

	strategyMu sync.RWMutex
	strategy   strategy.Strategy

	runMu  sync.Mutex
	cancel context.CancelFunc
}

// NewEngine собирает движок из компонентов
func NewEngine(cfg *ConfigStore, state *StateStore, client ExchangeClient, executor *Executor, reconciler *Reconciler) *Engine {
	e := &Engine{
		cfg:        cfg,
		state:      state,
		client:     client,
		executor:   executor,
		reconciler: reconciler,
	}
	e.router = NewRouter(cfg, state, executor, e.currentStrategy)

	// Смена стратегии или таймфрейма на лету пересоздает стратегию
	// и сбрасывает накопленные свечи
	cfg.OnChange(e.onConfigChange)

	return e
}

// Router возвращает маршрутизатор рыночных событий
func (e *Engine) Router() *Router {
	return e.router
}

// currentStrategy возвращает активную стратегию
func (e *Engine) currentStrategy() strategy.Strategy {
	e.strategyMu.RLock()
	defer e.strategyMu.RUnlock()
	return e.strategy
}

// Start запускает бота. Блокирует только на время инициализации;
// обработка событий идет в фоновых горутинах до Stop.
func (e *Engine) Start() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cancel != nil {
		return fmt.Errorf("engine already started")
	}

	starting := models.StatusStarting
	if err := e.state.ApplyCore(CoreUpdate{Status: &starting}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := e.initialize(ctx); err != nil {
		cancel()
		e.fail(err)
		return err
	}

	if err := e.subscribe(ctx); err != nil {
		cancel()
		e.fail(err)
		return err
	}

	running := models.StatusRunning
	if err := e.state.ApplyCore(CoreUpdate{Status: &running}); err != nil {
		cancel()
		return err
	}

	e.cancel = cancel

	tradingCfg := e.cfg.Get()
	logger.Info("bot started",
		zap.String("symbol", tradingCfg.Symbol),
		zap.String("strategy", tradingCfg.StrategyType),
		zap.String("timeframe", tradingCfg.Timeframe),
		zap.Bool("testnet", tradingCfg.Testnet))

	return nil
}

// initialize выполняет фатальные проверки перед стартом
func (e *Engine) initialize(ctx context.Context) error {
	cfg := e.cfg.Get()

	// Правила символа: без шага лота и минимумов торговать нельзя
	rules, err := e.client.GetSymbolRules(ctx, cfg.Symbol)
	if err != nil {
		return fmt.Errorf("load symbol rules: %w", err)
	}
	e.executor.SetSymbolRules(rules)
	e.reconciler.SetAssets(rules.BaseAsset, rules.QuoteAsset)

	// Стратегия создается до бэкфилла: она знает свой прогрев
	st, err := strategy.New(cfg.StrategyType)
	if err != nil {
		return err
	}
	e.setStrategy(st)

	balances, err := e.client.GetBalances(ctx, rules.BaseAsset, rules.QuoteAsset)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	if err := e.state.ApplyCore(CoreUpdate{
		QuoteBalance: &balances.QuoteFree,
		BaseBalance:  &balances.BaseFree,
	}); err != nil {
		return err
	}
	quoteFree, _ := balances.QuoteFree.Float64()
	baseFree, _ := balances.BaseFree.Float64()
	RecordBalance(rules.QuoteAsset, quoteFree)
	RecordBalance(rules.BaseAsset, baseFree)

	// Бэкфилл закрытых свечей для прогрева индикаторов
	required := st.RequiredCandles(cfg)
	e.state.ResizeCandleCapacity(ringCapacity(required))

	candles, err := e.client.GetCandles(ctx, cfg.Symbol, cfg.Timeframe, required+1)
	if err != nil {
		return fmt.Errorf("backfill candles: %w", err)
	}
	e.state.SeedCandles(candles)

	logger.Info("initialization complete",
		zap.String("base", rules.BaseAsset),
		zap.String("quote", rules.QuoteAsset),
		zap.String("quote_free", balances.QuoteFree.String()),
		zap.Int("candles", e.state.CandleCount()),
		zap.Int("required", required))

	return nil
}

// subscribe запускает рыночные и приватные потоки
func (e *Engine) subscribe(ctx context.Context) error {
	cfg := e.cfg.Get()

	err := e.client.SubscribeMarket(ctx, cfg.Symbol, cfg.Timeframe, cfg.ScalpingDepthLevels, exchange.MarketHandlers{
		OnBookTicker: e.router.OnBookTicker,
		OnDepth:      e.router.OnDepth,
		OnCandle:     e.router.OnCandle,
	})
	if err != nil {
		return fmt.Errorf("subscribe market streams: %w", err)
	}

	err = e.client.SubscribeUserData(ctx, exchange.AccountHandlers{
		OnExecutionReport: e.reconciler.OnExecutionReport,
		OnBalanceUpdate:   e.reconciler.OnBalanceUpdate,
	})
	if err != nil {
		return fmt.Errorf("subscribe user data stream: %w", err)
	}

	return nil
}

// Stop останавливает бота. Открытая позиция сохраняется.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cancel == nil {
		return fmt.Errorf("engine is not running")
	}

	e.cancel()
	e.cancel = nil

	// Close ждет завершения всех потоковых горутин
	if err := e.client.Close(); err != nil {
		logger.Warn("error closing exchange client", zap.Error(err))
	}

	stopped := models.StatusStopped
	if err := e.state.ApplyCore(CoreUpdate{Status: &stopped}); err != nil {
		return err
	}

	logger.Info("bot stopped")
	return nil
}

// IsRunning сообщает, запущен ли движок
func (e *Engine) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.cancel != nil
}

// fail переводит бота в ERROR с фиксацией причины
func (e *Engine) fail(cause error) {
	status := models.StatusError
	msg := cause.Error()
	if err := e.state.ApplyCore(CoreUpdate{Status: &status, LastError: &msg}); err != nil {
		logger.Error("failed to set error status", zap.Error(err))
	}
	logger.Error("bot failed to start", zap.Error(cause))
}

// onConfigChange реагирует на горячую смену конфигурации
func (e *Engine) onConfigChange(old, new *models.TradingConfig) {
	strategyChanged := old.StrategyType != new.StrategyType
	timeframeChanged := old.Timeframe != new.Timeframe

	if strategyChanged {
		st, err := strategy.New(new.StrategyType)
		if err != nil {
			logger.Error("failed to switch strategy", zap.Error(err))
			return
		}
		e.setStrategy(st)
		logger.Info("strategy switched",
			zap.String("from", old.StrategyType),
			zap.String("to", new.StrategyType))
	}

	if strategyChanged || timeframeChanged {
		// Накопленные свечи принадлежат старой комбинации
		// стратегия+таймфрейм; индикаторы прогреваются заново.
		// Поток klines продолжает идти со старым интервалом до
		// перезапуска - именно поэтому смена возвращается клиенту
		// с пометкой restart_recommended.
		st := e.currentStrategy()
		if st != nil {
			e.state.ResizeCandleCapacity(ringCapacity(st.RequiredCandles(e.cfg.Get())))
		}
		if timeframeChanged {
			e.state.ResetCandles()
		}
	}
}

func (e *Engine) setStrategy(st strategy.Strategy) {
	e.strategyMu.Lock()
	e.strategy = st
	e.strategyMu.Unlock()
}

// ringCapacity дает запас кольца сверх прогрева индикаторов
func ringCapacity(required int) int {
	capacity := required * 2
	if capacity < 50 {
		capacity = 50
	}
	return capacity
}
