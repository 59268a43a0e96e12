package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/strategy"
	"tradebot/pkg/logger"
	"tradebot/pkg/utils"
)

// ============================================================
// Executor - асинхронное исполнение торговых намерений
// ============================================================
//
// Единственная сериализация отправки ордеров - глобальный cooldown:
// слот занимается атомарно до любого I/O, поэтому два конкурентных
// сигнала не породят два ордера. Очередей и воркеров нет намеренно -
// один инструмент, одна позиция.
//
// Каждому ордеру присваивается correlation id (client order id).
// Защитные уровни складываются в pending-домен ДО отправки: отчет об
// исполнении может прийти раньше, чем вернется REST-ответ.
//
// Отказ биржи откатывает все: статус возвращается в RUNNING,
// pending-уровни снимаются, cooldown-слот освобождается.

// Executor исполняет торговые намерения стратегий
type Executor struct {
	gateway exchange.Gateway
	cfg     *ConfigStore
	state   *StateStore
	rules   *models.SymbolRules

	// таймаут REST-запроса размещения ордера
	orderTimeout time.Duration
}

// NewExecutor создает исполнитель ордеров
func NewExecutor(gateway exchange.Gateway, cfg *ConfigStore, state *StateStore) *Executor {
	return &Executor{
		gateway:      gateway,
		cfg:          cfg,
		state:        state,
		orderTimeout: 10 * time.Second,
	}
}

// SetSymbolRules устанавливает торговые ограничения символа.
// Вызывается при старте после загрузки exchangeInfo.
func (e *Executor) SetSymbolRules(rules *models.SymbolRules) {
	e.rules = rules
}

// SubmitEntry асинхронно исполняет намерение на вход
func (e *Executor) SubmitEntry(intent *models.OrderIntent, mc *strategy.MarketContext) {
	go e.executeEntry(intent, mc)
}

// SubmitExit асинхронно исполняет намерение на выход
func (e *Executor) SubmitExit(intent *models.OrderIntent, mc *strategy.MarketContext) {
	go e.executeExit(intent, mc)
}

// CancelOpenOrder асинхронно отменяет открытый ордер
func (e *Executor) CancelOpenOrder(clientOrderID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.orderTimeout)
		defer cancel()

		cfg := e.cfg.Get()
		if err := e.gateway.CancelOrder(ctx, cfg.Symbol, clientOrderID); err != nil {
			logger.Error("failed to cancel stale order",
				zap.String("client_order_id", clientOrderID),
				zap.Error(err))
		}
	}()
}

func (e *Executor) executeEntry(intent *models.OrderIntent, mc *strategy.MarketContext) {
	cfg := mc.Config
	strategyType := cfg.StrategyType

	if e.rules == nil {
		logger.Error("symbol rules not loaded, entry skipped")
		return
	}

	// Cooldown занимается ДО любого I/O: второй сигнал внутри окна
	// не дойдет до биржи
	if !e.state.TryReserveOrderSlot(cfg.OrderCooldownMs) {
		RecordSignal(strategyType, false)
		logger.Debug("entry signal inside cooldown window, skipped")
		return
	}

	if e.state.InPosition() || e.state.OpenOrder() != nil {
		e.state.ReleaseOrderSlot()
		return
	}

	// Цена входа: лимитная из намерения либо текущий ask для market
	entryPrice := intent.Price
	if !entryPrice.IsPositive() {
		if mc.Ticker == nil {
			e.state.ReleaseOrderSlot()
			return
		}
		entryPrice = mc.Ticker.AskPrice
	}

	one := decimal.NewFromInt(1)

	// Защитные уровни: рассчитанные стратегией либо проценты из конфига
	slPrice := intent.StopLossPrice
	if !slPrice.IsPositive() {
		slPrice = entryPrice.Mul(one.Sub(cfg.StopLossFrac))
	}
	tpPrice := intent.TakeProfitPrice
	if !tpPrice.IsPositive() {
		tpPrice = entryPrice.Mul(one.Add(cfg.TakeProfit1Frac))
	}
	tp2Price := intent.TakeProfit2
	if !tp2Price.IsPositive() && cfg.TakeProfit2Frac.IsPositive() {
		tp2Price = entryPrice.Mul(one.Add(cfg.TakeProfit2Frac))
	}

	quoteFree, _ := e.state.Balances()
	qty, err := strategy.CalculateQuantity(cfg, e.rules, quoteFree, entryPrice, slPrice)
	if err != nil {
		e.state.ReleaseOrderSlot()
		RecordSignal(strategyType, false)
		logger.Warn("entry declined by sizing",
			zap.String("entry_price", entryPrice.String()),
			zap.String("quote_free", quoteFree.String()),
			zap.Error(err))
		return
	}

	status := models.StatusEntering
	if err := e.state.ApplyCore(CoreUpdate{Status: &status}); err != nil {
		e.state.ReleaseOrderSlot()
		logger.Warn("entry skipped", zap.Error(err))
		return
	}

	clientID := newClientOrderID("entry")

	// Уровни привязываются до отправки: stream может опередить REST-ответ
	e.state.AddPendingRisk(models.PendingRisk{
		ClientOrderID:   clientID,
		Side:            models.SideBuy,
		IsEntry:         true,
		StopLossPrice:   slPrice,
		TakeProfitPrice: tpPrice,
		TakeProfit2:     tp2Price,
		StrategyType:    strategyType,
		CreatedAt:       time.Now().UTC(),
	})

	req := exchange.OrderRequest{
		Symbol:        cfg.Symbol,
		Side:          models.SideBuy,
		Type:          intent.Type,
		Quantity:      qty,
		ClientOrderID: clientID,
	}
	if intent.Type == models.OrderTypeLimit {
		req.Price = utils.RoundToTickSize(entryPrice, e.rules.TickSize)
	}

	RecordSignal(strategyType, true)

	ctx, cancel := context.WithTimeout(context.Background(), e.orderTimeout)
	defer cancel()

	started := time.Now()
	result, err := e.gateway.PlaceOrder(ctx, req)
	OrderSubmitLatency.WithLabelValues(req.Side, req.Type).
		Observe(float64(time.Since(started).Milliseconds()))

	if err != nil {
		e.revertSubmission(clientID, "entry order rejected by gateway", err)
		return
	}

	// LIMIT-ордер отслеживается до исполнения или таймаута
	if req.Type == models.OrderTypeLimit && !models.IsTerminalOrderStatus(result.Status) {
		_ = e.state.ApplyCore(CoreUpdate{OpenOrder: &models.OpenOrderRef{
			ClientOrderID: clientID,
			Side:          models.SideBuy,
			PlacedAt:      time.Now().UTC(),
		}})
	}

	logger.Info("entry order submitted",
		zap.String("client_order_id", clientID),
		zap.String("type", req.Type),
		zap.String("qty", qty.String()),
		zap.String("stop_loss", slPrice.String()),
		zap.String("take_profit", tpPrice.String()))
}

func (e *Executor) executeExit(intent *models.OrderIntent, mc *strategy.MarketContext) {
	cfg := mc.Config

	if e.rules == nil {
		logger.Error("symbol rules not loaded, exit skipped")
		return
	}

	// Cooldown общий для входов и выходов; заблокированный выход
	// повторится на следующем тике
	if !e.state.TryReserveOrderSlot(cfg.OrderCooldownMs) {
		return
	}

	entry := e.state.Entry()
	if entry == nil || !e.state.InPosition() {
		e.state.ReleaseOrderSlot()
		return
	}

	// Количество перепроверяется по фактическому балансу: комиссия
	// в базовом активе или ручное вмешательство могли его уменьшить
	_, baseFree := e.state.Balances()
	qty := entry.Quantity
	if baseFree.LessThan(qty) {
		qty = baseFree
	}
	qty = utils.RoundToStepSize(qty, e.rules.StepSize)

	if !qty.IsPositive() || qty.LessThan(e.rules.MinQty) {
		// Продавать нечего: позиция существует только на бумаге
		e.state.ReleaseOrderSlot()
		e.forceClearPosition("base balance is zero, clearing phantom position")
		return
	}

	status := models.StatusExiting
	if err := e.state.ApplyCore(CoreUpdate{Status: &status}); err != nil {
		e.state.ReleaseOrderSlot()
		logger.Warn("exit skipped", zap.Error(err))
		return
	}

	clientID := newClientOrderID("exit")

	e.state.AddPendingRisk(models.PendingRisk{
		ClientOrderID: clientID,
		Side:          models.SideSell,
		IsEntry:       false,
		ExitReason:    intent.ExitReason,
		StrategyType:  cfg.StrategyType,
		CreatedAt:     time.Now().UTC(),
	})

	req := exchange.OrderRequest{
		Symbol:        cfg.Symbol,
		Side:          models.SideSell,
		Type:          models.OrderTypeMarket,
		Quantity:      qty,
		ClientOrderID: clientID,
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.orderTimeout)
	defer cancel()

	started := time.Now()
	_, err := e.gateway.PlaceOrder(ctx, req)
	OrderSubmitLatency.WithLabelValues(req.Side, req.Type).
		Observe(float64(time.Since(started).Milliseconds()))

	if err != nil {
		e.revertSubmission(clientID, "exit order rejected by gateway", err)
		return
	}

	logger.Info("exit order submitted",
		zap.String("client_order_id", clientID),
		zap.String("reason", intent.ExitReason),
		zap.String("qty", qty.String()))
}

// revertSubmission откатывает неудавшуюся отправку ордера
func (e *Executor) revertSubmission(clientID, msg string, cause error) {
	e.state.RemovePendingRisk(clientID)

	status := models.StatusRunning
	errMsg := cause.Error()
	if err := e.state.ApplyCore(CoreUpdate{Status: &status, LastError: &errMsg}); err != nil {
		logger.Error("failed to revert status after rejection", zap.Error(err))
	}

	e.state.ReleaseOrderSlot()

	logger.Error(msg,
		zap.String("client_order_id", clientID),
		zap.Error(cause))
}

// forceClearPosition принудительно закрывает позицию в состоянии
func (e *Executor) forceClearPosition(reason string) {
	inPosition := false
	if err := e.state.ApplyCore(CoreUpdate{InPosition: &inPosition, ClearEntry: true}); err != nil {
		logger.Error("failed to force-clear position", zap.Error(err))
		return
	}
	logger.Warn(reason)
}

// newClientOrderID генерирует correlation id ордера.
// Временная метка делает id читаемым в логах биржи, суффикс UUID
// исключает коллизии при нескольких ордерах в одну миллисекунду.
func newClientOrderID(kind string) string {
	return fmt.Sprintf("bot_%s_%d_%s", kind, time.Now().UnixMilli(), uuid.NewString()[:8])
}
