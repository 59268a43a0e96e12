package bot

import (
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradebot/internal/models"
	"tradebot/pkg/logger"
	"tradebot/pkg/utils"
)

// ============================================================
// Reconciler - сверка состояния с отчетами биржи
// ============================================================
//
// Единственный источник правды об исполнении - user data stream.
// REST-ответ на размещение лишь подтверждает прием ордера.
//
// Идемпотентность держится на pending-домене: защитные уровни
// изымаются по correlation id ровно один раз, повторный отчет по тому
// же ордеру не найдет уровней и будет проигнорирован.

// OrderHistory сохраняет исполненные ордера в историю
type OrderHistory interface {
	SaveOrder(order *models.OrderRecord) error
}

// OrderNotifier уведомляет UI об исполненном ордере
type OrderNotifier func(record models.OrderRecord)

// Reconciler приводит состояние бота в соответствие отчетам биржи
type Reconciler struct {
	state   *StateStore
	history OrderHistory
	notify  OrderNotifier

	baseAsset  string
	quoteAsset string
}

// NewReconciler создает реконсилиатор событий аккаунта
func NewReconciler(state *StateStore, history OrderHistory) *Reconciler {
	return &Reconciler{
		state:   state,
		history: history,
	}
}

// SetAssets устанавливает активы символа (из exchangeInfo при старте)
func (r *Reconciler) SetAssets(base, quote string) {
	r.baseAsset = base
	r.quoteAsset = quote
}

// SetOrderNotifier регистрирует уведомление об исполненных ордерах
func (r *Reconciler) SetOrderNotifier(n OrderNotifier) {
	r.notify = n
}

// OnExecutionReport обрабатывает отчет об исполнении ордера
func (r *Reconciler) OnExecutionReport(report models.ExecutionReport) {
	RecordEvent("execution_report")

	// Для отмен биржа присылает исходный client id отдельным полем
	clientID := report.ClientOrderID
	if report.OrigClientID != "" && strings.HasPrefix(report.OrigClientID, "bot_") {
		clientID = report.OrigClientID
	}

	// Чужие ордера (ручная торговля через терминал) не трогаем
	if !strings.HasPrefix(clientID, "bot_") {
		return
	}

	// Промежуточные статусы ждут финального отчета
	if !models.IsTerminalOrderStatus(report.Status) {
		return
	}

	// Изъятие уровней - единственная точка дедупликации
	risk, ok := r.state.ConsumePendingRisk(clientID)
	if !ok {
		logger.Debug("execution report without pending risk, already processed",
			zap.String("client_order_id", clientID),
			zap.String("status", report.Status))
		return
	}

	RecordOrderOutcome(report.Side, report.Status)

	switch {
	case report.Status == models.OrderStatusFilled && risk.IsEntry:
		r.applyEntryFill(clientID, report, risk)
	case report.Status == models.OrderStatusFilled:
		r.applyExitFill(clientID, report, risk)
	default:
		r.revertFailedOrder(clientID, report, risk)
	}
}

// applyEntryFill фиксирует открытие позиции
func (r *Reconciler) applyEntryFill(clientID string, report models.ExecutionReport, risk models.PendingRisk) {
	// Средняя цена по совокупному исполнению, а не по последнему трейду
	avgPrice := report.AvgFillPrice()

	entry := &models.EntryDetails{
		EntryPrice:      avgPrice,
		Quantity:        report.FilledQty,
		StopLossPrice:   risk.StopLossPrice,
		TakeProfitPrice: risk.TakeProfitPrice,
		TakeProfit2:     risk.TakeProfit2,
		HighestPrice:    avgPrice,
		LowestPrice:     avgPrice,
		EntryTime:       report.TransactionTime,
		StrategyType:    risk.StrategyType,
	}

	status := models.StatusRunning
	inPosition := true
	if err := r.state.ApplyCore(CoreUpdate{
		Status:         &status,
		InPosition:     &inPosition,
		Entry:          entry,
		ClearOpenOrder: true,
	}); err != nil {
		logger.Error("failed to apply entry fill", zap.Error(err))
		return
	}

	logger.Info("position opened",
		zap.String("client_order_id", clientID),
		zap.String("avg_price", avgPrice.String()),
		zap.String("qty", report.FilledQty.String()),
		zap.String("stop_loss", risk.StopLossPrice.String()),
		zap.String("take_profit", risk.TakeProfitPrice.String()))

	r.saveRecord(clientID, report, risk, decimal.Zero)
}

// applyExitFill фиксирует закрытие позиции
func (r *Reconciler) applyExitFill(clientID string, report models.ExecutionReport, risk models.PendingRisk) {
	avgPrice := report.AvgFillPrice()

	performance := decimal.Zero
	if entry := r.state.Entry(); entry != nil {
		performance = utils.PerformancePct(entry.EntryPrice, avgPrice)
	}

	status := models.StatusRunning
	inPosition := false
	if err := r.state.ApplyCore(CoreUpdate{
		Status:         &status,
		InPosition:     &inPosition,
		ClearEntry:     true,
		ClearOpenOrder: true,
	}); err != nil {
		logger.Error("failed to apply exit fill", zap.Error(err))
		return
	}

	RecordExit(risk.ExitReason)

	logger.Info("position closed",
		zap.String("client_order_id", clientID),
		zap.String("avg_price", avgPrice.String()),
		zap.String("reason", risk.ExitReason),
		zap.String("performance_pct", performance.StringFixed(4)))

	r.saveRecord(clientID, report, risk, performance)
}

// revertFailedOrder откатывает состояние после CANCELED/REJECTED/EXPIRED.
//
// Для входа: позиции не было и нет, возвращаемся в RUNNING.
// Для выхода: позиция осталась открытой, inPosition восстанавливается.
func (r *Reconciler) revertFailedOrder(clientID string, report models.ExecutionReport, risk models.PendingRisk) {
	status := models.StatusRunning
	update := CoreUpdate{Status: &status, ClearOpenOrder: true}

	if !risk.IsEntry {
		inPosition := true
		update.InPosition = &inPosition
	} else {
		inPosition := false
		update.InPosition = &inPosition
	}

	if err := r.state.ApplyCore(update); err != nil {
		logger.Error("failed to revert after failed order", zap.Error(err))
	}

	// Неотправленный ордер не должен выжигать cooldown-окно
	r.state.ReleaseOrderSlot()

	logger.Warn("order failed, state reverted",
		zap.String("client_order_id", clientID),
		zap.String("status", report.Status),
		zap.Bool("is_entry", risk.IsEntry))
}

// OnBalanceUpdate обрабатывает обновление баланса из user data stream
func (r *Reconciler) OnBalanceUpdate(asset string, free decimal.Decimal) {
	freeF, _ := free.Float64()
	RecordBalance(asset, freeF)

	switch asset {
	case r.quoteAsset:
		r.applyBalances(&free, nil)
	case r.baseAsset:
		r.applyBalances(nil, &free)

		// Нулевой базовый баланс при открытой позиции: позиция закрыта
		// мимо бота (вручную или другим клиентом) - принудительный сброс.
		// Во время EXITING ноль штатен, им займется отчет об исполнении.
		if free.IsZero() && r.state.InPosition() && r.state.Status() == models.StatusRunning {
			inPosition := false
			if err := r.state.ApplyCore(CoreUpdate{InPosition: &inPosition, ClearEntry: true}); err != nil {
				logger.Error("failed to clear position on zero balance", zap.Error(err))
				return
			}
			logger.Warn("base balance dropped to zero while in position, position cleared")
		}
	}
}

func (r *Reconciler) applyBalances(quote, base *decimal.Decimal) {
	if err := r.state.ApplyCore(CoreUpdate{QuoteBalance: quote, BaseBalance: base}); err != nil {
		logger.Error("failed to apply balance update", zap.Error(err))
	}
}

// saveRecord пишет исполненный ордер в историю и уведомляет UI
func (r *Reconciler) saveRecord(clientID string, report models.ExecutionReport, risk models.PendingRisk, performance decimal.Decimal) {
	record := models.OrderRecord{
		ClientOrderID:  clientID,
		ExchangeID:     report.OrderID,
		Symbol:         report.Symbol,
		Side:           report.Side,
		Type:           report.Type,
		Quantity:       report.FilledQty,
		PriceAvg:       report.AvgFillPrice(),
		QuoteQty:       report.FilledQuoteQty,
		Status:         report.Status,
		IsEntry:        risk.IsEntry,
		ExitReason:     risk.ExitReason,
		StrategyType:   risk.StrategyType,
		PerformancePct: performance,
		CreatedAt:      report.TransactionTime,
	}

	if r.history != nil {
		if err := r.history.SaveOrder(&record); err != nil {
			logger.Error("failed to save order history", zap.Error(err))
		}
	}

	if r.notify != nil {
		r.notify(record)
	}
}
