package bot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradebot/internal/models"
)

// fakeHistory накапливает сохраненные записи ордеров
type fakeHistory struct {
	saved []*models.OrderRecord
}

func (f *fakeHistory) SaveOrder(order *models.OrderRecord) error {
	f.saved = append(f.saved, order)
	return nil
}

type reconcilerFixture struct {
	rec     *Reconciler
	state   *StateStore
	history *fakeHistory
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()

	state := newRunningStore(t, nil)
	history := &fakeHistory{}
	rec := NewReconciler(state, history)
	rec.SetAssets("BTC", "USDT")

	return &reconcilerFixture{rec: rec, state: state, history: history}
}

func entryReport(clientID, status string) models.ExecutionReport {
	return models.ExecutionReport{
		Symbol:          "BTCUSDT",
		ClientOrderID:   clientID,
		OrderID:         42,
		Side:            models.SideBuy,
		Type:            models.OrderTypeMarket,
		Status:          status,
		FilledQty:       decimal.RequireFromString("0.5"),
		FilledQuoteQty:  decimal.RequireFromString("50.25"),
		TransactionTime: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func pendingEntry(clientID string) models.PendingRisk {
	return models.PendingRisk{
		ClientOrderID:   clientID,
		Side:            models.SideBuy,
		IsEntry:         true,
		StopLossPrice:   decimal.RequireFromString("99.5"),
		TakeProfitPrice: decimal.RequireFromString("101"),
		StrategyType:    models.StrategyScalping,
		CreatedAt:       time.Now(),
	}
}

func TestReconciler_EntryFillOpensPosition(t *testing.T) {
	f := newReconcilerFixture(t)

	entering := models.StatusEntering
	if err := f.state.ApplyCore(CoreUpdate{Status: &entering}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}
	f.state.AddPendingRisk(pendingEntry("bot_entry_1_abc"))

	f.rec.OnExecutionReport(entryReport("bot_entry_1_abc", models.OrderStatusFilled))

	if got := f.state.Status(); got != models.StatusRunning {
		t.Errorf("Status() = %s, want RUNNING", got)
	}
	if !f.state.InPosition() {
		t.Fatal("позиция должна быть открыта")
	}

	entry := f.state.Entry()
	// Средняя цена: 50.25 / 0.5 = 100.5 (по совокупному исполнению)
	if got := entry.EntryPrice.String(); got != "100.5" {
		t.Errorf("EntryPrice = %s, want 100.5", got)
	}
	if !entry.StopLossPrice.Equal(decimal.RequireFromString("99.5")) {
		t.Error("стоп-лосс должен прийти из pending-уровней")
	}
	if !entry.HighestPrice.Equal(entry.EntryPrice) || !entry.LowestPrice.Equal(entry.EntryPrice) {
		t.Error("трейлинг-экстремумы инициализируются ценой входа")
	}

	if len(f.history.saved) != 1 {
		t.Fatalf("в историю записано %d ордеров, want 1", len(f.history.saved))
	}
	if !f.history.saved[0].IsEntry {
		t.Error("запись должна быть помечена как вход")
	}
}

func TestReconciler_DuplicateReportIgnored(t *testing.T) {
	// Биржа может прислать повторный отчет: уровни изымаются ровно
	// один раз, второй отчет не порождает второй записи
	f := newReconcilerFixture(t)

	entering := models.StatusEntering
	if err := f.state.ApplyCore(CoreUpdate{Status: &entering}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}
	f.state.AddPendingRisk(pendingEntry("bot_entry_1_abc"))

	report := entryReport("bot_entry_1_abc", models.OrderStatusFilled)
	f.rec.OnExecutionReport(report)
	f.rec.OnExecutionReport(report)

	if len(f.history.saved) != 1 {
		t.Errorf("в историю записано %d ордеров, want 1", len(f.history.saved))
	}
	if !f.state.InPosition() {
		t.Error("позиция должна остаться открытой")
	}
}

func TestReconciler_RejectedEntryReverted(t *testing.T) {
	// Отказ биржи во время входа: статус возвращается в RUNNING,
	// correlation id снят, позиции нет
	f := newReconcilerFixture(t)

	entering := models.StatusEntering
	if err := f.state.ApplyCore(CoreUpdate{Status: &entering}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}
	f.state.AddPendingRisk(pendingEntry("bot_entry_1_abc"))
	if !f.state.TryReserveOrderSlot(60000) {
		t.Fatal("слот должен быть свободен")
	}

	f.rec.OnExecutionReport(entryReport("bot_entry_1_abc", models.OrderStatusRejected))

	if got := f.state.Status(); got != models.StatusRunning {
		t.Errorf("Status() = %s, want RUNNING", got)
	}
	if f.state.InPosition() {
		t.Error("позиция не должна открываться при отказе")
	}
	if f.state.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, correlation id должен быть снят", f.state.PendingCount())
	}
	// Cooldown-слот освобожден
	if !f.state.TryReserveOrderSlot(60000) {
		t.Error("слот должен быть освобожден после отказа")
	}
	if len(f.history.saved) != 0 {
		t.Errorf("отказ не пишется в историю исполнений, записано %d", len(f.history.saved))
	}
}

func TestReconciler_CanceledExitRestoresPosition(t *testing.T) {
	// Отмена ордера на выход: позиция осталась на бирже,
	// inPosition восстанавливается
	f := newReconcilerFixture(t)

	inPos := true
	exiting := models.StatusExiting
	if err := f.state.ApplyCore(CoreUpdate{InPosition: &inPos, Entry: testEntry("100")}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}
	if err := f.state.ApplyCore(CoreUpdate{Status: &exiting}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	f.state.AddPendingRisk(models.PendingRisk{
		ClientOrderID: "bot_exit_1_abc",
		Side:          models.SideSell,
		IsEntry:       false,
		ExitReason:    models.ExitReasonStopLoss,
	})

	// Отчет об отмене приходит с исходным id в отдельном поле
	report := models.ExecutionReport{
		Symbol:        "BTCUSDT",
		ClientOrderID: "web_cancel_123",
		OrigClientID:  "bot_exit_1_abc",
		Side:          models.SideSell,
		Status:        models.OrderStatusCanceled,
	}
	f.rec.OnExecutionReport(report)

	if got := f.state.Status(); got != models.StatusRunning {
		t.Errorf("Status() = %s, want RUNNING", got)
	}
	if !f.state.InPosition() {
		t.Error("позиция должна остаться открытой после отмены выхода")
	}
	if f.state.Entry() == nil {
		t.Error("детали позиции должны сохраниться")
	}
}

func TestReconciler_ExitFillClosesPosition(t *testing.T) {
	f := newReconcilerFixture(t)

	inPos := true
	exiting := models.StatusExiting
	if err := f.state.ApplyCore(CoreUpdate{InPosition: &inPos, Entry: testEntry("100")}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}
	if err := f.state.ApplyCore(CoreUpdate{Status: &exiting}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	f.state.AddPendingRisk(models.PendingRisk{
		ClientOrderID: "bot_exit_1_abc",
		Side:          models.SideSell,
		IsEntry:       false,
		ExitReason:    models.ExitReasonTakeProfit,
		StrategyType:  models.StrategyScalping,
	})

	// Продано 0.5 по средней 101: выручка 50.5
	f.rec.OnExecutionReport(models.ExecutionReport{
		Symbol:          "BTCUSDT",
		ClientOrderID:   "bot_exit_1_abc",
		OrderID:         43,
		Side:            models.SideSell,
		Type:            models.OrderTypeMarket,
		Status:          models.OrderStatusFilled,
		FilledQty:       decimal.RequireFromString("0.5"),
		FilledQuoteQty:  decimal.RequireFromString("50.5"),
		TransactionTime: time.Now(),
	})

	if got := f.state.Status(); got != models.StatusRunning {
		t.Errorf("Status() = %s, want RUNNING", got)
	}
	if f.state.InPosition() {
		t.Error("позиция должна быть закрыта")
	}
	if f.state.Entry() != nil {
		t.Error("детали позиции должны быть очищены")
	}

	if len(f.history.saved) != 1 {
		t.Fatalf("в историю записано %d ордеров, want 1", len(f.history.saved))
	}
	rec := f.history.saved[0]
	if rec.ExitReason != models.ExitReasonTakeProfit {
		t.Errorf("ExitReason = %s, want TP", rec.ExitReason)
	}
	// Вход 100, выход 101: +1%
	if got := rec.PerformancePct.String(); got != "1" {
		t.Errorf("PerformancePct = %s, want 1", got)
	}
}

func TestReconciler_ForeignOrdersIgnored(t *testing.T) {
	f := newReconcilerFixture(t)

	// Ручной ордер через терминал биржи: без префикса bot_
	f.rec.OnExecutionReport(models.ExecutionReport{
		ClientOrderID: "web_manual_order",
		Side:          models.SideBuy,
		Status:        models.OrderStatusFilled,
		FilledQty:     decimal.RequireFromString("1"),
	})

	if f.state.InPosition() {
		t.Error("чужие ордера не меняют состояние позиции")
	}
	if len(f.history.saved) != 0 {
		t.Errorf("чужие ордера не пишутся в историю, записано %d", len(f.history.saved))
	}
}

func TestReconciler_NonTerminalStatusIgnored(t *testing.T) {
	f := newReconcilerFixture(t)
	f.state.AddPendingRisk(pendingEntry("bot_entry_1_abc"))

	f.rec.OnExecutionReport(entryReport("bot_entry_1_abc", models.OrderStatusPartiallyFilled))

	// Уровни не изъяты: финальный отчет еще впереди
	if f.state.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, want 1 до финального статуса", f.state.PendingCount())
	}
	if f.state.InPosition() {
		t.Error("частичное исполнение не открывает позицию")
	}
}

func TestReconciler_ZeroBaseBalanceClearsPosition(t *testing.T) {
	// Позиция закрыта мимо бота: нулевой базовый баланс в RUNNING
	// принудительно сбрасывает позицию
	f := newReconcilerFixture(t)

	inPos := true
	if err := f.state.ApplyCore(CoreUpdate{InPosition: &inPos, Entry: testEntry("100")}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	f.rec.OnBalanceUpdate("BTC", decimal.Zero)

	if f.state.InPosition() {
		t.Error("позиция должна быть сброшена при нулевом базовом балансе")
	}
	if f.state.Entry() != nil {
		t.Error("детали позиции должны быть очищены")
	}
}

func TestReconciler_ZeroBalanceDuringExitKept(t *testing.T) {
	// Во время EXITING нулевой баланс штатен: им займется отчет
	// об исполнении, сброс не выполняется
	f := newReconcilerFixture(t)

	inPos := true
	exiting := models.StatusExiting
	if err := f.state.ApplyCore(CoreUpdate{InPosition: &inPos, Entry: testEntry("100")}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}
	if err := f.state.ApplyCore(CoreUpdate{Status: &exiting}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	f.rec.OnBalanceUpdate("BTC", decimal.Zero)

	if !f.state.InPosition() {
		t.Error("во время EXITING позиция не сбрасывается по балансу")
	}
}

func TestReconciler_BalanceUpdatesApplied(t *testing.T) {
	f := newReconcilerFixture(t)

	f.rec.OnBalanceUpdate("USDT", decimal.RequireFromString("1234.5"))
	f.rec.OnBalanceUpdate("BTC", decimal.RequireFromString("0.25"))
	f.rec.OnBalanceUpdate("ETH", decimal.RequireFromString("99")) // чужой актив

	quote, base := f.state.Balances()
	if got := quote.String(); got != "1234.5" {
		t.Errorf("quote = %s, want 1234.5", got)
	}
	if got := base.String(); got != "0.25" {
		t.Errorf("base = %s, want 0.25", got)
	}
}
