package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/strategy"
)

// fakeGateway считает обращения к бирже и отдает заготовленные ответы
type fakeGateway struct {
	placed     []exchange.OrderRequest
	canceled   []string
	placeErr   error
	placeReply *exchange.OrderResult
}

func (g *fakeGateway) GetSymbolRules(ctx context.Context, symbol string) (*models.SymbolRules, error) {
	return testRules(), nil
}

func (g *fakeGateway) GetBalances(ctx context.Context, baseAsset, quoteAsset string) (*models.BalanceSnapshot, error) {
	return &models.BalanceSnapshot{}, nil
}

func (g *fakeGateway) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return nil, nil
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	g.placed = append(g.placed, req)
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	if g.placeReply != nil {
		return g.placeReply, nil
	}
	return &exchange.OrderResult{
		ClientOrderID: req.ClientOrderID,
		ExchangeID:    1,
		Status:        models.OrderStatusNew,
	}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	g.canceled = append(g.canceled, clientOrderID)
	return nil
}

func (g *fakeGateway) Close() error { return nil }

func testRules() *models.SymbolRules {
	return &models.SymbolRules{
		StepSize:    decimal.RequireFromString("0.001"),
		TickSize:    decimal.RequireFromString("0.01"),
		MinQty:      decimal.RequireFromString("0.001"),
		MinNotional: decimal.RequireFromString("10"),
		BaseAsset:   "BTC",
		QuoteAsset:  "USDT",
	}
}

type executorFixture struct {
	exec    *Executor
	gateway *fakeGateway
	state   *StateStore
	cfg     *ConfigStore
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	cfg := newTestConfigStore(t)
	state := newRunningStore(t, nil)
	gateway := &fakeGateway{}
	exec := NewExecutor(gateway, cfg, state)
	exec.SetSymbolRules(testRules())

	// Рабочий баланс quote-актива
	q := decimal.RequireFromString("10000")
	if err := state.ApplyCore(CoreUpdate{QuoteBalance: &q}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	return &executorFixture{exec: exec, gateway: gateway, state: state, cfg: cfg}
}

func marketCtx(f *executorFixture, bid, ask string) *strategy.MarketContext {
	return &strategy.MarketContext{
		Config: f.cfg.Get(),
		Ticker: &models.BookTicker{
			BidPrice: decimal.RequireFromString(bid),
			AskPrice: decimal.RequireFromString(ask),
		},
		Now: time.Now(),
	}
}

func TestExecutor_EntryPlacesOrder(t *testing.T) {
	f := newExecutorFixture(t)

	intent := &models.OrderIntent{Side: models.SideBuy, Type: models.OrderTypeMarket}
	f.exec.executeEntry(intent, marketCtx(f, "100", "100.1"))

	if len(f.gateway.placed) != 1 {
		t.Fatalf("PlaceOrder вызван %d раз, want 1", len(f.gateway.placed))
	}

	req := f.gateway.placed[0]
	if req.Side != models.SideBuy || req.Type != models.OrderTypeMarket {
		t.Errorf("запрос %s/%s, want BUY/MARKET", req.Side, req.Type)
	}
	if !strings.HasPrefix(req.ClientOrderID, "bot_entry_") {
		t.Errorf("correlation id %q должен иметь префикс bot_entry_", req.ClientOrderID)
	}
	if got := f.state.Status(); got != models.StatusEntering {
		t.Errorf("Status() = %s, want ENTERING до подтверждения исполнения", got)
	}
	if f.state.PendingCount() != 1 {
		t.Errorf("PendingCount() = %d, уровни привязываются до отправки", f.state.PendingCount())
	}
}

func TestExecutor_SecondEntryInsideCooldownSkipped(t *testing.T) {
	// Два сигнала подряд внутри окна cooldown: до биржи доходит
	// ровно один ордер, без обращения к шлюзу на втором
	f := newExecutorFixture(t)

	intent := &models.OrderIntent{Side: models.SideBuy, Type: models.OrderTypeMarket}
	f.exec.executeEntry(intent, marketCtx(f, "100", "100.1"))

	if len(f.gateway.placed) != 1 {
		t.Fatalf("первый вход: PlaceOrder вызван %d раз, want 1", len(f.gateway.placed))
	}

	// Возврат в RUNNING, как будто вход завершился, но cooldown активен
	running := models.StatusRunning
	if err := f.state.ApplyCore(CoreUpdate{Status: &running}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	f.exec.executeEntry(intent, marketCtx(f, "100", "100.1"))

	if len(f.gateway.placed) != 1 {
		t.Errorf("второй вход внутри cooldown: PlaceOrder вызван %d раз, want 1", len(f.gateway.placed))
	}
}

func TestExecutor_EntryDeclinedBySizing(t *testing.T) {
	f := newExecutorFixture(t)

	// Баланса не хватает даже на минимальный notional
	q := decimal.RequireFromString("1")
	if err := f.state.ApplyCore(CoreUpdate{QuoteBalance: &q}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	intent := &models.OrderIntent{Side: models.SideBuy, Type: models.OrderTypeMarket}
	f.exec.executeEntry(intent, marketCtx(f, "100", "100.1"))

	if len(f.gateway.placed) != 0 {
		t.Errorf("PlaceOrder вызван %d раз при отказе сайзинга, want 0", len(f.gateway.placed))
	}
	if got := f.state.Status(); got != models.StatusRunning {
		t.Errorf("Status() = %s, want RUNNING", got)
	}
	// Слот освобожден: следующий сигнал не заблокирован
	if !f.state.TryReserveOrderSlot(f.cfg.Get().OrderCooldownMs) {
		t.Error("cooldown-слот должен быть освобожден после отказа сайзинга")
	}
}

func TestExecutor_EntryRevertedOnGatewayError(t *testing.T) {
	f := newExecutorFixture(t)
	f.gateway.placeErr = errors.New("insufficient balance")

	intent := &models.OrderIntent{Side: models.SideBuy, Type: models.OrderTypeMarket}
	f.exec.executeEntry(intent, marketCtx(f, "100", "100.1"))

	if got := f.state.Status(); got != models.StatusRunning {
		t.Errorf("Status() = %s после отказа шлюза, want RUNNING", got)
	}
	if f.state.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, уровни должны сниматься при отказе", f.state.PendingCount())
	}
	if f.state.InPosition() {
		t.Error("позиция не должна открываться при отказе")
	}
	if f.state.LastError() == "" {
		t.Error("причина отказа должна фиксироваться")
	}
}

func TestExecutor_LimitEntryTracked(t *testing.T) {
	f := newExecutorFixture(t)

	intent := &models.OrderIntent{
		Side:  models.SideBuy,
		Type:  models.OrderTypeLimit,
		Price: decimal.RequireFromString("100"),
	}
	f.exec.executeEntry(intent, marketCtx(f, "100", "100.1"))

	if len(f.gateway.placed) != 1 {
		t.Fatalf("PlaceOrder вызван %d раз, want 1", len(f.gateway.placed))
	}
	if got := f.gateway.placed[0].Price.String(); got != "100" {
		t.Errorf("лимитная цена = %s, want 100", got)
	}

	oo := f.state.OpenOrder()
	if oo == nil {
		t.Fatal("LIMIT-ордер должен отслеживаться до исполнения")
	}
	if oo.ClientOrderID != f.gateway.placed[0].ClientOrderID {
		t.Error("отслеживается не тот correlation id")
	}
	if got := f.state.Status(); got != models.StatusEntering {
		t.Errorf("Status() = %s, want ENTERING пока ордер висит", got)
	}
}

func TestExecutor_EntrySkippedWhileInPosition(t *testing.T) {
	f := newExecutorFixture(t)

	inPos := true
	if err := f.state.ApplyCore(CoreUpdate{InPosition: &inPos, Entry: testEntry("100")}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	intent := &models.OrderIntent{Side: models.SideBuy, Type: models.OrderTypeMarket}
	f.exec.executeEntry(intent, marketCtx(f, "100", "100.1"))

	if len(f.gateway.placed) != 0 {
		t.Errorf("PlaceOrder вызван %d раз при открытой позиции, want 0", len(f.gateway.placed))
	}
}

func TestExecutor_ExitPlacesMarketSell(t *testing.T) {
	f := newExecutorFixture(t)

	inPos := true
	base := decimal.RequireFromString("0.5")
	if err := f.state.ApplyCore(CoreUpdate{
		InPosition:  &inPos,
		Entry:       testEntry("100"),
		BaseBalance: &base,
	}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	intent := &models.OrderIntent{
		Side:       models.SideSell,
		Type:       models.OrderTypeMarket,
		ExitReason: models.ExitReasonStopLoss,
	}
	f.exec.executeExit(intent, marketCtx(f, "99.4", "99.5"))

	if len(f.gateway.placed) != 1 {
		t.Fatalf("PlaceOrder вызван %d раз, want 1", len(f.gateway.placed))
	}
	req := f.gateway.placed[0]
	if req.Side != models.SideSell || req.Type != models.OrderTypeMarket {
		t.Errorf("запрос %s/%s, want SELL/MARKET", req.Side, req.Type)
	}
	if got := req.Quantity.String(); got != "0.5" {
		t.Errorf("Quantity = %s, want 0.5", got)
	}
	if !strings.HasPrefix(req.ClientOrderID, "bot_exit_") {
		t.Errorf("correlation id %q должен иметь префикс bot_exit_", req.ClientOrderID)
	}
	if got := f.state.Status(); got != models.StatusExiting {
		t.Errorf("Status() = %s, want EXITING", got)
	}
}

func TestExecutor_ExitQuantityCappedByBalance(t *testing.T) {
	// Фактический баланс меньше количества позиции (комиссия в
	// базовом активе): продается доступное, округленное вниз по шагу
	f := newExecutorFixture(t)

	inPos := true
	base := decimal.RequireFromString("0.4995")
	if err := f.state.ApplyCore(CoreUpdate{
		InPosition:  &inPos,
		Entry:       testEntry("100"), // Quantity 0.5
		BaseBalance: &base,
	}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	intent := &models.OrderIntent{Side: models.SideSell, Type: models.OrderTypeMarket, ExitReason: models.ExitReasonSignal}
	f.exec.executeExit(intent, marketCtx(f, "101", "101.1"))

	if len(f.gateway.placed) != 1 {
		t.Fatalf("PlaceOrder вызван %d раз, want 1", len(f.gateway.placed))
	}
	if got := f.gateway.placed[0].Quantity.String(); got != "0.499" {
		t.Errorf("Quantity = %s, want 0.499 (floor по шагу 0.001)", got)
	}
}

func TestExecutor_ExitWithZeroBalanceClearsPosition(t *testing.T) {
	f := newExecutorFixture(t)

	inPos := true
	base := decimal.Zero
	if err := f.state.ApplyCore(CoreUpdate{
		InPosition:  &inPos,
		Entry:       testEntry("100"),
		BaseBalance: &base,
	}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	intent := &models.OrderIntent{Side: models.SideSell, Type: models.OrderTypeMarket, ExitReason: models.ExitReasonStopLoss}
	f.exec.executeExit(intent, marketCtx(f, "99", "99.1"))

	if len(f.gateway.placed) != 0 {
		t.Errorf("PlaceOrder вызван %d раз при нулевом балансе, want 0", len(f.gateway.placed))
	}
	if f.state.InPosition() {
		t.Error("фантомная позиция должна быть принудительно закрыта")
	}
	if f.state.Entry() != nil {
		t.Error("детали фантомной позиции должны быть очищены")
	}
}

func TestNewClientOrderID(t *testing.T) {
	id1 := newClientOrderID("entry")
	id2 := newClientOrderID("entry")

	if !strings.HasPrefix(id1, "bot_entry_") {
		t.Errorf("id %q должен иметь префикс bot_entry_", id1)
	}
	if id1 == id2 {
		t.Error("correlation id должны быть уникальны")
	}
	// Binance ограничивает clientOrderId 36 символами
	if len(id1) > 36 {
		t.Errorf("len(id) = %d, превышает лимит биржи 36", len(id1))
	}
}
