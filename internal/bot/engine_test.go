package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// fakeClient - шлюз и потоки биржи для тестов жизненного цикла
type fakeClient struct {
	fakeGateway

	rulesErr    error
	balances    models.BalanceSnapshot
	candles     []models.Candle
	marketSubs  int
	userSubs    int
	closedCount int
}

func (c *fakeClient) GetSymbolRules(ctx context.Context, symbol string) (*models.SymbolRules, error) {
	if c.rulesErr != nil {
		return nil, c.rulesErr
	}
	return testRules(), nil
}

func (c *fakeClient) GetBalances(ctx context.Context, baseAsset, quoteAsset string) (*models.BalanceSnapshot, error) {
	return &c.balances, nil
}

func (c *fakeClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	return c.candles, nil
}

func (c *fakeClient) SubscribeMarket(ctx context.Context, symbol, interval string, depthLevels int, handlers exchange.MarketHandlers) error {
	c.marketSubs++
	return nil
}

func (c *fakeClient) SubscribeUserData(ctx context.Context, handlers exchange.AccountHandlers) error {
	c.userSubs++
	return nil
}

func (c *fakeClient) Close() error {
	c.closedCount++
	return nil
}

func historicalCandles(n int) []models.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			Close:    decimal.NewFromInt(100),
			High:     decimal.NewFromInt(101),
			Low:      decimal.NewFromInt(99),
			Volume:   decimal.NewFromInt(10),
			Closed:   true,
		})
	}
	return out
}

type engineFixture struct {
	engine *Engine
	client *fakeClient
	state  *StateStore
	cfg    *ConfigStore
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	cfg := newTestConfigStore(t)
	state := NewStateStore(nil, 50)
	client := &fakeClient{
		balances: models.BalanceSnapshot{
			QuoteFree: decimal.RequireFromString("10000"),
			BaseFree:  decimal.Zero,
		},
		candles: historicalCandles(60),
	}

	exec := NewExecutor(client, cfg, state)
	rec := NewReconciler(state, nil)
	engine := NewEngine(cfg, state, client, exec, rec)

	return &engineFixture{engine: engine, client: client, state: state, cfg: cfg}
}

func TestEngine_StartHappyPath(t *testing.T) {
	f := newEngineFixture(t)

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer f.engine.Stop()

	if got := f.state.Status(); got != models.StatusRunning {
		t.Errorf("Status() = %s, want RUNNING", got)
	}
	if f.client.marketSubs != 1 || f.client.userSubs != 1 {
		t.Errorf("подписки market=%d user=%d, want 1/1", f.client.marketSubs, f.client.userSubs)
	}
	if f.state.CandleCount() == 0 {
		t.Error("бэкфилл свечей должен заполнить кольцо")
	}

	quote, _ := f.state.Balances()
	if got := quote.String(); got != "10000" {
		t.Errorf("quote balance = %s, want 10000", got)
	}
}

func TestEngine_StartTwiceRejected(t *testing.T) {
	f := newEngineFixture(t)

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer f.engine.Stop()

	if err := f.engine.Start(); err == nil {
		t.Error("повторный Start() должен вернуть ошибку")
	}
}

func TestEngine_StartFailsOnRulesError(t *testing.T) {
	// Недоступный exchangeInfo - фатальная проверка: ERROR и отказ
	f := newEngineFixture(t)
	f.client.rulesErr = errors.New("api key invalid")

	if err := f.engine.Start(); err == nil {
		t.Fatal("Start() должен вернуть ошибку при недоступном exchangeInfo")
	}

	if got := f.state.Status(); got != models.StatusError {
		t.Errorf("Status() = %s, want ERROR", got)
	}
	if f.state.LastError() == "" {
		t.Error("причина отказа должна фиксироваться")
	}
	if f.client.marketSubs != 0 {
		t.Error("подписки не создаются при провале инициализации")
	}
	if f.engine.IsRunning() {
		t.Error("движок не должен считаться запущенным")
	}
}

func TestEngine_StopClosesClient(t *testing.T) {
	f := newEngineFixture(t)

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if got := f.state.Status(); got != models.StatusStopped {
		t.Errorf("Status() = %s, want STOPPED", got)
	}
	if f.client.closedCount != 1 {
		t.Errorf("Close() вызван %d раз, want 1", f.client.closedCount)
	}
	if f.engine.IsRunning() {
		t.Error("после Stop() движок не запущен")
	}

	if err := f.engine.Stop(); err == nil {
		t.Error("повторный Stop() должен вернуть ошибку")
	}
}

func TestEngine_StopPreservesPosition(t *testing.T) {
	// Остановка не закрывает позицию: durable-срез переживает рестарт
	f := newEngineFixture(t)

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	inPos := true
	if err := f.state.ApplyCore(CoreUpdate{InPosition: &inPos, Entry: testEntry("100")}); err != nil {
		t.Fatalf("ApplyCore() error = %v", err)
	}

	if err := f.engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if !f.state.InPosition() {
		t.Error("позиция должна пережить остановку")
	}
	if f.state.Entry() == nil {
		t.Error("детали позиции должны сохраниться")
	}
}

func TestEngine_StrategySwitchResetsWarmup(t *testing.T) {
	f := newEngineFixture(t)

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer f.engine.Stop()

	before := f.engine.currentStrategy()
	if before == nil || before.Name() == "" {
		t.Fatal("стратегия должна быть создана при старте")
	}

	if _, err := f.cfg.Update(map[string]string{"STRATEGY_TYPE": "SWING"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	after := f.engine.currentStrategy()
	if after.Name() == before.Name() {
		t.Errorf("стратегия не подменилась: %s", after.Name())
	}
}

func TestEngine_TimeframeSwitchResetsCandles(t *testing.T) {
	f := newEngineFixture(t)

	if err := f.engine.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer f.engine.Stop()

	if f.state.CandleCount() == 0 {
		t.Fatal("кольцо должно быть заполнено бэкфиллом")
	}

	if _, err := f.cfg.Update(map[string]string{"TIMEFRAME": "5m"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if got := f.state.CandleCount(); got != 0 {
		t.Errorf("CandleCount() = %d после смены таймфрейма, want 0", got)
	}
}
