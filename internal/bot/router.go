package bot

import (
	"time"

	"tradebot/internal/models"
	"tradebot/internal/strategy"
)

// ============================================================
// Router - маршрутизация рыночных событий
// ============================================================
//
// Единая точка входа для событий рынка. Правила маршрутизации:
//
//   - bookTicker: снимок в realtime-домен; подтяжка трейлинг-экстремумов
//     позиции; оценка тиковых стратегий и защитных выходов
//   - depth: только снимок в realtime-домен
//   - закрытая свеча: в кольцо; свечные стратегии оцениваются, когда
//     накоплен прогрев индикаторов
//
// Пока отслеживается открытый LIMIT-ордер, стратегии не оцениваются:
// сначала проверяется его таймаут, протухший ордер отменяется ровно
// одним запросом.

// OrderSubmitter - исполнитель ордеров с точки зрения роутера
type OrderSubmitter interface {
	SubmitEntry(intent *models.OrderIntent, mc *strategy.MarketContext)
	SubmitExit(intent *models.OrderIntent, mc *strategy.MarketContext)
	CancelOpenOrder(clientOrderID string)
}

// StrategyProvider возвращает активную стратегию.
// Стратегия может подменяться на лету при смене конфигурации.
type StrategyProvider func() strategy.Strategy

// Router маршрутизирует рыночные события
type Router struct {
	cfg      *ConfigStore
	state    *StateStore
	exec     OrderSubmitter
	strategy StrategyProvider

	now func() time.Time // подменяется в тестах
}

// NewRouter создает роутер рыночных событий
func NewRouter(cfg *ConfigStore, state *StateStore, exec OrderSubmitter, provider StrategyProvider) *Router {
	return &Router{
		cfg:      cfg,
		state:    state,
		exec:     exec,
		strategy: provider,
		now:      time.Now,
	}
}

// OnBookTicker обрабатывает обновление лучших bid/ask
func (r *Router) OnBookTicker(t models.BookTicker) {
	started := r.now()
	RecordEvent("ticker")

	r.state.SetTicker(t)

	status := r.state.Status()
	if !status.IsActive() {
		return
	}

	// Экстремумы позиции двигаются на каждом тике, даже когда
	// стратегия не оценивается
	if r.state.InPosition() {
		_ = r.state.ApplyCore(CoreUpdate{Ticker: &t})
	}

	cfg := r.cfg.Get()

	// Открытый ордер: проверяем таймаут и ждем его разрешения.
	// Проверка идет до оценки стратегий и работает в том числе в
	// статусе ENTERING, пока LIMIT-ордер висит на бирже.
	if r.handleOpenOrder(cfg) {
		return
	}

	st := r.strategy()
	if st == nil || status != models.StatusRunning {
		return
	}

	if r.state.InPosition() {
		mc := r.buildContext(cfg)
		if intent := st.CheckExit(mc); intent != nil {
			r.exec.SubmitExit(intent, mc)
		}
	} else if st.Kind() == strategy.KindTick {
		mc := r.buildContext(cfg)
		if intent := st.CheckEntry(mc); intent != nil {
			r.exec.SubmitEntry(intent, mc)
		}
	}

	TickToSignalLatency.WithLabelValues("ticker").
		Observe(float64(time.Since(started).Microseconds()) / 1000)
}

// OnDepth обрабатывает срез стакана: только снимок, без оценки
// стратегий - решения по стакану принимаются на тиках
func (r *Router) OnDepth(d models.DepthSnapshot) {
	RecordEvent("depth")
	r.state.SetDepth(d)
}

// OnCandle обрабатывает обновление свечи.
// Незакрытые свечи игнорируются: индикаторы считаются только по
// финализированным данным.
func (r *Router) OnCandle(c models.Candle) {
	if !c.Closed {
		return
	}

	started := r.now()
	RecordEvent("candle")

	r.state.AppendCandle(c)

	status := r.state.Status()
	if !status.IsActive() {
		return
	}

	cfg := r.cfg.Get()

	if r.handleOpenOrder(cfg) {
		return
	}

	st := r.strategy()
	if st == nil || status != models.StatusRunning {
		return
	}

	// Свечным стратегиям нужен полный прогрев индикаторов
	if st.Kind() == strategy.KindCandle && r.state.CandleCount() < st.RequiredCandles(cfg) {
		return
	}

	mc := r.buildContext(cfg)
	st.PrepareIndicators(mc)

	if r.state.InPosition() {
		if intent := st.CheckExit(mc); intent != nil {
			r.exec.SubmitExit(intent, mc)
		}
	} else if st.Kind() == strategy.KindCandle {
		if intent := st.CheckEntry(mc); intent != nil {
			r.exec.SubmitEntry(intent, mc)
		}
	}

	TickToSignalLatency.WithLabelValues("candle").
		Observe(float64(time.Since(started).Microseconds()) / 1000)
}

// handleOpenOrder возвращает true, пока отслеживается открытый ордер.
// Протухший LIMIT-ордер отменяется; повторные вызовы не порождают
// дублирующих запросов отмены.
func (r *Router) handleOpenOrder(cfg *models.TradingConfig) bool {
	oo := r.state.OpenOrder()
	if oo == nil {
		return false
	}

	timeout := time.Duration(cfg.ScalpingLimitOrderTimeoutMs) * time.Millisecond
	if timeout > 0 && r.now().Sub(oo.PlacedAt) > timeout {
		if id, ok := r.state.RequestOpenOrderCancel(); ok {
			r.exec.CancelOpenOrder(id)
		}
	}

	return true
}

// buildContext собирает рыночный контекст из защитных копий состояния
func (r *Router) buildContext(cfg *models.TradingConfig) *strategy.MarketContext {
	return &strategy.MarketContext{
		Config:  cfg,
		Ticker:  r.state.Ticker(),
		Depth:   r.state.Depth(),
		Candles: r.state.Candles(),
		Entry:   r.state.Entry(),
		Now:     r.now(),
	}
}
