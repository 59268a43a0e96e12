package strategy

import (
	"sync"

	"tradebot/internal/models"
)

// SwingStrategy - свинг по пересечению EMA (SWING).
//
// Вход long на закрытии свечи:
//   - короткая EMA пересекает длинную снизу вверх
//   - RSI ниже porога перекупленности (не входим на излете движения)
//   - опционально: закрытие выше фильтрующей EMA (торговля по тренду)
//   - опционально: объем выше своей средней
//
// Выход: обратное пересечение EMA либо защитный выход.
type SwingStrategy struct {
	// PrepareIndicators пишет кеш из потока закрытых свечей, а
	// CheckEntry/CheckExit читают его из потока тиков
	mu    sync.RWMutex
	frame *IndicatorFrame

	emaShort  []float64
	emaLong   []float64
	rsi       []float64
	emaFilter []float64
	volumeMA  []float64
}

// NewSwingStrategy создает свинг-стратегию
func NewSwingStrategy() *SwingStrategy {
	return &SwingStrategy{}
}

func (s *SwingStrategy) Name() string { return models.StrategySwing }

func (s *SwingStrategy) Kind() Kind { return KindCandle }

// RequiredCandles возвращает прогрев для самого длинного индикатора
func (s *SwingStrategy) RequiredCandles(cfg *models.TradingConfig) int {
	required := cfg.EMALongPeriod
	if cfg.RSIPeriod > required {
		required = cfg.RSIPeriod
	}
	if cfg.UseEMAFilter && cfg.EMAFilterPeriod > required {
		required = cfg.EMAFilterPeriod
	}
	if cfg.UseVolumeConfirmation && cfg.VolumeAvgPeriod > required {
		required = cfg.VolumeAvgPeriod
	}
	return required + 5
}

// PrepareIndicators пересчитывает серии по закрытым свечам
func (s *SwingStrategy) PrepareIndicators(mc *MarketContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := mc.Config
	if cfg == nil || len(mc.Candles) < s.RequiredCandles(cfg) {
		s.frame = nil
		return
	}

	f := NewIndicatorFrame(mc.Candles)
	s.frame = f

	s.emaShort = f.EMA(cfg.EMAShortPeriod)
	s.emaLong = f.EMA(cfg.EMALongPeriod)
	s.rsi = f.RSI(cfg.RSIPeriod)

	if cfg.UseEMAFilter {
		s.emaFilter = f.EMA(cfg.EMAFilterPeriod)
	} else {
		s.emaFilter = nil
	}

	if cfg.UseVolumeConfirmation {
		s.volumeMA = f.VolumeSMA(cfg.VolumeAvgPeriod)
	} else {
		s.volumeMA = nil
	}
}

// CheckEntry ищет бычье пересечение EMA с подтверждениями
func (s *SwingStrategy) CheckEntry(mc *MarketContext) *models.OrderIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := mc.Config
	if s.frame == nil || len(s.emaShort) == 0 || len(s.emaLong) == 0 || len(s.rsi) == 0 {
		return nil
	}

	// Пересечение снизу вверх
	if !(last(s.emaShort) > last(s.emaLong) && prev(s.emaShort) <= prev(s.emaLong)) {
		return nil
	}

	// Не входим в перекупленность
	overbought, _ := cfg.RSIOverbought.Float64()
	if last(s.rsi) >= overbought {
		return nil
	}

	closePrice := last(s.frame.Close)

	// Трендовый фильтр
	if cfg.UseEMAFilter && len(s.emaFilter) > 0 && closePrice <= last(s.emaFilter) {
		return nil
	}

	// Подтверждение объемом
	if cfg.UseVolumeConfirmation && len(s.volumeMA) > 0 &&
		last(s.frame.Volume) <= last(s.volumeMA) {
		return nil
	}

	return &models.OrderIntent{
		Side: models.SideBuy,
		Type: models.OrderTypeMarket,
	}
}

// CheckExit проверяет защитные выходы и медвежье пересечение EMA
func (s *SwingStrategy) CheckExit(mc *MarketContext) *models.OrderIntent {
	if intent := checkProtectiveExit(mc); intent != nil {
		return intent
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil || len(s.emaShort) == 0 || len(s.emaLong) == 0 {
		return nil
	}

	// Пересечение сверху вниз - сигнал на выход
	if last(s.emaShort) < last(s.emaLong) && prev(s.emaShort) >= prev(s.emaLong) {
		return &models.OrderIntent{
			Side:       models.SideSell,
			Type:       models.OrderTypeMarket,
			ExitReason: models.ExitReasonSignal,
		}
	}

	return nil
}
