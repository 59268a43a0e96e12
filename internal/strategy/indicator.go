package strategy

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"tradebot/internal/models"
)

// IndicatorScalper - скальпинг по совокупности индикаторов (SCALPING2).
//
// Вход long на закрытии свечи, когда сходятся все условия:
//   - Supertrend показывает восходящий тренд
//   - RSI в рабочей зоне (50..70): импульс есть, перекупленности нет
//   - %K пересекает %D снизу вверх
//   - закрытие прижато к нижней полосе Боллинджера (в пределах 1%)
//   - объем выше своей скользящей средней
//
// Стоп-лосс динамический: доля стопа ограничена 2*ATR от цены входа,
// при этом стоп подтягивается под недавний минимум. Тейк-профиты
// считаются от фактического риска: TP1 = 1.5R, TP2 = 2R.
type IndicatorScalper struct {
	// PrepareIndicators пишет кеш из потока закрытых свечей, а
	// CheckEntry/CheckExit читают его из потока тиков
	mu    sync.RWMutex
	frame *IndicatorFrame

	supertrend []int
	rsi        []float64
	stochK     []float64
	stochD     []float64
	bbLower    []float64
	volumeMA   []float64
	atr        []float64
}

// NewIndicatorScalper создает индикаторную скальпинг-стратегию
func NewIndicatorScalper() *IndicatorScalper {
	return &IndicatorScalper{}
}

func (s *IndicatorScalper) Name() string { return models.StrategyScalping2 }

func (s *IndicatorScalper) Kind() Kind { return KindCandle }

// RequiredCandles возвращает прогрев для самого длинного индикатора
func (s *IndicatorScalper) RequiredCandles(cfg *models.TradingConfig) int {
	required := cfg.SupertrendATRPeriod + 1
	if cfg.ScalpingRSIPeriod > required {
		required = cfg.ScalpingRSIPeriod
	}
	if stoch := cfg.StochKPeriod + cfg.StochSmooth + cfg.StochDPeriod; stoch > required {
		required = stoch
	}
	if cfg.BBPeriod > required {
		required = cfg.BBPeriod
	}
	if cfg.VolumeMAPeriod > required {
		required = cfg.VolumeMAPeriod
	}

	required += 5 // запас на стабилизацию рекурсивных индикаторов
	if required < 25 {
		required = 25
	}
	return required
}

// PrepareIndicators пересчитывает все серии по закрытым свечам
func (s *IndicatorScalper) PrepareIndicators(mc *MarketContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := mc.Config
	if cfg == nil || len(mc.Candles) < s.RequiredCandles(cfg) {
		s.frame = nil
		return
	}

	f := NewIndicatorFrame(mc.Candles)
	s.frame = f

	multiplier, _ := cfg.SupertrendATRMultiplier.Float64()
	bbStd, _ := cfg.BBStd.Float64()

	s.supertrend = f.Supertrend(cfg.SupertrendATRPeriod, multiplier)
	s.rsi = f.RSI(cfg.ScalpingRSIPeriod)
	s.stochK, s.stochD = f.Stochastic(cfg.StochKPeriod, cfg.StochSmooth, cfg.StochDPeriod)
	_, _, s.bbLower = f.BollingerBands(cfg.BBPeriod, bbStd)
	s.volumeMA = f.VolumeSMA(cfg.VolumeMAPeriod)
	s.atr = f.ATR(cfg.SupertrendATRPeriod)
}

// CheckEntry проверяет совпадение всех условий входа
func (s *IndicatorScalper) CheckEntry(mc *MarketContext) *models.OrderIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil || len(s.supertrend) == 0 || len(s.rsi) == 0 ||
		len(s.stochK) == 0 || len(s.bbLower) == 0 || len(s.volumeMA) == 0 {
		return nil
	}

	// Тренд вверх
	if s.supertrend[len(s.supertrend)-1] != 1 {
		return nil
	}

	// RSI в рабочей зоне
	rsi := last(s.rsi)
	if rsi <= 50 || rsi >= 70 {
		return nil
	}

	// Пересечение стохастика снизу вверх
	if !(last(s.stochK) > last(s.stochD) && prev(s.stochK) <= prev(s.stochD)) {
		return nil
	}

	// Закрытие у нижней полосы Боллинджера
	closePrice := last(s.frame.Close)
	bbLower := last(s.bbLower)
	if bbLower <= 0 || closePrice < bbLower || closePrice > bbLower*1.01 {
		return nil
	}

	// Подтверждение объемом
	if last(s.frame.Volume) <= last(s.volumeMA) {
		return nil
	}

	entry := mc.LastClose()
	sl, tp1, tp2 := s.dynamicLevels(mc, entry)

	return &models.OrderIntent{
		Side:            models.SideBuy,
		Type:            models.OrderTypeMarket,
		StopLossPrice:   sl,
		TakeProfitPrice: tp1,
		TakeProfit2:     tp2,
	}
}

// CheckExit для индикаторного скальпинга - только защитные выходы
func (s *IndicatorScalper) CheckExit(mc *MarketContext) *models.OrderIntent {
	return checkProtectiveExit(mc)
}

// dynamicLevels считает стоп и тейки от волатильности.
//
// Доля стопа - минимум из конфига и 2*ATR/entry: в тихом рынке стоп
// узкий, в волатильном не шире заданного процента. Стоп подтягивается
// под минимум последних 10 свечей с отступом 0.1%, если тот ближе.
func (s *IndicatorScalper) dynamicLevels(mc *MarketContext, entry decimal.Decimal) (sl, tp1, tp2 decimal.Decimal) {
	cfg := mc.Config
	one := decimal.NewFromInt(1)

	slFrac := cfg.StopLossFrac
	if atr := last(s.atr); atr > 0 && entry.IsPositive() {
		entryF, _ := entry.Float64()
		atrFrac := decimal.NewFromFloat(2 * atr / entryF)
		if atrFrac.LessThan(slFrac) {
			slFrac = atrFrac
		}
	}

	sl = entry.Mul(one.Sub(slFrac))

	// Стоп под недавним минимумом, если он теснее процентного
	if low := s.recentLow(10); low > 0 {
		swingSL := decimal.NewFromFloat(low).Mul(decimal.NewFromFloat(0.999))
		if swingSL.GreaterThan(sl) && swingSL.LessThan(entry) {
			sl = swingSL
		}
	}

	risk := entry.Sub(sl)
	tp1 = entry.Add(risk.Mul(decimal.NewFromFloat(1.5)))
	tp2 = entry.Add(risk.Mul(decimal.NewFromInt(2)))
	return sl, tp1, tp2
}

// recentLow возвращает минимум последних n свечей
func (s *IndicatorScalper) recentLow(n int) float64 {
	if s.frame == nil || s.frame.Len() == 0 {
		return 0
	}
	lows := s.frame.Low
	if n > len(lows) {
		n = len(lows)
	}

	low := math.Inf(1)
	for _, v := range lows[len(lows)-n:] {
		if v < low {
			low = v
		}
	}
	if math.IsInf(low, 1) {
		return 0
	}
	return low
}
