package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"tradebot/internal/models"
)

// Kind определяет, на каких рыночных событиях работает стратегия
type Kind int

const (
	// KindTick - стратегия оценивает сигналы на каждом тике bookTicker
	KindTick Kind = iota
	// KindCandle - стратегия оценивает сигналы на закрытии свечи
	KindCandle
)

// Strategy определяет интерфейс торговой стратегии.
//
// Стратегия чистая: читает рыночный контекст и возвращает торговое
// намерение либо nil. Никакого I/O, никакого глобального состояния -
// размещением ордеров занимается исполнитель.
type Strategy interface {
	// Name возвращает тип стратегии (SCALPING, SCALPING2, SWING)
	Name() string

	// Kind возвращает тип событий, на которых стратегия ищет сигналы
	Kind() Kind

	// RequiredCandles возвращает минимальное число закрытых свечей
	// для корректного расчета индикаторов
	RequiredCandles(cfg *models.TradingConfig) int

	// PrepareIndicators пересчитывает индикаторы по закрытым свечам.
	// Вызывается перед CheckEntry/CheckExit на закрытии свечи.
	PrepareIndicators(mc *MarketContext)

	// CheckEntry ищет сигнал на вход. nil = нет сигнала.
	CheckEntry(mc *MarketContext) *models.OrderIntent

	// CheckExit ищет сигнал на выход из открытой позиции. nil = держим.
	CheckExit(mc *MarketContext) *models.OrderIntent
}

// MarketContext представляет срез рыночных данных для принятия решения.
// Все поля - защитные копии: стратегия может читать их без блокировок.
type MarketContext struct {
	Config  *models.TradingConfig
	Ticker  *models.BookTicker
	Depth   *models.DepthSnapshot
	Candles []models.Candle // закрытые свечи, от старых к новым
	Entry   *models.EntryDetails
	Now     time.Time
}

// LastClose возвращает цену закрытия последней закрытой свечи
func (mc *MarketContext) LastClose() decimal.Decimal {
	if len(mc.Candles) == 0 {
		return decimal.Zero
	}
	return mc.Candles[len(mc.Candles)-1].Close
}

// checkProtectiveExit проверяет защитные выходы открытой позиции:
// стоп-лосс, тейк-профит, трейлинг-стоп и тайм-стоп.
//
// Общая логика для всех стратегий; вызывается на каждом тике.
// Цена проверки - лучший bid: по нему реально закроется long.
func checkProtectiveExit(mc *MarketContext) *models.OrderIntent {
	if mc.Entry == nil || mc.Ticker == nil {
		return nil
	}

	bid := mc.Ticker.BidPrice
	entry := mc.Entry

	// Стоп-лосс
	if entry.StopLossPrice.IsPositive() && bid.LessThanOrEqual(entry.StopLossPrice) {
		return &models.OrderIntent{
			Side:       models.SideSell,
			Type:       models.OrderTypeMarket,
			ExitReason: models.ExitReasonStopLoss,
		}
	}

	// Тейк-профит
	if entry.TakeProfitPrice.IsPositive() && bid.GreaterThanOrEqual(entry.TakeProfitPrice) {
		return &models.OrderIntent{
			Side:       models.SideSell,
			Type:       models.OrderTypeMarket,
			ExitReason: models.ExitReasonTakeProfit,
		}
	}

	// Трейлинг-стоп: активируется только когда триггер выше цены входа,
	// иначе трейлинг превращается в преждевременный стоп-лосс
	if cfg := mc.Config; cfg != nil && cfg.TrailingStopFrac.IsPositive() && entry.HighestPrice.IsPositive() {
		trigger := entry.HighestPrice.Mul(decimal.NewFromInt(1).Sub(cfg.TrailingStopFrac))
		if trigger.GreaterThan(entry.EntryPrice) && bid.LessThanOrEqual(trigger) {
			return &models.OrderIntent{
				Side:       models.SideSell,
				Type:       models.OrderTypeMarket,
				ExitReason: models.ExitReasonTrailing,
			}
		}
	}

	// Тайм-стоп: позиция висит слишком долго без результата
	if cfg := mc.Config; cfg != nil && cfg.TimeStopMinutes > 0 && !entry.EntryTime.IsZero() {
		deadline := entry.EntryTime.Add(time.Duration(cfg.TimeStopMinutes) * time.Minute)
		if mc.Now.After(deadline) {
			return &models.OrderIntent{
				Side:       models.SideSell,
				Type:       models.OrderTypeMarket,
				ExitReason: models.ExitReasonTimeStop,
			}
		}
	}

	return nil
}
