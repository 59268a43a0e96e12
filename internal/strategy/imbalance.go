package strategy

import (
	"github.com/shopspring/decimal"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// ImbalanceScalper - скальпинг по дисбалансу стакана (SCALPING).
//
// Вход: спред узкий И суммарный объем верхних bid-уровней превышает
// объем ask-уровней в imbalanceThreshold раз - давление покупателей.
// Вход LIMIT-ордером по лучшему bid, чтобы не платить спред.
//
// Выход: дисбаланс развернулся (продавцы давят сильнее) либо
// сработал защитный выход.
type ImbalanceScalper struct{}

// NewImbalanceScalper создает стратегию скальпинга по стакану
func NewImbalanceScalper() *ImbalanceScalper {
	return &ImbalanceScalper{}
}

func (s *ImbalanceScalper) Name() string { return models.StrategyScalping }

func (s *ImbalanceScalper) Kind() Kind { return KindTick }

// RequiredCandles - стратегия не использует свечи
func (s *ImbalanceScalper) RequiredCandles(_ *models.TradingConfig) int { return 1 }

// PrepareIndicators - нет индикаторов по свечам
func (s *ImbalanceScalper) PrepareIndicators(_ *MarketContext) {}

// CheckEntry ищет давление покупателей в стакане
func (s *ImbalanceScalper) CheckEntry(mc *MarketContext) *models.OrderIntent {
	cfg := mc.Config
	if mc.Ticker == nil || mc.Depth == nil || cfg == nil {
		return nil
	}

	// Широкий спред съедает прибыль скальпа
	spread := utils.RelativeSpread(mc.Ticker.BidPrice, mc.Ticker.AskPrice)
	if spread.GreaterThanOrEqual(cfg.ScalpingSpreadThreshold) {
		return nil
	}

	ratio, ok := depthRatio(mc.Depth, cfg.ScalpingDepthLevels)
	if !ok {
		return nil
	}

	if ratio.GreaterThan(cfg.ScalpingImbalanceThreshold) {
		return &models.OrderIntent{
			Side:  models.SideBuy,
			Type:  models.OrderTypeLimit,
			Price: mc.Ticker.BidPrice,
		}
	}

	return nil
}

// CheckExit проверяет защитные выходы и разворот дисбаланса
func (s *ImbalanceScalper) CheckExit(mc *MarketContext) *models.OrderIntent {
	if intent := checkProtectiveExit(mc); intent != nil {
		return intent
	}

	cfg := mc.Config
	if mc.Depth == nil || cfg == nil || cfg.ScalpingImbalanceThreshold.IsZero() {
		return nil
	}

	ratio, ok := depthRatio(mc.Depth, cfg.ScalpingDepthLevels)
	if !ok {
		return nil
	}

	// Зеркальный порог: продавцы давят так же сильно, как давили
	// покупатели. При пороге входа <= 1 зеркало дало бы значение >= 1
	// и выбрасывало бы из позиции на нейтральном стакане, поэтому
	// фиксированный запасной порог 0.9.
	reverse := decimal.NewFromFloat(0.9)
	if cfg.ScalpingImbalanceThreshold.GreaterThan(decimal.NewFromInt(1)) {
		reverse = decimal.NewFromInt(1).Div(cfg.ScalpingImbalanceThreshold)
	}
	if ratio.LessThan(reverse) {
		return &models.OrderIntent{
			Side:       models.SideSell,
			Type:       models.OrderTypeMarket,
			ExitReason: models.ExitReasonImbalanceReversal,
		}
	}

	return nil
}

// depthRatio возвращает отношение объема bid к объему ask
// по верхним levels уровням стакана
func depthRatio(depth *models.DepthSnapshot, levels int) (decimal.Decimal, bool) {
	if levels <= 0 {
		levels = 5
	}

	bidVol := sumLevels(depth.Bids, levels)
	askVol := sumLevels(depth.Asks, levels)

	if askVol.IsZero() {
		return decimal.Zero, false
	}
	return bidVol.Div(askVol), true
}

func sumLevels(side []models.DepthLevel, levels int) decimal.Decimal {
	if levels > len(side) {
		levels = len(side)
	}
	total := decimal.Zero
	for _, lvl := range side[:levels] {
		total = total.Add(lvl.Qty)
	}
	return total
}
