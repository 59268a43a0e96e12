package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// sizing.go - расчет размера позиции
//
// Количество определяется двумя бюджетами и берется минимум:
//   - риск-бюджет: riskPerTrade от капитала, деленный на дистанцию
//     до стопа - при срабатывании SL теряем ровно заданный процент
//   - капитальный бюджет: capitalAllocation от капитала по цене входа
//
// Результат округляется вниз до шага лота. Если стоимость ордера
// не дотягивает до минимума биржи - вход отклоняется.

// ErrBelowMinNotional возвращается, когда рассчитанный размер
// меньше минимальной стоимости ордера
var ErrBelowMinNotional = errors.New("calculated order value below exchange minimum")

// safetyFactor оставляет запас на комиссию и проскальзывание
var safetyFactor = decimal.NewFromFloat(0.95)

// CalculateQuantity возвращает размер позиции в базовом активе.
//
// entry и stopLoss - цены; quoteFree - свободный баланс quote актива.
func CalculateQuantity(
	cfg *models.TradingConfig,
	rules *models.SymbolRules,
	quoteFree, entry, stopLoss decimal.Decimal,
) (decimal.Decimal, error) {
	if !entry.IsPositive() {
		return decimal.Zero, fmt.Errorf("entry price must be positive, got %s", entry)
	}
	if !stopLoss.IsPositive() || stopLoss.GreaterThanOrEqual(entry) {
		return decimal.Zero, fmt.Errorf("stop loss %s must be below entry %s", stopLoss, entry)
	}

	riskBudget := quoteFree.Mul(cfg.RiskPerTrade)
	capitalBudget := quoteFree.Mul(cfg.CapitalAllocation).Mul(safetyFactor)

	riskQty := riskBudget.Div(entry.Sub(stopLoss))
	capitalQty := capitalBudget.Div(entry)

	qty := riskQty
	if capitalQty.LessThan(qty) {
		qty = capitalQty
	}

	qty = utils.RoundToStepSize(qty, rules.StepSize)

	if qty.LessThan(rules.MinQty) {
		return decimal.Zero, ErrBelowMinNotional
	}

	// Минимальная стоимость с запасом: биржевой минимум мог измениться,
	// а нижняя граница 11 USDT покрывает стандартные 10 USDT спота
	minValue := decimal.NewFromInt(11)
	if scaled := rules.MinNotional.Mul(decimal.NewFromFloat(1.1)); scaled.GreaterThan(minValue) {
		minValue = scaled
	}

	if qty.Mul(entry).LessThan(minValue) {
		return decimal.Zero, ErrBelowMinNotional
	}

	return qty, nil
}
