package utils

import (
	"github.com/shopspring/decimal"
)

// math.go - математические утилиты для торговых операций
//
// Все денежные расчёты выполняются на decimal.Decimal: накопление
// ошибки float64 недопустимо при расчёте объёма позиции и проверках
// минимального notional.
//
// Функции:
// - RoundToStepSize: округление объёма до шага лота биржи
// - RoundToTickSize: округление цены до шага цены
// - MeetsMinNotional: проверка минимальной стоимости ордера
// - RelativeSpread: относительный спред bid/ask
// - PerformancePct: результат сделки в процентах

// RoundToStepSize округляет объём ВНИЗ до ближайшего кратного stepSize.
//
// Округление вниз гарантирует, что мы не превысим доступные средства
// и не получим отказ биржи по LOT_SIZE фильтру.
//
// Примеры:
//   - RoundToStepSize(0.123456, 0.001) = 0.123
//   - RoundToStepSize(1.999, 0.01) = 1.99
func RoundToStepSize(value, stepSize decimal.Decimal) decimal.Decimal {
	if stepSize.LessThanOrEqual(decimal.Zero) {
		return value
	}
	return value.Div(stepSize).Floor().Mul(stepSize)
}

// RoundToStepSizeUp округляет объём ВВЕРХ до ближайшего кратного stepSize.
// Используется когда нужно гарантировать минимальный объём (minQty).
func RoundToStepSizeUp(value, stepSize decimal.Decimal) decimal.Decimal {
	if stepSize.LessThanOrEqual(decimal.Zero) {
		return value
	}
	return value.Div(stepSize).Ceil().Mul(stepSize)
}

// RoundToTickSize округляет цену вниз до ближайшего кратного tickSize.
// Применяется к ценам LIMIT ордеров (PRICE_FILTER биржи).
func RoundToTickSize(price, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.LessThanOrEqual(decimal.Zero) {
		return price
	}
	return price.Div(tickSize).Floor().Mul(tickSize)
}

// MeetsMinNotional проверяет что стоимость ордера (qty × price)
// не ниже минимального notional биржи.
func MeetsMinNotional(qty, price, minNotional decimal.Decimal) bool {
	if minNotional.LessThanOrEqual(decimal.Zero) {
		return true
	}
	return qty.Mul(price).GreaterThanOrEqual(minNotional)
}

// RelativeSpread рассчитывает относительный спред (ask - bid) / bid.
//
// Возвращает ноль при некорректных входных данных (bid <= 0).
func RelativeSpread(bid, ask decimal.Decimal) decimal.Decimal {
	if bid.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return ask.Sub(bid).Div(bid)
}

// PerformancePct рассчитывает результат закрытой сделки в процентах:
// (exit - entry) / entry × 100
//
// Примеры:
//   - PerformancePct(100, 101) = 1.0
//   - PerformancePct(100, 99.5) = -0.5
func PerformancePct(entry, exit decimal.Decimal) decimal.Decimal {
	if entry.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return exit.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100))
}

// SumQuantities суммирует объёмы уровней стакана.
// Используется для расчёта дисбаланса bid/ask.
func SumQuantities(quantities []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, q := range quantities {
		total = total.Add(q)
	}
	return total
}
