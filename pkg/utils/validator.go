package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// validator.go - валидация входных данных
//
// Назначение:
// Проверка корректности параметров торговой конфигурации перед
// применением. Возвращает error с описанием проблемы или nil.

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

// validTimeframes - допустимые интервалы свечей (формат Binance)
var validTimeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// ValidateSymbol проверяет формат торговой пары (например BTCUSDT)
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is empty")
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %q", symbol)
	}
	return nil
}

// ValidateTimeframe проверяет, что интервал свечей поддерживается биржей
func ValidateTimeframe(tf string) error {
	if !validTimeframes[tf] {
		return fmt.Errorf("unsupported timeframe: %q", tf)
	}
	return nil
}

// ValidatePercent проверяет, что значение является процентом в диапазоне (0, 100]
func ValidatePercent(name string, v decimal.Decimal) error {
	if v.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%s must be positive, got %s", name, v)
	}
	if v.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must not exceed 100, got %s", name, v)
	}
	return nil
}

// ValidatePositivePeriod проверяет, что период индикатора положительный
func ValidatePositivePeriod(name string, v int) error {
	if v < 1 {
		return fmt.Errorf("%s must be >= 1, got %d", name, v)
	}
	return nil
}

// ValidateAPIKey выполняет базовую проверку API ключа биржи
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("api key is empty")
	}
	if len(key) < 16 {
		return fmt.Errorf("api key is too short")
	}
	return nil
}
