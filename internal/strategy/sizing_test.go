package strategy

import (
	"errors"
	"testing"

	"tradebot/internal/models"
)

func testRules() *models.SymbolRules {
	return &models.SymbolRules{
		Symbol:      "BTCUSDT",
		BaseAsset:   "BTC",
		QuoteAsset:  "USDT",
		StepSize:    d("0.00001"),
		TickSize:    d("0.01"),
		MinQty:      d("0.00001"),
		MinNotional: d("10"),
	}
}

func TestCalculateQuantity_RiskBudgetLimits(t *testing.T) {
	cfg := testConfig()
	cfg.RiskPerTrade = d("0.01")   // 1% капитала под риском
	cfg.CapitalAllocation = d("1") // весь капитал доступен

	// Капитал 10000, риск-бюджет 100, дистанция до стопа 0.5 ->
	// риск-количество 200, капитальное 10000*0.95/100 = 95.
	// Минимум из двух - капитальный бюджет.
	qty, err := CalculateQuantity(cfg, testRules(), d("10000"), d("100"), d("99.5"))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !qty.Equal(d("95")) {
		t.Errorf("qty = %s, ожидалось 95", qty)
	}
}

func TestCalculateQuantity_CapitalBudgetLimits(t *testing.T) {
	cfg := testConfig()
	cfg.RiskPerTrade = d("0.001") // 0.1% под риском
	cfg.CapitalAllocation = d("1")

	// Риск-бюджет 10000*0.001 = 10, дистанция 0.5 -> риск-количество 20.
	// Капитальное 95. Берется меньшее.
	qty, err := CalculateQuantity(cfg, testRules(), d("10000"), d("100"), d("99.5"))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if !qty.Equal(d("20")) {
		t.Errorf("qty = %s, ожидалось 20", qty)
	}
}

func TestCalculateQuantity_RoundsDownToStep(t *testing.T) {
	cfg := testConfig()
	cfg.RiskPerTrade = d("0.01")
	cfg.CapitalAllocation = d("1")

	rules := testRules()
	rules.StepSize = d("1") // целые лоты

	qty, err := CalculateQuantity(cfg, rules, d("10000"), d("100"), d("99.7"))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	// Риск-количество 100/0.3 = 333.33, капитальное 95 -> 95, шаг 1 -> 95
	if !qty.Equal(d("95")) {
		t.Errorf("qty = %s, ожидалось 95", qty)
	}

	// Дробный результат обязан округлиться вниз
	qty2, err := CalculateQuantity(cfg, rules, d("1055"), d("100"), d("99.5"))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	// Капитальное: 1055*0.95/100 = 10.0225 -> 10
	if !qty2.Equal(d("10")) {
		t.Errorf("qty = %s, ожидалось 10", qty2)
	}
}

func TestCalculateQuantity_DeclinesBelowMinNotional(t *testing.T) {
	cfg := testConfig()
	cfg.RiskPerTrade = d("0.01")
	cfg.CapitalAllocation = d("0.001") // крошечная аллокация

	// Капитальный бюджет 10000*0.001*0.95 = 9.5 USDT < минимума 11
	_, err := CalculateQuantity(cfg, testRules(), d("10000"), d("100"), d("99.5"))
	if !errors.Is(err, ErrBelowMinNotional) {
		t.Errorf("ожидалась ErrBelowMinNotional, получено %v", err)
	}
}

func TestCalculateQuantity_InvalidStopLoss(t *testing.T) {
	cfg := testConfig()

	// Стоп выше входа - бессмыслица для long
	if _, err := CalculateQuantity(cfg, testRules(), d("10000"), d("100"), d("101")); err == nil {
		t.Error("ожидалась ошибка для стопа выше входа")
	}

	// Нулевой стоп
	if _, err := CalculateQuantity(cfg, testRules(), d("10000"), d("100"), d("0")); err == nil {
		t.Error("ожидалась ошибка для нулевого стопа")
	}

	// Нулевая цена входа
	if _, err := CalculateQuantity(cfg, testRules(), d("10000"), d("0"), d("99")); err == nil {
		t.Error("ожидалась ошибка для нулевой цены входа")
	}
}
