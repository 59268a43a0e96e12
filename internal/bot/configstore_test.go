package bot

import (
	"errors"
	"testing"

	"tradebot/internal/config"
	"tradebot/internal/models"
)

// testTradingParams возвращает полный набор валидных сырых параметров
func testTradingParams() map[string]string {
	return map[string]string{
		"STRATEGY_TYPE":                   "SCALPING",
		"TIMEFRAME":                       "1m",
		"RISK_PER_TRADE":                  "1.0",
		"CAPITAL_ALLOCATION":              "50.0",
		"STOP_LOSS_PERCENTAGE":            "0.5",
		"TAKE_PROFIT_1_PERCENTAGE":        "1.0",
		"TAKE_PROFIT_2_PERCENTAGE":        "2.0",
		"TRAILING_STOP_PERCENTAGE":        "0.4",
		"TIME_STOP_MINUTES":               "60",
		"ORDER_COOLDOWN_MS":               "3000",
		"SCALPING_LIMIT_ORDER_TIMEOUT_MS": "5000",
		"SCALPING_SPREAD_THRESHOLD":       "0.0005",
		"SCALPING_IMBALANCE_THRESHOLD":    "1.5",
		"SCALPING_DEPTH_LEVELS":           "5",
		"SUPERTREND_ATR_PERIOD":           "10",
		"SUPERTREND_ATR_MULTIPLIER":       "3",
		"SCALPING_RSI_PERIOD":             "14",
		"STOCH_K_PERIOD":                  "14",
		"STOCH_D_PERIOD":                  "3",
		"STOCH_SMOOTH":                    "3",
		"BB_PERIOD":                       "20",
		"BB_STD":                          "2",
		"VOLUME_MA_PERIOD":                "20",
		"EMA_SHORT_PERIOD":                "9",
		"EMA_LONG_PERIOD":                 "21",
		"RSI_PERIOD":                      "14",
		"RSI_OVERBOUGHT":                  "70",
		"RSI_OVERSOLD":                    "30",
		"USE_EMA_FILTER":                  "true",
		"EMA_FILTER_PERIOD":               "200",
		"USE_VOLUME_CONFIRMATION":         "false",
		"VOLUME_AVG_PERIOD":               "20",
	}
}

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		APIKey:    "test-api-key-0123456789",
		APISecret: "test-api-secret-0123456789",
		Symbol:    "BTCUSDT",
		Testnet:   true,
	}
}

func newTestConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(testExchangeConfig(), testTradingParams())
	if err != nil {
		t.Fatalf("NewConfigStore() error = %v", err)
	}
	return store
}

func TestConfigStore_PercentConversion(t *testing.T) {
	// Пользователь вводит проценты, читатели видят доли:
	// 1.0% -> 0.01, и ровно одна конвертация на всем пути
	store := newTestConfigStore(t)
	cfg := store.Get()

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"RISK_PER_TRADE", cfg.RiskPerTrade.String(), "0.01"},
		{"CAPITAL_ALLOCATION", cfg.CapitalAllocation.String(), "0.5"},
		{"STOP_LOSS_PERCENTAGE", cfg.StopLossFrac.String(), "0.005"},
		{"TAKE_PROFIT_1_PERCENTAGE", cfg.TakeProfit1Frac.String(), "0.01"},
		{"TAKE_PROFIT_2_PERCENTAGE", cfg.TakeProfit2Frac.String(), "0.02"},
		{"TRAILING_STOP_PERCENTAGE", cfg.TrailingStopFrac.String(), "0.004"},
	}

	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, tc.got, tc.want)
		}
	}
}

func TestConfigStore_UpdatePercentRoundTrip(t *testing.T) {
	store := newTestConfigStore(t)

	result, err := store.Update(map[string]string{"RISK_PER_TRADE": "2.5"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(result.ChangedKeys) != 1 || result.ChangedKeys[0] != "RISK_PER_TRADE" {
		t.Errorf("ChangedKeys = %v, want [RISK_PER_TRADE]", result.ChangedKeys)
	}
	if got := store.Get().RiskPerTrade.String(); got != "0.025" {
		t.Errorf("RiskPerTrade = %s, want 0.025", got)
	}
}

func TestConfigStore_ImmutableFieldRejected(t *testing.T) {
	store := newTestConfigStore(t)
	before := store.Get()

	// Запрос смешивает изменяемый и неизменяемый ключи -
	// отклоняется целиком, без частичного применения
	_, err := store.Update(map[string]string{
		"RISK_PER_TRADE": "2.0",
		"TRADING_SYMBOL": "ETHUSDT",
	})
	if !errors.Is(err, ErrImmutableField) {
		t.Fatalf("Update() error = %v, want ErrImmutableField", err)
	}

	after := store.Get()
	if !after.RiskPerTrade.Equal(before.RiskPerTrade) {
		t.Error("отклоненный запрос не должен менять конфигурацию")
	}
	if after.Symbol != before.Symbol {
		t.Error("символ изменился при отклоненном запросе")
	}
}

func TestConfigStore_RestartRecommended(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   bool
	}{
		{"strategy change", map[string]string{"STRATEGY_TYPE": "SWING"}, true},
		{"timeframe change", map[string]string{"TIMEFRAME": "5m"}, true},
		{"numeric change", map[string]string{"RSI_PERIOD": "21"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestConfigStore(t)
			result, err := store.Update(tt.params)
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if result.RestartRecommended != tt.want {
				t.Errorf("RestartRecommended = %v, want %v", result.RestartRecommended, tt.want)
			}
		})
	}
}

func TestConfigStore_InvalidValuesRejected(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
	}{
		{"percent above 100", map[string]string{"RISK_PER_TRADE": "150"}},
		{"percent zero", map[string]string{"STOP_LOSS_PERCENTAGE": "0"}},
		{"negative percent", map[string]string{"CAPITAL_ALLOCATION": "-5"}},
		{"unknown strategy", map[string]string{"STRATEGY_TYPE": "MARTINGALE"}},
		{"bad timeframe", map[string]string{"TIMEFRAME": "7m"}},
		{"not a number", map[string]string{"RSI_PERIOD": "fourteen"}},
		{"unknown key", map[string]string{"FOO_BAR": "1"}},
		{"ema short above long", map[string]string{"EMA_SHORT_PERIOD": "50"}},
		{"rsi bands inverted", map[string]string{"RSI_OVERSOLD": "80"}},
		{"tp2 below tp1", map[string]string{"TAKE_PROFIT_2_PERCENTAGE": "0.5"}},
		{"tp2 equals tp1", map[string]string{"TAKE_PROFIT_2_PERCENTAGE": "1.0"}},
		{"time stop zero", map[string]string{"TIME_STOP_MINUTES": "0"}},
		{"time stop above limit", map[string]string{"TIME_STOP_MINUTES": "241"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestConfigStore(t)
			if _, err := store.Update(tt.params); err == nil {
				t.Errorf("Update(%v) = nil, ожидалась ошибка", tt.params)
			}
		})
	}
}

func TestConfigStore_OnChangeHandlers(t *testing.T) {
	store := newTestConfigStore(t)

	var gotOld, gotNew string
	store.OnChange(func(old, cur *models.TradingConfig) {
		gotOld = old.Timeframe
		gotNew = cur.Timeframe
	})

	if _, err := store.Update(map[string]string{"TIMEFRAME": "15m"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if gotOld != "1m" || gotNew != "15m" {
		t.Errorf("handler получил (%q, %q), want (1m, 15m)", gotOld, gotNew)
	}
}
