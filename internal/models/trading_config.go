package models

import "github.com/shopspring/decimal"

// Типы торговых стратегий
const (
	StrategyScalping  = "SCALPING"  // скальпинг по дисбалансу стакана
	StrategyScalping2 = "SCALPING2" // скальпинг по индикаторам (Supertrend + RSI + Stochastic + BB)
	StrategySwing     = "SWING"     // свинг по пересечению EMA
)

// TradingConfig представляет активную торговую конфигурацию.
//
// Все процентные параметры хранятся как доли (fraction): значение 0.5%,
// пришедшее от пользователя, сохраняется здесь как 0.005. Конвертация
// выполняется один раз при применении конфигурации.
//
// Поля Symbol, APIKey, APISecret и Testnet неизменяемы после старта
// процесса: их смена требует перезапуска.
type TradingConfig struct {
	// Неизменяемые параметры (только при старте процесса)
	Symbol    string `json:"symbol"`
	APIKey    string `json:"-"`
	APISecret string `json:"-"`
	Testnet   bool   `json:"testnet"`

	// Стратегия и таймфрейм (смена допустима, но рекомендуется перезапуск)
	StrategyType string `json:"strategy_type"`
	Timeframe    string `json:"timeframe"`

	// Риск-параметры (доли, не проценты)
	RiskPerTrade      decimal.Decimal `json:"risk_per_trade"`
	CapitalAllocation decimal.Decimal `json:"capital_allocation"`
	StopLossFrac      decimal.Decimal `json:"stop_loss"`
	TakeProfit1Frac   decimal.Decimal `json:"take_profit_1"`
	TakeProfit2Frac   decimal.Decimal `json:"take_profit_2"`
	TrailingStopFrac  decimal.Decimal `json:"trailing_stop"`
	TimeStopMinutes   int             `json:"time_stop_minutes"`

	// Исполнение ордеров
	OrderCooldownMs             int64 `json:"order_cooldown_ms"`
	ScalpingLimitOrderTimeoutMs int64 `json:"scalping_limit_order_timeout_ms"`

	// Параметры скальпинга по стакану
	ScalpingSpreadThreshold    decimal.Decimal `json:"scalping_spread_threshold"`
	ScalpingImbalanceThreshold decimal.Decimal `json:"scalping_imbalance_threshold"`
	ScalpingDepthLevels        int             `json:"scalping_depth_levels"`

	// Параметры индикаторного скальпинга (SCALPING2)
	SupertrendATRPeriod     int             `json:"supertrend_atr_period"`
	SupertrendATRMultiplier decimal.Decimal `json:"supertrend_atr_multiplier"`
	ScalpingRSIPeriod       int             `json:"scalping_rsi_period"`
	StochKPeriod            int             `json:"stoch_k_period"`
	StochDPeriod            int             `json:"stoch_d_period"`
	StochSmooth             int             `json:"stoch_smooth"`
	BBPeriod                int             `json:"bb_period"`
	BBStd                   decimal.Decimal `json:"bb_std"`
	VolumeMAPeriod          int             `json:"volume_ma_period"`

	// Параметры свинг-стратегии (SWING)
	EMAShortPeriod        int             `json:"ema_short_period"`
	EMALongPeriod         int             `json:"ema_long_period"`
	RSIPeriod             int             `json:"rsi_period"`
	RSIOverbought         decimal.Decimal `json:"rsi_overbought"`
	RSIOversold           decimal.Decimal `json:"rsi_oversold"`
	UseEMAFilter          bool            `json:"use_ema_filter"`
	EMAFilterPeriod       int             `json:"ema_filter_period"`
	UseVolumeConfirmation bool            `json:"use_volume_confirmation"`
	VolumeAvgPeriod       int             `json:"volume_avg_period"`
}

// Clone возвращает независимую копию конфигурации.
// decimal.Decimal иммутабелен, поэтому достаточно копии структуры.
func (c *TradingConfig) Clone() *TradingConfig {
	cp := *c
	return &cp
}

// ValidStrategy проверяет, что тип стратегии известен
func ValidStrategy(s string) bool {
	switch s {
	case StrategyScalping, StrategyScalping2, StrategySwing:
		return true
	}
	return false
}
