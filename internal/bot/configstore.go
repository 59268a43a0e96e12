package bot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradebot/internal/config"
	"tradebot/internal/models"
	"tradebot/pkg/logger"
	"tradebot/pkg/utils"
)

// ============================================================
// ConfigStore - горячо заменяемая торговая конфигурация
// ============================================================
//
// Хранит единственный активный снимок TradingConfig. Обновление
// атомарно: новый снимок собирается из текущего, валидируется целиком
// и только потом подменяет активный. Частично примененных
// конфигураций не бывает.
//
// Процентные параметры принимаются в процентах (как вводит
// пользователь) и конвертируются в доли ровно один раз здесь.
// Читатели всегда видят доли.

// ErrImmutableField возвращается при попытке изменить параметр,
// требующий перезапуска процесса
var ErrImmutableField = errors.New("field is immutable at runtime, restart required")

// immutableKeys - параметры, жестко привязанные к запуску процесса
var immutableKeys = map[string]bool{
	"BINANCE_API_KEY":    true,
	"BINANCE_API_SECRET": true,
	"TRADING_SYMBOL":     true,
	"BINANCE_TESTNET":    true,
}

// percentKeys - параметры, вводимые в процентах и хранимые долями
var percentKeys = map[string]bool{
	"RISK_PER_TRADE":           true,
	"CAPITAL_ALLOCATION":       true,
	"STOP_LOSS_PERCENTAGE":     true,
	"TAKE_PROFIT_1_PERCENTAGE": true,
	"TAKE_PROFIT_2_PERCENTAGE": true,
	"TRAILING_STOP_PERCENTAGE": true,
}

// UpdateResult описывает исход применения конфигурации
type UpdateResult struct {
	ChangedKeys        []string `json:"changed_keys"`
	RestartRecommended bool     `json:"restart_recommended"`
}

// ChangeHandler вызывается после успешного применения новой конфигурации
type ChangeHandler func(old, new *models.TradingConfig)

// ConfigStore хранит активную торговую конфигурацию
type ConfigStore struct {
	mu       sync.RWMutex
	current  *models.TradingConfig
	handlers []ChangeHandler
}

// NewConfigStore собирает стартовую конфигурацию из параметров окружения
func NewConfigStore(exchange config.ExchangeConfig, params map[string]string) (*ConfigStore, error) {
	if err := utils.ValidateSymbol(exchange.Symbol); err != nil {
		return nil, fmt.Errorf("invalid trading symbol: %w", err)
	}

	cfg := &models.TradingConfig{
		Symbol:    exchange.Symbol,
		APIKey:    exchange.APIKey,
		APISecret: exchange.APISecret,
		Testnet:   exchange.Testnet,
	}

	if _, err := applyParams(cfg, params); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &ConfigStore{current: cfg}, nil
}

// Get возвращает защитную копию активной конфигурации
func (s *ConfigStore) Get() *models.TradingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// OnChange регистрирует обработчик смены конфигурации.
// Обработчики вызываются вне блокировки, в порядке регистрации.
func (s *ConfigStore) OnChange(h ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Update применяет частичное обновление конфигурации.
//
// Попытка сменить неизменяемый параметр отклоняет весь запрос.
// Смена стратегии или таймфрейма принимается, но в результате
// выставляется RestartRecommended: накопленные свечи и прогретые
// индикаторы после такой смены сбрасываются.
func (s *ConfigStore) Update(params map[string]string) (*UpdateResult, error) {
	for key := range params {
		if immutableKeys[key] {
			return nil, fmt.Errorf("%w: %s", ErrImmutableField, key)
		}
	}

	s.mu.Lock()
	candidate := s.current.Clone()
	s.mu.Unlock()

	changed, err := applyParams(candidate, params)
	if err != nil {
		return nil, err
	}

	if err := validate(candidate); err != nil {
		return nil, err
	}

	s.mu.Lock()
	old := s.current
	s.current = candidate
	handlers := make([]ChangeHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	result := &UpdateResult{ChangedKeys: changed}
	for _, key := range changed {
		if key == "STRATEGY_TYPE" || key == "TIMEFRAME" {
			result.RestartRecommended = true
		}
	}

	logger.Info("trading config updated",
		zap.Strings("changed", changed),
		zap.Bool("restart_recommended", result.RestartRecommended))

	for _, h := range handlers {
		h(old.Clone(), candidate.Clone())
	}

	return result, nil
}

// applyParams применяет сырые параметры к конфигурации.
// Возвращает отсортированный список фактически измененных ключей.
func applyParams(cfg *models.TradingConfig, params map[string]string) ([]string, error) {
	changed := make([]string, 0, len(params))

	for key, raw := range params {
		old := *cfg
		if err := applyParam(cfg, key, raw); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if old != *cfg {
			changed = append(changed, key)
		}
	}

	sort.Strings(changed)
	return changed, nil
}

// applyParam парсит и устанавливает один параметр
func applyParam(cfg *models.TradingConfig, key, raw string) error {
	// Процентные параметры: валидация диапазона до конвертации в долю
	if percentKeys[key] {
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid number %q", raw)
		}
		if err := utils.ValidatePercent(key, pct); err != nil {
			return err
		}
		frac := pct.Div(decimal.NewFromInt(100))

		switch key {
		case "RISK_PER_TRADE":
			cfg.RiskPerTrade = frac
		case "CAPITAL_ALLOCATION":
			cfg.CapitalAllocation = frac
		case "STOP_LOSS_PERCENTAGE":
			cfg.StopLossFrac = frac
		case "TAKE_PROFIT_1_PERCENTAGE":
			cfg.TakeProfit1Frac = frac
		case "TAKE_PROFIT_2_PERCENTAGE":
			cfg.TakeProfit2Frac = frac
		case "TRAILING_STOP_PERCENTAGE":
			cfg.TrailingStopFrac = frac
		}
		return nil
	}

	switch key {
	case "STRATEGY_TYPE":
		if !models.ValidStrategy(raw) {
			return fmt.Errorf("unknown strategy type %q", raw)
		}
		cfg.StrategyType = raw
	case "TIMEFRAME":
		if err := utils.ValidateTimeframe(raw); err != nil {
			return err
		}
		cfg.Timeframe = raw
	case "TIME_STOP_MINUTES":
		return setInt(&cfg.TimeStopMinutes, raw, 0)
	case "ORDER_COOLDOWN_MS":
		return setInt64(&cfg.OrderCooldownMs, raw, 0)
	case "SCALPING_LIMIT_ORDER_TIMEOUT_MS":
		return setInt64(&cfg.ScalpingLimitOrderTimeoutMs, raw, 0)
	case "SCALPING_SPREAD_THRESHOLD":
		return setDecimal(&cfg.ScalpingSpreadThreshold, raw)
	case "SCALPING_IMBALANCE_THRESHOLD":
		return setDecimal(&cfg.ScalpingImbalanceThreshold, raw)
	case "SCALPING_DEPTH_LEVELS":
		return setInt(&cfg.ScalpingDepthLevels, raw, 1)
	case "SUPERTREND_ATR_PERIOD":
		return setInt(&cfg.SupertrendATRPeriod, raw, 1)
	case "SUPERTREND_ATR_MULTIPLIER":
		return setDecimal(&cfg.SupertrendATRMultiplier, raw)
	case "SCALPING_RSI_PERIOD":
		return setInt(&cfg.ScalpingRSIPeriod, raw, 1)
	case "STOCH_K_PERIOD":
		return setInt(&cfg.StochKPeriod, raw, 1)
	case "STOCH_D_PERIOD":
		return setInt(&cfg.StochDPeriod, raw, 1)
	case "STOCH_SMOOTH":
		return setInt(&cfg.StochSmooth, raw, 1)
	case "BB_PERIOD":
		return setInt(&cfg.BBPeriod, raw, 1)
	case "BB_STD":
		return setDecimal(&cfg.BBStd, raw)
	case "VOLUME_MA_PERIOD":
		return setInt(&cfg.VolumeMAPeriod, raw, 1)
	case "EMA_SHORT_PERIOD":
		return setInt(&cfg.EMAShortPeriod, raw, 1)
	case "EMA_LONG_PERIOD":
		return setInt(&cfg.EMALongPeriod, raw, 1)
	case "RSI_PERIOD":
		return setInt(&cfg.RSIPeriod, raw, 1)
	case "RSI_OVERBOUGHT":
		return setDecimal(&cfg.RSIOverbought, raw)
	case "RSI_OVERSOLD":
		return setDecimal(&cfg.RSIOversold, raw)
	case "USE_EMA_FILTER":
		return setBool(&cfg.UseEMAFilter, raw)
	case "EMA_FILTER_PERIOD":
		return setInt(&cfg.EMAFilterPeriod, raw, 1)
	case "USE_VOLUME_CONFIRMATION":
		return setBool(&cfg.UseVolumeConfirmation, raw)
	case "VOLUME_AVG_PERIOD":
		return setInt(&cfg.VolumeAvgPeriod, raw, 1)
	default:
		return fmt.Errorf("unknown config key")
	}
	return nil
}

// validate проверяет согласованность собранной конфигурации
func validate(cfg *models.TradingConfig) error {
	if !models.ValidStrategy(cfg.StrategyType) {
		return fmt.Errorf("STRATEGY_TYPE: unknown strategy %q", cfg.StrategyType)
	}
	if err := utils.ValidateTimeframe(cfg.Timeframe); err != nil {
		return fmt.Errorf("TIMEFRAME: %w", err)
	}
	if !cfg.StopLossFrac.IsPositive() {
		return fmt.Errorf("STOP_LOSS_PERCENTAGE must be positive")
	}
	if !cfg.RiskPerTrade.IsPositive() {
		return fmt.Errorf("RISK_PER_TRADE must be positive")
	}
	if !cfg.CapitalAllocation.IsPositive() {
		return fmt.Errorf("CAPITAL_ALLOCATION must be positive")
	}
	if cfg.OrderCooldownMs < 0 {
		return fmt.Errorf("ORDER_COOLDOWN_MS cannot be negative")
	}
	if cfg.TimeStopMinutes < 1 || cfg.TimeStopMinutes > 240 {
		return fmt.Errorf("TIME_STOP_MINUTES must be within 1..240")
	}
	// TP2 опционален (ноль отключает второй уровень), но заданный
	// TP2 обязан быть выше TP1: иначе уровни срабатывают в обратном порядке
	if cfg.TakeProfit2Frac.IsPositive() && cfg.TakeProfit2Frac.LessThanOrEqual(cfg.TakeProfit1Frac) {
		return fmt.Errorf("TAKE_PROFIT_2_PERCENTAGE must exceed TAKE_PROFIT_1_PERCENTAGE")
	}
	if cfg.EMAShortPeriod >= cfg.EMALongPeriod {
		return fmt.Errorf("EMA_SHORT_PERIOD must be less than EMA_LONG_PERIOD")
	}
	if cfg.RSIOversold.GreaterThanOrEqual(cfg.RSIOverbought) {
		return fmt.Errorf("RSI_OVERSOLD must be below RSI_OVERBOUGHT")
	}
	return nil
}

// Сеттеры с парсингом и нижней границей

func setInt(dst *int, raw string, min int) error {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid integer %q", raw)
	}
	if v < min {
		return fmt.Errorf("value %d below minimum %d", v, min)
	}
	*dst = v
	return nil
}

func setInt64(dst *int64, raw string, min int64) error {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", raw)
	}
	if v < min {
		return fmt.Errorf("value %d below minimum %d", v, min)
	}
	*dst = v
	return nil
}

func setDecimal(dst *decimal.Decimal, raw string) error {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid number %q", raw)
	}
	if v.IsNegative() {
		return fmt.Errorf("value %s cannot be negative", raw)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, raw string) error {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid boolean %q", raw)
	}
	*dst = v
	return nil
}
