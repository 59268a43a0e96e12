package strategy

import (
	"fmt"

	"tradebot/internal/models"
)

// New создает стратегию по ее типу из конфигурации
func New(strategyType string) (Strategy, error) {
	switch strategyType {
	case models.StrategyScalping:
		return NewImbalanceScalper(), nil
	case models.StrategyScalping2:
		return NewIndicatorScalper(), nil
	case models.StrategySwing:
		return NewSwingStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %q", strategyType)
	}
}
