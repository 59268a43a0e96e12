package websocket

import (
	"time"

	"tradebot/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeStatusUpdate - смена статуса бота или позиции
	// Отправляется при каждом переходе статуса и открытии/закрытии позиции
	MessageTypeStatusUpdate MessageType = "statusUpdate"

	// MessageTypeOrderUpdate - исполненный ордер
	// Отправляется после финального отчета биржи по ордеру бота
	MessageTypeOrderUpdate MessageType = "orderUpdate"

	// MessageTypeBalanceUpdate - обновление свободного баланса актива
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"

	// MessageTypeStatsUpdate - обновление статистики торговли
	// Отправляется после закрытия каждой сделки
	MessageTypeStatsUpdate MessageType = "statsUpdate"

	// MessageTypeConfigUpdate - применена новая торговая конфигурация
	MessageTypeConfigUpdate MessageType = "configUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// StatusUpdateMessage - сообщение о смене статуса бота
type StatusUpdateMessage struct {
	BaseMessage
	Data *StatusUpdateData `json:"data"`
}

// StatusUpdateData - данные статуса
type StatusUpdateData struct {
	// Статус бота (STOPPED, STARTING, RUNNING, ENTERING, EXITING, ERROR)
	Status string `json:"status"`

	// Открыта ли позиция
	InPosition bool `json:"in_position"`

	// Детали позиции (nil вне позиции)
	Entry *models.EntryDetails `json:"entry,omitempty"`

	// Последняя зафиксированная ошибка
	LastError string `json:"last_error,omitempty"`
}

// OrderUpdateMessage - сообщение об исполненном ордере
type OrderUpdateMessage struct {
	BaseMessage
	Data *models.OrderRecord `json:"data"`
}

// BalanceUpdateMessage - сообщение об обновлении баланса актива
type BalanceUpdateMessage struct {
	BaseMessage
	Asset string `json:"asset"`
	Free  string `json:"free"`
}

// StatsUpdateMessage - сообщение об обновлении статистики
type StatsUpdateMessage struct {
	BaseMessage
	Data *models.Stats `json:"data"`
}

// ConfigUpdateMessage - сообщение о примененной конфигурации
type ConfigUpdateMessage struct {
	BaseMessage
	Data *ConfigUpdateData `json:"data"`
}

// ConfigUpdateData - данные о примененной конфигурации
type ConfigUpdateData struct {
	ChangedKeys        []string `json:"changed_keys"`
	RestartRecommended bool     `json:"restart_recommended"`
}

// ============ Фабричные функции для создания сообщений ============

// NewStatusUpdateMessage создает сообщение смены статуса
func NewStatusUpdateMessage(status models.BotStatus, inPosition bool, entry *models.EntryDetails, lastError string) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatusUpdate,
			Timestamp: time.Now(),
		},
		Data: &StatusUpdateData{
			Status:     string(status),
			InPosition: inPosition,
			Entry:      entry,
			LastError:  lastError,
		},
	}
}

// NewOrderUpdateMessage создает сообщение об исполненном ордере
func NewOrderUpdateMessage(record *models.OrderRecord) *OrderUpdateMessage {
	return &OrderUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeOrderUpdate,
			Timestamp: time.Now(),
		},
		Data: record,
	}
}

// NewBalanceUpdateMessage создает сообщение обновления баланса
func NewBalanceUpdateMessage(asset, free string) *BalanceUpdateMessage {
	return &BalanceUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeBalanceUpdate,
			Timestamp: time.Now(),
		},
		Asset: asset,
		Free:  free,
	}
}

// NewStatsUpdateMessage создает сообщение обновления статистики
func NewStatsUpdateMessage(stats *models.Stats) *StatsUpdateMessage {
	return &StatsUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeStatsUpdate,
			Timestamp: time.Now(),
		},
		Data: stats,
	}
}

// NewConfigUpdateMessage создает сообщение о примененной конфигурации
func NewConfigUpdateMessage(changedKeys []string, restartRecommended bool) *ConfigUpdateMessage {
	return &ConfigUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeConfigUpdate,
			Timestamp: time.Now(),
		},
		Data: &ConfigUpdateData{
			ChangedKeys:        changedKeys,
			RestartRecommended: restartRecommended,
		},
	}
}
