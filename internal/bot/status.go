package bot

import "tradebot/internal/models"

// ValidTransitions определяет допустимые переходы между статусами бота
var ValidTransitions = map[models.BotStatus][]models.BotStatus{
	models.StatusStopped:  {models.StatusStarting},
	models.StatusStarting: {models.StatusRunning, models.StatusError, models.StatusStopped},
	models.StatusRunning:  {models.StatusEntering, models.StatusExiting, models.StatusStopped, models.StatusError},
	models.StatusEntering: {models.StatusRunning, models.StatusError, models.StatusStopped}, // Running при отказе или исполнении
	models.StatusExiting:  {models.StatusRunning, models.StatusError, models.StatusStopped}, // Running при отказе или исполнении
	models.StatusError:    {models.StatusStopped},                                           // Только ручной сброс
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to models.BotStatus) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StatusInfo возвращает описание статуса для UI
func StatusInfo(s models.BotStatus) string {
	switch s {
	case models.StatusStopped:
		return "Бот остановлен"
	case models.StatusStarting:
		return "Инициализация: загрузка истории и проверка баланса..."
	case models.StatusRunning:
		return "Бот работает (поиск сигналов)"
	case models.StatusEntering:
		return "Открытие позиции..."
	case models.StatusExiting:
		return "Закрытие позиции..."
	case models.StatusError:
		return "Ошибка! Требуется вмешательство"
	default:
		return "Неизвестный статус"
	}
}
