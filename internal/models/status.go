package models

// BotStatus представляет текущее состояние торгового бота
type BotStatus string

// Статусы жизненного цикла бота
const (
	StatusStopped  BotStatus = "STOPPED"  // бот остановлен
	StatusStarting BotStatus = "STARTING" // идет инициализация (загрузка истории, проверка баланса)
	StatusRunning  BotStatus = "RUNNING"  // нормальная работа, поиск сигналов
	StatusEntering BotStatus = "ENTERING" // отправлен ордер на вход, ждем подтверждения
	StatusExiting  BotStatus = "EXITING"  // отправлен ордер на выход, ждем подтверждения
	StatusError    BotStatus = "ERROR"    // критическая ошибка, требуется вмешательство
)

// String возвращает строковое представление статуса
func (s BotStatus) String() string {
	return string(s)
}

// IsActive проверяет, что бот находится в рабочем состоянии
func (s BotStatus) IsActive() bool {
	switch s {
	case StatusRunning, StatusEntering, StatusExiting:
		return true
	}
	return false
}

// IsTransitional проверяет, что бот ждет подтверждения ордера от биржи
func (s BotStatus) IsTransitional() bool {
	return s == StatusEntering || s == StatusExiting
}
