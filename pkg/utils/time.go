package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Вспомогательные функции для временных операций, используемые
// для агрегации статистики сделок по периодам и фильтрации данных.
//
// Использование:
// - Агрегация статистики сделок по периодам (day/week/month/all)
// - Фильтрация записей истории ордеров по временным диапазонам

// ============================================================
// Основные функции получения границ периодов
// ============================================================

// GetDayStart возвращает начало текущего дня (00:00:00) в UTC
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now().UTC())
}

// GetDayStartFrom возвращает начало дня для указанного времени в UTC
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetWeekStart возвращает начало текущей недели (понедельник 00:00:00) в UTC
//
// Неделя начинается с понедельника (ISO 8601)
func GetWeekStart() time.Time {
	return GetWeekStartFrom(time.Now().UTC())
}

// GetWeekStartFrom возвращает начало недели для указанного времени
func GetWeekStartFrom(t time.Time) time.Time {
	t = t.UTC()

	// Получаем день недели (0=Sunday, 1=Monday, ..., 6=Saturday)
	weekday := int(t.Weekday())

	// Преобразуем к ISO 8601 (1=Monday, ..., 7=Sunday)
	if weekday == 0 {
		weekday = 7
	}

	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// GetMonthStart возвращает начало текущего месяца (1-е число 00:00:00) в UTC
func GetMonthStart() time.Time {
	return GetMonthStartFrom(time.Now().UTC())
}

// GetMonthStartFrom возвращает начало месяца для указанного времени
func GetMonthStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ============================================================
// Периоды статистики
// ============================================================

// PeriodType тип периода для статистики сделок
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
	PeriodAll   PeriodType = "all"
)

// ValidPeriod проверяет, что строка является известным периодом статистики
func ValidPeriod(s string) bool {
	switch PeriodType(s) {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodAll:
		return true
	}
	return false
}

// GetPeriodStart возвращает начало периода указанного типа.
// Для PeriodAll возвращается нулевое время (без нижней границы).
func GetPeriodStart(period PeriodType) time.Time {
	switch period {
	case PeriodDay:
		return GetDayStart()
	case PeriodWeek:
		return GetWeekStart()
	case PeriodMonth:
		return GetMonthStart()
	case PeriodAll:
		return time.Time{}
	default:
		return GetDayStart()
	}
}

// ============================================================
// Утилиты для timestamp
// ============================================================

// UnixMillis возвращает текущее время в миллисекундах Unix
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMillis конвертирует миллисекунды Unix в time.Time
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
