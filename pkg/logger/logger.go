package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Глобальный экземпляр логгера.
// Все пакеты используют logger.Info/Warn/Error вместо прямой зависимости от zap.Logger,
// что упрощает тестирование (в тестах логгер просто пишет в stderr на уровне error).
var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init инициализирует глобальный логгер.
//
// Параметры:
//   - level: "debug", "info", "warn", "error"
//   - format: "json" для production, "console" для разработки
//
// Повторные вызовы игнорируются (once) - конфигурация фиксируется при старте процесса.
func Init(level, format string) {
	once.Do(func() {
		globalLogger = newLogger(parseLevel(level), format)
	})
}

// GetLogger возвращает глобальный экземпляр логгера.
// Если Init не был вызван, создаётся логгер по умолчанию (info, console).
func GetLogger() *zap.Logger {
	if globalLogger == nil {
		Init("info", "console")
	}
	return globalLogger
}

// Sync сбрасывает буферизованные записи. Вызывается при shutdown.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// Вспомогательные функции для удобства использования

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newLogger создает новый экземпляр логгера
func newLogger(level zapcore.Level, format string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}
