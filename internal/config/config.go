package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"tradebot/pkg/crypto"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Bot      BotConfig
	Logging  LoggingConfig
	Trading  map[string]string // стартовые торговые параметры (сырые строки)
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	EncryptionKey string
	DebugUsername string
	DebugPassword string
}

// ExchangeConfig - параметры подключения к бирже.
// Неизменяемы после старта процесса: смена требует перезапуска.
type ExchangeConfig struct {
	APIKey    string
	APISecret string
	Symbol    string
	Testnet   bool
}

// BotConfig - инфраструктурные настройки бота
type BotConfig struct {
	// WebSocket настройки (event-driven, без polling)
	WSReconnectDelay time.Duration // стартовая задержка переподключения WS
	WSMaxReconnect   time.Duration // потолок экспоненциальной задержки

	// Периодические задачи (не влияют на торговлю)
	KeepaliveInterval time.Duration // продление listen key для user data stream
	StatsUpdateFreq   time.Duration // рассылка статистики в UI

	// Retry логика для REST запросов к бирже
	MaxRetries   int
	RetryBackoff time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// tradingDefaults - стартовые значения торговых параметров.
// Сырые строки: парсинг и конвертация процентов в доли выполняются
// при применении конфигурации, единообразно для env и API.
var tradingDefaults = map[string]string{
	"STRATEGY_TYPE":                   "SCALPING",
	"TIMEFRAME":                       "1m",
	"RISK_PER_TRADE":                  "1.0",
	"CAPITAL_ALLOCATION":              "100.0",
	"STOP_LOSS_PERCENTAGE":            "0.5",
	"TAKE_PROFIT_1_PERCENTAGE":        "1.0",
	"TAKE_PROFIT_2_PERCENTAGE":        "2.0",
	"TRAILING_STOP_PERCENTAGE":        "0.3",
	"TIME_STOP_MINUTES":               "60",
	"ORDER_COOLDOWN_MS":               "5000",
	"SCALPING_LIMIT_ORDER_TIMEOUT_MS": "10000",
	"SCALPING_SPREAD_THRESHOLD":       "0.001",
	"SCALPING_IMBALANCE_THRESHOLD":    "1.5",
	"SCALPING_DEPTH_LEVELS":           "5",
	"SUPERTREND_ATR_PERIOD":           "10",
	"SUPERTREND_ATR_MULTIPLIER":       "3.0",
	"SCALPING_RSI_PERIOD":             "14",
	"STOCH_K_PERIOD":                  "14",
	"STOCH_D_PERIOD":                  "3",
	"STOCH_SMOOTH":                    "3",
	"BB_PERIOD":                       "20",
	"BB_STD":                          "2.0",
	"VOLUME_MA_PERIOD":                "20",
	"EMA_SHORT_PERIOD":                "9",
	"EMA_LONG_PERIOD":                 "21",
	"RSI_PERIOD":                      "14",
	"RSI_OVERBOUGHT":                  "70",
	"RSI_OVERSOLD":                    "30",
	"USE_EMA_FILTER":                  "false",
	"EMA_FILTER_PERIOD":               "200",
	"USE_VOLUME_CONFIRMATION":         "false",
	"VOLUME_AVG_PERIOD":               "20",
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradebot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
			DebugUsername: getEnv("DEBUG_USERNAME", ""),
			DebugPassword: getEnv("DEBUG_PASSWORD", ""),
		},
		Exchange: ExchangeConfig{
			APIKey:    getEnv("BINANCE_API_KEY", ""),
			APISecret: getEnv("BINANCE_API_SECRET", ""),
			Symbol:    getEnv("TRADING_SYMBOL", "BTCUSDT"),
			Testnet:   getEnvAsBool("BINANCE_TESTNET", true),
		},
		Bot: BotConfig{
			// WebSocket - event-driven, без polling!
			WSReconnectDelay: getEnvAsDuration("WS_RECONNECT_DELAY", 1*time.Second),
			WSMaxReconnect:   getEnvAsDuration("WS_MAX_RECONNECT_DELAY", 30*time.Second),

			// Периодические задачи
			KeepaliveInterval: getEnvAsDuration("LISTEN_KEY_KEEPALIVE", 30*time.Minute),
			StatsUpdateFreq:   getEnvAsDuration("STATS_UPDATE_FREQ", 5*time.Second),

			// Retry для REST запросов
			MaxRetries:   getEnvAsInt("MAX_RETRIES", 4),
			RetryBackoff: getEnvAsDuration("RETRY_BACKOFF", 500*time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Trading: loadTradingParams(),
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	// Ключи биржи могут храниться зашифрованными AES-256-GCM
	if err := cfg.decryptCredentials(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decryptCredentials расшифровывает API ключи биржи, если они хранятся
// в зашифрованном виде (BINANCE_CREDENTIALS_ENCRYPTED=true).
// Расшифровка выполняется один раз при старте; дальше ключи живут
// только в памяти процесса.
func (c *Config) decryptCredentials() error {
	if !getEnvAsBool("BINANCE_CREDENTIALS_ENCRYPTED", false) {
		return nil
	}

	key := []byte(c.Security.EncryptionKey)

	apiKey, err := crypto.Decrypt(c.Exchange.APIKey, key)
	if err != nil {
		return fmt.Errorf("failed to decrypt BINANCE_API_KEY: %w", err)
	}

	apiSecret, err := crypto.Decrypt(c.Exchange.APISecret, key)
	if err != nil {
		return fmt.Errorf("failed to decrypt BINANCE_API_SECRET: %w", err)
	}

	c.Exchange.APIKey = apiKey
	c.Exchange.APISecret = apiSecret
	return nil
}

// loadTradingParams собирает торговые параметры: env переопределяет дефолты
func loadTradingParams() map[string]string {
	params := make(map[string]string, len(tradingDefaults))
	for key, def := range tradingDefaults {
		params[key] = getEnv(key, def)
	}
	return params
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для шифрования API секрета биржи
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for encrypting API credentials")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	// API ключи обязательны: без них бот не сможет торговать
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET are required")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Валидация retry параметров
	if c.Bot.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES cannot be negative, got %d", c.Bot.MaxRetries)
	}

	if c.Bot.MaxRetries > 10 {
		return fmt.Errorf("MAX_RETRIES should not exceed 10, got %d", c.Bot.MaxRetries)
	}

	// Валидация таймаутов (должны быть положительными)
	if c.Bot.WSReconnectDelay <= 0 {
		return fmt.Errorf("WS_RECONNECT_DELAY must be positive, got %v", c.Bot.WSReconnectDelay)
	}

	if c.Bot.KeepaliveInterval <= 0 {
		return fmt.Errorf("LISTEN_KEY_KEEPALIVE must be positive, got %v", c.Bot.KeepaliveInterval)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
