// Пакет config — загрузка и валидация конфигурации Filebox
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Filebox.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration
	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Максимальный размер пула подключений pgxpool
	DBMaxConns int

	// --- Хранилище файлов ---

	// Директория хранения файлов пользователей
	DataDir string
	// Максимальный размер загружаемого файла в байтах (по умолчанию 100 MB)
	MaxFileSize int64

	// --- Сессии ---

	// Секрет для подписи session-токенов (HS256).
	// Если пуст — генерируется случайный (сессии не переживают рестарт).
	SessionSecret string
	// Время жизни сессии (по умолчанию 24h)
	SessionTTL time.Duration
	// Флаг Secure на session cookie (true за TLS-терминатором)
	CookieSecure bool

	// --- Кэш метаданных ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FB_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("FB_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("FB_PORT: %w", err)
	}

	// FB_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("FB_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("FB_LOG_LEVEL: %w", err)
	}

	// FB_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FB_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("FB_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FB_HTTP_READ_TIMEOUT: %w", err)
	}

	cfg.HTTPWriteTimeout, err = getEnvDuration("FB_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FB_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("FB_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FB_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("FB_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FB_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost = getEnvDefault("FB_DB_HOST", "localhost")

	cfg.DBPort, err = getEnvInt("FB_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FB_DB_PORT: %w", err)
	}

	cfg.DBName = getEnvDefault("FB_DB_NAME", "filebox")

	// FB_DB_USER — обязательная переменная
	cfg.DBUser, err = getEnvRequired("FB_DB_USER")
	if err != nil {
		return nil, err
	}

	// FB_DB_PASSWORD — обязательная переменная
	cfg.DBPassword, err = getEnvRequired("FB_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("FB_DB_SSL_MODE", "disable")

	cfg.DBMaxConns, err = getEnvInt("FB_DB_MAX_CONNS", 8)
	if err != nil {
		return nil, fmt.Errorf("FB_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("FB_DB_MAX_CONNS: значение должно быть положительным")
	}

	// --- Хранилище файлов ---

	// FB_DATA_DIR — директория хранения файлов (по умолчанию ./uploads)
	cfg.DataDir = getEnvDefault("FB_DATA_DIR", "uploads")

	// FB_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MB)
	cfg.MaxFileSize, err = getEnvInt64("FB_MAX_FILE_SIZE", 100<<20)
	if err != nil {
		return nil, fmt.Errorf("FB_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("FB_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// --- Сессии ---

	cfg.SessionSecret = os.Getenv("FB_SESSION_SECRET")

	cfg.SessionTTL, err = getEnvDuration("FB_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FB_SESSION_TTL: %w", err)
	}

	cfg.CookieSecure, err = getEnvBool("FB_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("FB_COOKIE_SECURE: %w", err)
	}

	// --- Кэш метаданных ---

	cfg.CacheSize, err = getEnvInt("FB_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("FB_CACHE_SIZE: %w", err)
	}

	cfg.CacheTTL, err = getEnvDuration("FB_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FB_CACHE_TTL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN формирует строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return c.dsn("postgres")
}

// MigrateDSN формирует строку подключения для golang-migrate.
// Отличается только схемой: migrate выбирает драйвер pgx/v5 по "pgx5".
func (c *Config) MigrateDSN() string {
	return c.dsn("pgx5")
}

func (c *Config) dsn(scheme string) string {
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение %q", val)
	}
	return parsed, nil
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64-значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает duration-значение переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
