// Пакет config — загрузка и валидация конфигурации Sharebin
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Sharebin.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Хранилище ---

	// Директория хранения файлов
	DataDir string
	// Длина выделяемых кодов файлов и групп
	CodeLength int
	// Абсолютный потолок размера одной загрузки в байтах.
	// Применяется, когда ни квота, ни глобальный лимит не ограничивают передачу.
	MaxFileSize int64

	// --- Кэш метаданных ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- JWT ---

	// URL JWKS endpoint. Пустое значение отключает проверку JWT
	// (режим для локальной разработки и тестов).
	JWTJWKSURL string
	// Ожидаемый issuer JWT (опционально)
	JWTIssuer string
	// Роль, дающая административный доступ
	JWTAdminRole string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// SHB_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("SHB_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("SHB_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SHB_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// SHB_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("SHB_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("SHB_LOG_LEVEL: %w", err)
	}

	// SHB_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("SHB_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("SHB_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// SHB_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("SHB_DB_HOST")
	if err != nil {
		return nil, err
	}

	// SHB_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("SHB_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("SHB_DB_PORT: %w", err)
	}

	// SHB_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("SHB_DB_NAME")
	if err != nil {
		return nil, err
	}

	// SHB_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("SHB_DB_USER")
	if err != nil {
		return nil, err
	}

	// SHB_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("SHB_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// SHB_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("SHB_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("SHB_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Хранилище ---

	// SHB_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("SHB_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// SHB_CODE_LENGTH — длина кодов (по умолчанию 6)
	cfg.CodeLength, err = getEnvInt("SHB_CODE_LENGTH", 6)
	if err != nil {
		return nil, fmt.Errorf("SHB_CODE_LENGTH: %w", err)
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 16 {
		return nil, fmt.Errorf("SHB_CODE_LENGTH: значение %d вне допустимого диапазона 4-16", cfg.CodeLength)
	}

	// SHB_MAX_FILE_SIZE — абсолютный потолок одной загрузки (по умолчанию 10 GiB)
	cfg.MaxFileSize, err = getEnvInt64("SHB_MAX_FILE_SIZE", 10<<30)
	if err != nil {
		return nil, fmt.Errorf("SHB_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize < 1 {
		return nil, fmt.Errorf("SHB_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// --- Кэш метаданных ---

	// SHB_CACHE_SIZE — размер LRU-кэша (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("SHB_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("SHB_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("SHB_CACHE_SIZE: значение должно быть положительным")
	}

	// SHB_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("SHB_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("SHB_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	// SHB_JWT_JWKS_URL — опциональный; пустой = проверка JWT отключена
	cfg.JWTJWKSURL = getEnvDefault("SHB_JWT_JWKS_URL", "")

	// SHB_JWT_ISSUER — ожидаемый issuer (опционально)
	cfg.JWTIssuer = getEnvDefault("SHB_JWT_ISSUER", "")

	// SHB_JWT_ADMIN_ROLE — роль администратора (по умолчанию admin)
	cfg.JWTAdminRole = getEnvDefault("SHB_JWT_ADMIN_ROLE", "admin")

	// --- Graceful shutdown ---

	// SHB_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("SHB_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("SHB_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("недопустимое значение %q, допустимые: debug, info, warn, error", level)
	}
}
