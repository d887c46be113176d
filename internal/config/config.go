// Пакет config — загрузка и валидация конфигурации DataFixer
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

// Config содержит все параметры конфигурации DataFixer.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8000-8009)
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

	// --- Сервис коррекции ---

	// URL сервиса коррекции (например, http://fixer:8000)
	FixerURL string
	// Таймаут одного запроса исправления
	FixerTimeout time.Duration
	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64
	// Максимальный размер ответа сервиса коррекции в байтах.
	// Больше MaxUploadSize: исправленный текст может вырасти
	// из-за форматирования.
	MaxFixResponseSize int64

	// --- Обработка ---

	// Размер очереди задач исправления
	RepairQueueSize int
	// Количество воркеров исправления
	RepairWorkers int

	// --- Хранилище содержимого ---

	// Корневая директория blob-хранилища
	DataDir string

	// --- Кэш diff ---

	// Максимальное количество записей в LRU-кэше diff
	DiffCacheSize int
	// TTL записи кэша diff
	DiffCacheTTL time.Duration

	// --- JWT ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Путь к CA-сертификату для TLS-соединения с JWKS (опционально)
	JWKSCACertPath string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Мониторинг зависимостей ---

	// Группа topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

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

	// DF_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("DF_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("DF_PORT: %w", err)
	}
	if cfg.Port < 8000 || cfg.Port > 8009 {
		return nil, fmt.Errorf("DF_PORT: значение %d вне допустимого диапазона 8000-8009", cfg.Port)
	}

	// DF_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DF_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DF_LOG_LEVEL: %w", err)
	}

	// DF_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("DF_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DF_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// DF_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("DF_DB_HOST")
	if err != nil {
		return nil, err
	}

	// DF_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("DF_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DF_DB_PORT: %w", err)
	}

	// DF_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("DF_DB_NAME")
	if err != nil {
		return nil, err
	}

	// DF_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("DF_DB_USER")
	if err != nil {
		return nil, err
	}

	// DF_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("DF_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// DF_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("DF_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DF_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Сервис коррекции ---

	// DF_FIXER_URL — обязательный
	cfg.FixerURL, err = getEnvRequired("DF_FIXER_URL")
	if err != nil {
		return nil, err
	}
	// Убираем trailing slash
	cfg.FixerURL = strings.TrimRight(cfg.FixerURL, "/")

	// DF_FIXER_TIMEOUT — таймаут запроса исправления (по умолчанию 2m)
	cfg.FixerTimeout, err = getEnvDuration("DF_FIXER_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DF_FIXER_TIMEOUT: %w", err)
	}

	// DF_MAX_UPLOAD_SIZE — лимит загрузки (по умолчанию 5 MiB)
	cfg.MaxUploadSize, err = getEnvInt64("DF_MAX_UPLOAD_SIZE", 5*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("DF_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize < 1 {
		return nil, fmt.Errorf("DF_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// DF_MAX_FIX_RESPONSE_SIZE — лимит ответа сервиса коррекции (по умолчанию 10 MiB)
	cfg.MaxFixResponseSize, err = getEnvInt64("DF_MAX_FIX_RESPONSE_SIZE", 10*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("DF_MAX_FIX_RESPONSE_SIZE: %w", err)
	}
	if cfg.MaxFixResponseSize < cfg.MaxUploadSize {
		return nil, fmt.Errorf("DF_MAX_FIX_RESPONSE_SIZE: значение %d меньше DF_MAX_UPLOAD_SIZE %d", cfg.MaxFixResponseSize, cfg.MaxUploadSize)
	}

	// --- Обработка ---

	// DF_REPAIR_QUEUE_SIZE — размер очереди исправлений (по умолчанию 64)
	cfg.RepairQueueSize, err = getEnvInt("DF_REPAIR_QUEUE_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("DF_REPAIR_QUEUE_SIZE: %w", err)
	}
	if cfg.RepairQueueSize < 1 || cfg.RepairQueueSize > 10000 {
		return nil, fmt.Errorf("DF_REPAIR_QUEUE_SIZE: значение %d вне допустимого диапазона 1-10000", cfg.RepairQueueSize)
	}

	// DF_REPAIR_WORKERS — количество воркеров (по умолчанию 4)
	cfg.RepairWorkers, err = getEnvInt("DF_REPAIR_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("DF_REPAIR_WORKERS: %w", err)
	}
	if cfg.RepairWorkers < 1 || cfg.RepairWorkers > 64 {
		return nil, fmt.Errorf("DF_REPAIR_WORKERS: значение %d вне допустимого диапазона 1-64", cfg.RepairWorkers)
	}

	// --- Хранилище содержимого ---

	// DF_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("DF_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// --- Кэш diff ---

	// DF_DIFF_CACHE_SIZE — размер LRU-кэша (по умолчанию 256)
	cfg.DiffCacheSize, err = getEnvInt("DF_DIFF_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("DF_DIFF_CACHE_SIZE: %w", err)
	}
	if cfg.DiffCacheSize < 1 {
		return nil, fmt.Errorf("DF_DIFF_CACHE_SIZE: значение должно быть положительным")
	}

	// DF_DIFF_CACHE_TTL — TTL записи кэша (по умолчанию 10m)
	cfg.DiffCacheTTL, err = getEnvDuration("DF_DIFF_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DF_DIFF_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	// DF_KEYCLOAK_URL — обязательный
	cfg.KeycloakURL, err = getEnvRequired("DF_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// DF_KEYCLOAK_REALM — realm (по умолчанию datafixer)
	cfg.KeycloakRealm = getEnvDefault("DF_KEYCLOAK_REALM", "datafixer")

	// DF_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("DF_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// DF_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("DF_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// DF_JWKS_CA_CERT_PATH — путь к CA-сертификату JWKS (опционально)
	cfg.JWKSCACertPath = getEnvDefault("DF_JWKS_CA_CERT_PATH", "")

	// DF_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("DF_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DF_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// DF_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("DF_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DF_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// DF_JWT_LEEWAY — допустимое отклонение времени (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("DF_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DF_JWT_LEEWAY: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// DF_DEPHEALTH_GROUP — группа topologymetrics (по умолчанию datafixer)
	cfg.DephealthGroup = getEnvDefault("DF_DEPHEALTH_GROUP", "datafixer")

	// DF_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("DF_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DF_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// DF_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("DF_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DF_SHUTDOWN_TIMEOUT: %w", err)
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

// DatabaseURL возвращает URL подключения к PostgreSQL (для лейблов dephealth).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
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
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
