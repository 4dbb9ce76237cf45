// Пакет config — загрузка и валидация конфигурации Image Gate
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые backend-ы хранилища метаданных.
const (
	StoreNone     = "none"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Допустимые политики Content-Disposition.
const (
	DispositionImage = "image"
	DispositionMedia = "media"
	DispositionSniff = "sniff"
)

// Config содержит все параметры конфигурации Image Gate.
// Передаётся компонентам явно при создании, глобального состояния нет.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Публичный URL gate (scheme://host) для локальных redirect.
	// Пустая строка — вычисляется из запроса.
	PublicURL string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- Origin ---

	// Базовый URL origin (по умолчанию https://telegra.ph)
	OriginURL string
	// Таймаут запроса к origin (0 — без таймаута, нужен для больших видео)
	OriginTimeout time.Duration
	// Путь к CA-сертификату origin (пустая строка — системный пул)
	OriginCACertPath string

	// --- Telegram Bot API (Lookup) ---

	// Базовый URL Telegram Bot API (по умолчанию https://api.telegram.org)
	TelegramAPIURL string
	// Токен бота. Пустая строка — lookup отключён.
	TelegramBotToken string
	// Таймаут вызова getFile
	LookupTimeout time.Duration
	// Размер LRU-кэша file_id → file_path
	LookupCacheSize int
	// TTL записи кэша (0 — кэш отключён)
	LookupCacheTTL time.Duration

	// --- Модерация ---

	// URL API модерации (по умолчанию https://api.moderatecontent.com/moderate/)
	ModerationURL string
	// API-ключ. Пустая строка — модерация отключена.
	ModerationAPIKey string
	// Таймаут вызова модерации
	ModerationTimeout time.Duration
	// Лимит запросов в секунду к API модерации (0 — без лимита)
	ModerationRPS float64
	// Burst для rate limiter
	ModerationBurst int

	// --- Политика ---

	// Режим белого списка: публичная раздача только whitelisted файлов
	WhitelistMode bool
	// URL картинки-заглушки для заблокированных файлов (при наличии Referer)
	BlockImageURL string
	// Политика Content-Disposition: image, media, sniff
	DispositionPolicy string
	// Устаревший признак администратора по Referer ({origin}/admin).
	// Слабая граница доверия, по умолчанию выключен.
	AdminRefererBypass bool

	// --- JWT (признак администратора) ---

	// URL JWKS endpoint. Пустая строка — JWT-проверка отключена.
	JWTJWKSURL string
	// Ожидаемый issuer (пустая строка — не проверяется)
	JWTIssuer string
	// Путь к CA-сертификату JWKS endpoint (пустая строка — системный пул)
	JWKSCACertPath string
	// Группы IdP, дающие роль admin
	RoleAdminGroups []string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Хранилище метаданных ---

	// Backend: none, redis, postgres
	StoreBackend string

	// Redis
	RedisURL       string
	RedisKeyPrefix string

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- topologymetrics ---

	DephealthEnabled       bool
	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// IG_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("IG_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("IG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("IG_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	logLevel := getEnvDefault("IG_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("IG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("IG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("IG_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// IG_PUBLIC_URL — публичный адрес gate (опционально)
	cfg.PublicURL = strings.TrimRight(os.Getenv("IG_PUBLIC_URL"), "/")
	if cfg.PublicURL != "" {
		if err := validateURL(cfg.PublicURL); err != nil {
			return nil, fmt.Errorf("IG_PUBLIC_URL: %w", err)
		}
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("IG_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_HTTP_READ_TIMEOUT: %w", err)
	}

	// Запись ответа включает streaming видео — таймаут больше, чем у QM
	cfg.HTTPWriteTimeout, err = getEnvDuration("IG_HTTP_WRITE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IG_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("IG_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("IG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Origin ---

	cfg.OriginURL = strings.TrimRight(getEnvDefault("IG_ORIGIN_URL", "https://telegra.ph"), "/")
	if err := validateURL(cfg.OriginURL); err != nil {
		return nil, fmt.Errorf("IG_ORIGIN_URL: %w", err)
	}

	cfg.OriginTimeout, err = getEnvDuration("IG_ORIGIN_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("IG_ORIGIN_TIMEOUT: %w", err)
	}
	cfg.OriginCACertPath = os.Getenv("IG_ORIGIN_CA_CERT_PATH")

	// --- Telegram ---

	cfg.TelegramAPIURL = strings.TrimRight(getEnvDefault("IG_TELEGRAM_API_URL", "https://api.telegram.org"), "/")
	if err := validateURL(cfg.TelegramAPIURL); err != nil {
		return nil, fmt.Errorf("IG_TELEGRAM_API_URL: %w", err)
	}
	cfg.TelegramBotToken = os.Getenv("IG_TELEGRAM_BOT_TOKEN")

	cfg.LookupTimeout, err = getEnvDurationFallback("IG_LOOKUP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_LOOKUP_TIMEOUT: %w", err)
	}

	cfg.LookupCacheSize, err = getEnvInt("IG_LOOKUP_CACHE_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("IG_LOOKUP_CACHE_SIZE: %w", err)
	}
	if cfg.LookupCacheSize < 1 {
		return nil, fmt.Errorf("IG_LOOKUP_CACHE_SIZE: значение должно быть > 0")
	}

	// Ссылки Telegram на файл действительны не менее часа
	cfg.LookupCacheTTL, err = getEnvDuration("IG_LOOKUP_CACHE_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IG_LOOKUP_CACHE_TTL: %w", err)
	}

	// --- Модерация ---

	cfg.ModerationURL = getEnvDefault("IG_MODERATION_URL", "https://api.moderatecontent.com/moderate/")
	if err := validateURL(cfg.ModerationURL); err != nil {
		return nil, fmt.Errorf("IG_MODERATION_URL: %w", err)
	}
	cfg.ModerationAPIKey = os.Getenv("IG_MODERATION_API_KEY")

	cfg.ModerationTimeout, err = getEnvDurationFallback("IG_MODERATION_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_MODERATION_TIMEOUT: %w", err)
	}

	cfg.ModerationRPS, err = getEnvFloat("IG_MODERATION_RPS", 0)
	if err != nil {
		return nil, fmt.Errorf("IG_MODERATION_RPS: %w", err)
	}
	if cfg.ModerationRPS < 0 {
		return nil, fmt.Errorf("IG_MODERATION_RPS: значение должно быть >= 0")
	}

	cfg.ModerationBurst, err = getEnvInt("IG_MODERATION_BURST", 5)
	if err != nil {
		return nil, fmt.Errorf("IG_MODERATION_BURST: %w", err)
	}
	if cfg.ModerationBurst < 1 {
		return nil, fmt.Errorf("IG_MODERATION_BURST: значение должно быть > 0")
	}

	// --- Политика ---

	cfg.WhitelistMode, err = getEnvBool("IG_WHITELIST_MODE", false)
	if err != nil {
		return nil, fmt.Errorf("IG_WHITELIST_MODE: %w", err)
	}

	cfg.BlockImageURL = getEnvDefault("IG_BLOCK_IMAGE_URL",
		"https://static-res.pages.dev/teleimage/img-block-compressed.png")
	if err := validateURL(cfg.BlockImageURL); err != nil {
		return nil, fmt.Errorf("IG_BLOCK_IMAGE_URL: %w", err)
	}

	cfg.DispositionPolicy = getEnvDefault("IG_DISPOSITION_POLICY", DispositionMedia)
	switch cfg.DispositionPolicy {
	case DispositionImage, DispositionMedia, DispositionSniff:
	default:
		return nil, fmt.Errorf("IG_DISPOSITION_POLICY: недопустимое значение %q, допустимые: image, media, sniff",
			cfg.DispositionPolicy)
	}

	cfg.AdminRefererBypass, err = getEnvBool("IG_ADMIN_REFERER_BYPASS", false)
	if err != nil {
		return nil, fmt.Errorf("IG_ADMIN_REFERER_BYPASS: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = os.Getenv("IG_JWT_JWKS_URL")
	if cfg.JWTJWKSURL != "" {
		if err := validateURL(cfg.JWTJWKSURL); err != nil {
			return nil, fmt.Errorf("IG_JWT_JWKS_URL: %w", err)
		}
	}
	cfg.JWTIssuer = os.Getenv("IG_JWT_ISSUER")
	cfg.JWKSCACertPath = os.Getenv("IG_JWKS_CA_CERT_PATH")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("IG_ROLE_ADMIN_GROUPS", "image-gate-admins"))

	cfg.JWKSClientTimeout, err = getEnvDurationFallback("IG_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	cfg.JWKSRefreshInterval, err = getEnvDurationFallback("IG_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("IG_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("IG_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_JWT_LEEWAY: %w", err)
	}

	// --- Хранилище метаданных ---

	cfg.StoreBackend = getEnvDefault("IG_STORE_BACKEND", StoreNone)
	switch cfg.StoreBackend {
	case StoreNone:
	case StoreRedis:
		cfg.RedisURL, err = getEnvRequired("IG_REDIS_URL")
		if err != nil {
			return nil, err
		}
	case StorePostgres:
		if err := loadDatabase(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("IG_STORE_BACKEND: недопустимое значение %q, допустимые: none, redis, postgres",
			cfg.StoreBackend)
	}
	cfg.RedisKeyPrefix = getEnvDefault("IG_REDIS_KEY_PREFIX", "img_url:")

	// --- topologymetrics ---

	cfg.DephealthEnabled, err = getEnvBool("IG_DEPHEALTH_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("IG_DEPHEALTH_ENABLED: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("IG_DEPHEALTH_GROUP", "image-gate")

	cfg.DephealthCheckInterval, err = getEnvDurationFallback("IG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("IG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// loadDatabase загружает параметры PostgreSQL (только для IG_STORE_BACKEND=postgres).
func loadDatabase(cfg *Config) error {
	var err error

	cfg.DBHost, err = getEnvRequired("IG_DB_HOST")
	if err != nil {
		return err
	}

	cfg.DBPort, err = getEnvInt("IG_DB_PORT", 5432)
	if err != nil {
		return fmt.Errorf("IG_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("IG_DB_NAME")
	if err != nil {
		return err
	}

	cfg.DBUser, err = getEnvRequired("IG_DB_USER")
	if err != nil {
		return err
	}

	cfg.DBPassword, err = getEnvRequired("IG_DB_PASSWORD")
	if err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("IG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("IG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full",
			cfg.DBSSLMode)
	}

	return nil
}

// StoreEnabled сообщает, сконфигурировано ли хранилище метаданных.
func (c *Config) StoreEnabled() bool {
	return c.StoreBackend != StoreNone
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL (postgres://...).
// Используется для лейблов topologymetrics.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
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

// getEnvFloat возвращает значение с плавающей точкой или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
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
	if d < 0 {
		return 0, fmt.Errorf("значение должно быть >= 0")
	}
	return d, nil
}

// getEnvDurationFallback возвращает time.Duration из переменной окружения.
// Если переменная не задана, используется fallbackVal.
// Если задана — парсится и валидируется (> 0).
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallbackVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// validateURL проверяет, что строка — абсолютный http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("некорректный URL %q: ожидается схема http или https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("некорректный URL %q: отсутствует host", raw)
	}
	return nil
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
