package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// allIGEnvVars — все переменные окружения IG_*, очищаемые перед тестом.
var allIGEnvVars = []string{
	"IG_PORT", "IG_LOG_LEVEL", "IG_LOG_FORMAT", "IG_PUBLIC_URL",
	"IG_HTTP_READ_TIMEOUT", "IG_HTTP_WRITE_TIMEOUT", "IG_HTTP_IDLE_TIMEOUT", "IG_SHUTDOWN_TIMEOUT",
	"IG_ORIGIN_URL", "IG_ORIGIN_TIMEOUT",
	"IG_TELEGRAM_API_URL", "IG_TELEGRAM_BOT_TOKEN", "IG_LOOKUP_TIMEOUT",
	"IG_LOOKUP_CACHE_SIZE", "IG_LOOKUP_CACHE_TTL",
	"IG_MODERATION_URL", "IG_MODERATION_API_KEY", "IG_MODERATION_TIMEOUT",
	"IG_MODERATION_RPS", "IG_MODERATION_BURST",
	"IG_WHITELIST_MODE", "IG_BLOCK_IMAGE_URL", "IG_DISPOSITION_POLICY", "IG_ADMIN_REFERER_BYPASS",
	"IG_JWT_JWKS_URL", "IG_JWT_ISSUER", "IG_ROLE_ADMIN_GROUPS",
	"IG_JWKS_CLIENT_TIMEOUT", "IG_JWKS_REFRESH_INTERVAL", "IG_JWT_LEEWAY",
	"IG_STORE_BACKEND", "IG_REDIS_URL", "IG_REDIS_KEY_PREFIX",
	"IG_DB_HOST", "IG_DB_PORT", "IG_DB_NAME", "IG_DB_USER", "IG_DB_PASSWORD", "IG_DB_SSL_MODE",
	"IG_DEPHEALTH_ENABLED", "IG_DEPHEALTH_GROUP", "IG_DEPHEALTH_CHECK_INTERVAL",
}

// setEnv очищает все IG_* и устанавливает переданные значения.
// Пустое значение переменной равносильно её отсутствию.
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range allIGEnvVars {
		t.Setenv(k, "")
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

// TestLoad_Defaults проверяет значения по умолчанию.
func TestLoad_Defaults(t *testing.T) {
	setEnv(t, nil)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, ожидался 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидался info", cfg.LogLevel)
	}
	if cfg.OriginURL != "https://telegra.ph" {
		t.Errorf("OriginURL = %q", cfg.OriginURL)
	}
	if cfg.TelegramAPIURL != "https://api.telegram.org" {
		t.Errorf("TelegramAPIURL = %q", cfg.TelegramAPIURL)
	}
	if cfg.StoreBackend != StoreNone || cfg.StoreEnabled() {
		t.Errorf("StoreBackend = %q, ожидался none", cfg.StoreBackend)
	}
	if cfg.DispositionPolicy != DispositionMedia {
		t.Errorf("DispositionPolicy = %q, ожидался media", cfg.DispositionPolicy)
	}
	if cfg.WhitelistMode {
		t.Error("WhitelistMode по умолчанию должен быть false")
	}
	if cfg.AdminRefererBypass {
		t.Error("AdminRefererBypass по умолчанию должен быть false")
	}
	if cfg.ModerationAPIKey != "" {
		t.Error("ModerationAPIKey по умолчанию должен быть пустым")
	}
	if cfg.LookupCacheTTL != 30*time.Minute {
		t.Errorf("LookupCacheTTL = %v, ожидался 30m", cfg.LookupCacheTTL)
	}
	if len(cfg.RoleAdminGroups) != 1 || cfg.RoleAdminGroups[0] != "image-gate-admins" {
		t.Errorf("RoleAdminGroups = %v", cfg.RoleAdminGroups)
	}
}

// TestLoad_Overrides проверяет разбор явно заданных значений.
func TestLoad_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"IG_PORT":               "9000",
		"IG_LOG_LEVEL":          "debug",
		"IG_LOG_FORMAT":         "text",
		"IG_PUBLIC_URL":         "https://img.example.com/",
		"IG_ORIGIN_URL":         "http://origin.local/",
		"IG_WHITELIST_MODE":     "true",
		"IG_MODERATION_API_KEY": "secret",
		"IG_MODERATION_RPS":     "2.5",
		"IG_DISPOSITION_POLICY": "sniff",
		"IG_ROLE_ADMIN_GROUPS":  " admins , ops ,",
		"IG_STORE_BACKEND":      "redis",
		"IG_REDIS_URL":          "redis://localhost:6379/0",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, ожидался 9000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("LogLevel/LogFormat = %v/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.PublicURL != "https://img.example.com" {
		t.Errorf("PublicURL = %q, trailing slash должен быть убран", cfg.PublicURL)
	}
	if cfg.OriginURL != "http://origin.local" {
		t.Errorf("OriginURL = %q", cfg.OriginURL)
	}
	if !cfg.WhitelistMode {
		t.Error("WhitelistMode должен быть true")
	}
	if cfg.ModerationRPS != 2.5 {
		t.Errorf("ModerationRPS = %v, ожидался 2.5", cfg.ModerationRPS)
	}
	if cfg.DispositionPolicy != DispositionSniff {
		t.Errorf("DispositionPolicy = %q", cfg.DispositionPolicy)
	}
	if len(cfg.RoleAdminGroups) != 2 || cfg.RoleAdminGroups[1] != "ops" {
		t.Errorf("RoleAdminGroups = %v", cfg.RoleAdminGroups)
	}
	if !cfg.StoreEnabled() || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("StoreBackend/RedisURL = %q/%q", cfg.StoreBackend, cfg.RedisURL)
	}
}

// TestLoad_Postgres проверяет обязательные параметры PostgreSQL и URL-ы.
func TestLoad_Postgres(t *testing.T) {
	setEnv(t, map[string]string{
		"IG_STORE_BACKEND": "postgres",
		"IG_DB_HOST":       "db",
		"IG_DB_NAME":       "gate",
		"IG_DB_USER":       "gate",
		"IG_DB_PASSWORD":   "p@ss",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load ошибка: %v", err)
	}

	if cfg.DBPort != 5432 || cfg.DBSSLMode != "disable" {
		t.Errorf("DBPort/DBSSLMode = %d/%q", cfg.DBPort, cfg.DBSSLMode)
	}
	if got := cfg.MigrateURL(); got != "pgx5://gate:p%40ss@db:5432/gate?sslmode=disable" {
		t.Errorf("MigrateURL = %q", got)
	}
	if got := cfg.DatabaseURL(); !strings.HasPrefix(got, "postgres://gate:") {
		t.Errorf("DatabaseURL = %q", got)
	}
	if got := cfg.DatabaseDSN(); !strings.Contains(got, "host=db port=5432 dbname=gate") {
		t.Errorf("DatabaseDSN = %q", got)
	}
}

// TestLoad_Invalid проверяет ошибки валидации.
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"порт вне диапазона", map[string]string{"IG_PORT": "70000"}, "IG_PORT"},
		{"порт не число", map[string]string{"IG_PORT": "abc"}, "IG_PORT"},
		{"уровень логов", map[string]string{"IG_LOG_LEVEL": "trace"}, "IG_LOG_LEVEL"},
		{"формат логов", map[string]string{"IG_LOG_FORMAT": "xml"}, "IG_LOG_FORMAT"},
		{"origin без схемы", map[string]string{"IG_ORIGIN_URL": "telegra.ph"}, "IG_ORIGIN_URL"},
		{"политика disposition", map[string]string{"IG_DISPOSITION_POLICY": "always"}, "IG_DISPOSITION_POLICY"},
		{"whitelist mode", map[string]string{"IG_WHITELIST_MODE": "yes"}, "IG_WHITELIST_MODE"},
		{"store backend", map[string]string{"IG_STORE_BACKEND": "kv"}, "IG_STORE_BACKEND"},
		{"redis без URL", map[string]string{"IG_STORE_BACKEND": "redis"}, "IG_REDIS_URL"},
		{"postgres без host", map[string]string{"IG_STORE_BACKEND": "postgres"}, "IG_DB_HOST"},
		{"отрицательный RPS", map[string]string{"IG_MODERATION_RPS": "-1"}, "IG_MODERATION_RPS"},
		{"нулевой таймаут lookup", map[string]string{"IG_LOOKUP_TIMEOUT": "0s"}, "IG_LOOKUP_TIMEOUT"},
		{"нулевой размер кэша", map[string]string{"IG_LOOKUP_CACHE_SIZE": "0"}, "IG_LOOKUP_CACHE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.vars)

			_, err := Load()
			if err == nil {
				t.Fatal("ожидалась ошибка")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ошибка %q не содержит %q", err.Error(), tt.want)
			}
		})
	}
}

// TestParseCSV проверяет разбор списков через запятую.
func TestParseCSV(t *testing.T) {
	if got := parseCSV(""); got != nil {
		t.Errorf("parseCSV(\"\") = %v, ожидался nil", got)
	}
	got := parseCSV("a, b,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("parseCSV = %v", got)
	}
}
