// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Image Gate мониторит:
//   - origin — HTTP checker к корню origin (critical)
//   - PostgreSQL — SQL checker через существующий pgxpool (только IG_STORE_BACKEND=postgres)
//   - Redis — PING через существующий клиент (только IG_STORE_BACKEND=redis)
//
// Telegram Bot API и API модерации не мониторятся: их сбои не прерывают
// раздачу файлов и обрабатываются в момент запроса.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/contrib/redispool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения (image-gate)
	ServiceID string
	// Group — имя группы в метриках (IG_DEPHEALTH_GROUP)
	Group string
	// OriginURL — базовый URL origin
	OriginURL string
	// DB — *sql.DB из pgxpool через stdlib.OpenDBFromPool(); nil — PostgreSQL не используется
	DB *sql.DB
	// PgConnURL — URL PostgreSQL (для метрик/лейблов, не для подключения)
	PgConnURL string
	// Redis — клиент хранилища метаданных; nil — Redis не используется
	Redis *redis.Client
	// CheckInterval — интервал проверки (IG_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

// newDephealthService — внутренний конструктор.
func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	originDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(cfg.OriginURL),
		dephealth.WithHTTPHealthPath("/"),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	}
	if parsed, err := url.Parse(cfg.OriginURL); err == nil && parsed.Scheme == "https" {
		originDepOpts = append(originDepOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 4+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP("origin", originDepOpts...),
	)

	if cfg.DB != nil {
		// PostgreSQL — connection pool mode через существующий pgxpool.
		// Хранилище не критично: при его сбое файлы раздаются (fail-open).
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PgConnURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		))
	}
	if cfg.Redis != nil {
		// Redis — pool mode через клиент хранилища, host:port берутся из его настроек
		opts = append(opts, redispool.FromClient("redis", cfg.Redis,
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
