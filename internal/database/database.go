// Пакет database — подключение к хранилищам метаданных Image Gate:
// PostgreSQL через pgxpool с миграциями (golang-migrate) и Redis.
// Также проверки готовности для /health/ready.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/image-gate/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// readinessTimeout — таймаут одной проверки готовности.
const readinessTimeout = 3 * time.Second

// Connect создаёт пул подключений к PostgreSQL.
// Выполняет ping для проверки доступности.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	logger.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
	)

	return pool, nil
}

// Migrate применяет SQL-миграции из embedded FS к базе данных.
// Использует golang-migrate с драйвером pgx5.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Миграции применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)

	return nil
}

// ConnectRedis создаёт клиента Redis и проверяет соединение.
func ConnectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("некорректный IG_REDIS_URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	logger.Info("Подключение к Redis установлено",
		slog.String("addr", opt.Addr),
		slog.Int("db", opt.DB),
		slog.String("key_prefix", cfg.RedisKeyPrefix),
	)

	return client, nil
}

// pinger — общий вид проверки доступности хранилища.
type pinger func(ctx context.Context) error

// ReadinessChecker — проверка готовности хранилища метаданных для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	name string
	ping pinger
}

// NewReadinessChecker создаёт проверку готовности PostgreSQL.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{name: "PostgreSQL", ping: pool.Ping}
}

// NewRedisReadinessChecker создаёт проверку готовности Redis.
func NewRedisReadinessChecker(client redis.UniversalClient) *ReadinessChecker {
	return &ReadinessChecker{
		name: "Redis",
		ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}

// CheckReady проверяет подключение через ping.
// Недоступное хранилище — degraded, не fail: файлы раздаются без политики.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return "degraded", fmt.Sprintf("%s недоступен: %v", c.name, err)
	}
	return "ok", "подключение активно"
}
