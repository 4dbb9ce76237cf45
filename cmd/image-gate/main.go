// Точка входа Image Gate — прокси раздачи файлов с политикой доступа.
// Загружает конфигурацию, подключает хранилище метаданных (Redis или PostgreSQL),
// создаёт клиентов origin, Telegram Bot API и модерации, pipeline раздачи,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/bigkaa/goartstore/image-gate/internal/api/handlers"
	"github.com/bigkaa/goartstore/image-gate/internal/api/middleware"
	"github.com/bigkaa/goartstore/image-gate/internal/config"
	"github.com/bigkaa/goartstore/image-gate/internal/database"
	"github.com/bigkaa/goartstore/image-gate/internal/domain/policy"
	"github.com/bigkaa/goartstore/image-gate/internal/moderation"
	"github.com/bigkaa/goartstore/image-gate/internal/originclient"
	"github.com/bigkaa/goartstore/image-gate/internal/repository"
	"github.com/bigkaa/goartstore/image-gate/internal/server"
	"github.com/bigkaa/goartstore/image-gate/internal/service"
	"github.com/bigkaa/goartstore/image-gate/internal/tgclient"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Image Gate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("origin", cfg.OriginURL),
		slog.String("store", cfg.StoreBackend),
		slog.Bool("whitelist_mode", cfg.WhitelistMode),
	)

	ctx := context.Background()

	// 3. Хранилище метаданных
	var (
		store        repository.MetadataStore
		storeChecker handlers.ReadinessChecker
		pgDB         *sql.DB
		redisClient  *redis.Client
	)

	switch cfg.StoreBackend {
	case config.StoreRedis:
		rdb, redisErr := database.ConnectRedis(ctx, cfg, logger)
		if redisErr != nil {
			logger.Error("Ошибка подключения к Redis", slog.String("error", redisErr.Error()))
			os.Exit(1)
		}
		defer rdb.Close()
		redisClient = rdb

		store = repository.NewRedisStore(rdb, cfg.RedisKeyPrefix)
		storeChecker = database.NewRedisReadinessChecker(rdb)

	case config.StorePostgres:
		logger.Info("Применение миграций БД...")
		if migrateErr := database.Migrate(cfg, logger); migrateErr != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", migrateErr.Error()))
			os.Exit(1)
		}

		pool, pgErr := database.Connect(ctx, cfg, logger)
		if pgErr != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", pgErr.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		pgDB = stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		store = repository.NewPostgresStore(pool)
		storeChecker = database.NewReadinessChecker(pool)

	default:
		logger.Warn("Хранилище метаданных не сконфигурировано, файлы раздаются без политики доступа")
	}

	// 4. Клиент origin
	originClient, err := originclient.New(cfg.OriginCACertPath, cfg.OriginTimeout, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента origin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Telegram Bot API (lookup file_id). Без токена — только прямые пути.
	var locator service.FileLocator
	if cfg.TelegramBotToken != "" {
		locator = tgclient.New(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.LookupTimeout, logger)
		logger.Info("Lookup через Telegram Bot API включён",
			slog.String("api_url", cfg.TelegramAPIURL),
			slog.Int("cache_size", cfg.LookupCacheSize),
			slog.String("cache_ttl", cfg.LookupCacheTTL.String()),
		)
	}
	resolver := service.NewResolver(
		cfg.OriginURL,
		locator,
		service.NewLookupCache(cfg.LookupCacheSize, cfg.LookupCacheTTL),
		logger,
	)

	// 6. Модерация
	moderator := moderation.New(
		cfg.ModerationURL,
		cfg.ModerationAPIKey,
		cfg.ModerationTimeout,
		cfg.ModerationRPS,
		cfg.ModerationBurst,
		logger,
	)
	if moderator.Enabled() {
		logger.Info("Модерация включена",
			slog.Float64("rps", cfg.ModerationRPS),
			slog.Int("burst", cfg.ModerationBurst),
		)
	}

	// 7. Pipeline раздачи
	disposition, err := policy.NewDispositionPolicy(cfg.DispositionPolicy)
	if err != nil {
		logger.Error("Ошибка политики Content-Disposition", slog.String("error", err.Error()))
		os.Exit(1)
	}

	gateway := service.NewGateway(
		resolver,
		originClient,
		service.NewMetadataAccessor(store, logger),
		moderator,
		service.GatewayConfig{
			WhitelistMode: cfg.WhitelistMode,
			BlockImageURL: cfg.BlockImageURL,
			Disposition:   disposition,
		},
		logger,
	)

	// 8. Middleware: request id, логирование, метрики, признак администратора
	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.Recoverer(logger),
		middleware.MetricsMiddleware(),
	}

	var jwksChecker handlers.ReadinessChecker
	if cfg.JWTJWKSURL != "" {
		jwtAuth, jwtErr := middleware.NewJWTAuth(
			cfg.JWTJWKSURL,
			cfg.JWKSCACertPath,
			cfg.JWTIssuer,
			cfg.RoleAdminGroups,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if jwtErr != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", jwtErr.Error()))
			os.Exit(1)
		}
		middlewares = append(middlewares, jwtAuth.Middleware())

		checker, checkerErr := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSCACertPath, cfg.JWKSClientTimeout)
		if checkerErr != nil {
			logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", checkerErr.Error()))
			os.Exit(1)
		}
		jwksChecker = checker

		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	}

	if cfg.AdminRefererBypass {
		logger.Warn("Включён признак администратора по Referer (IG_ADMIN_REFERER_BYPASS): Referer задаётся клиентом")
		middlewares = append(middlewares, middleware.RefererAdmin(cfg.PublicURL, logger))
	}

	// 9. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewFileHandler(gateway, cfg.PublicURL, logger),
		handlers.NewHealthHandler(storeChecker, jwksChecker),
	)

	// 10. topologymetrics — мониторинг origin и хранилища метаданных
	var dephealthSvc *service.DephealthService
	if cfg.DephealthEnabled {
		svc, dhErr := service.NewDephealthService(service.DephealthConfig{
			ServiceID:     "image-gate",
			Group:         cfg.DephealthGroup,
			OriginURL:     cfg.OriginURL,
			DB:            pgDB,
			PgConnURL:     cfg.DatabaseURL(),
			Redis:         redisClient,
			CheckInterval: cfg.DephealthCheckInterval,
		}, logger)
		if dhErr != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := svc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			dephealthSvc = svc
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler, middlewares...)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Image Gate остановлен")
}
