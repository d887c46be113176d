// Точка входа DataFixer — сервис исправления повреждённых файлов.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт blob-хранилище и клиент сервиса коррекции, запускает пул
// обработчиков исправлений, topologymetrics и HTTP-сервер с JWT middleware
// и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/datafixer/internal/api/handlers"
	"github.com/bigkaa/datafixer/internal/api/middleware"
	"github.com/bigkaa/datafixer/internal/config"
	"github.com/bigkaa/datafixer/internal/database"
	"github.com/bigkaa/datafixer/internal/fixclient"
	"github.com/bigkaa/datafixer/internal/repository"
	"github.com/bigkaa/datafixer/internal/server"
	"github.com/bigkaa/datafixer/internal/service"
	"github.com/bigkaa/datafixer/internal/storage/blobstore"
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
	logger.Info("DataFixer запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("DF_DEPHEALTH_GROUP") == "" {
		logger.Warn("DF_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Blob-хранилище оригиналов и исправленных версий
	blobs, err := blobstore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации blob-хранилища",
			slog.String("data_dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("Blob-хранилище инициализировано", slog.String("data_dir", cfg.DataDir))

	// 6. Клиент сервиса коррекции
	fixer := fixclient.New(cfg.FixerURL, cfg.FixerTimeout, cfg.MaxFixResponseSize, logger)
	logger.Info("Клиент сервиса коррекции создан", slog.String("url", cfg.FixerURL))

	// 7. Repositories
	fileRepo := repository.NewFileRecordRepository(pool)

	// 8. Services
	repairSvc := service.NewRepairService(
		fileRepo, blobs, fixer,
		cfg.RepairQueueSize, cfg.RepairWorkers,
		logger,
	)
	uploadSvc := service.NewUploadService(
		fileRepo, blobs, repairSvc,
		cfg.MaxUploadSize,
		logger,
	)
	filesSvc := service.NewFileService(fileRepo, blobs, logger)
	diffSvc := service.NewDiffService(
		filesSvc, blobs,
		cfg.DiffCacheSize, cfg.DiffCacheTTL,
		logger,
	)

	// 9. Запуск пула обработчиков исправлений
	repairSvc.Start(ctx)
	logger.Info("Пул обработчиков исправлений запущен",
		slog.Int("workers", cfg.RepairWorkers),
		slog.Int("queue_size", cfg.RepairQueueSize),
	)

	// 10. Readiness checkers (PostgreSQL + Keycloak + сервис коррекции)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSCACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fixerChecker := fixclient.NewReadinessChecker(fixer)
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker, fixerChecker, logger)

	// 11. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, uploadSvc, filesSvc, diffSvc, logger)

	// 12. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWKSCACertPath,
		cfg.JWTIssuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 13. topologymetrics — мониторинг зависимостей (PostgreSQL + сервис коррекции)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"datafixer",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.FixerURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	repairSvc.Stop()

	logger.Info("DataFixer остановлен")
}
