// Точка входа Sharebin — индекс файлового обмена с квотами.
// Загружает конфигурацию, подключается к PostgreSQL, применяет
// миграции, создаёт файловое хранилище, репозитории и сервисный
// слой, запускает HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bigkaa/gosharebin/internal/api/handlers"
	"github.com/bigkaa/gosharebin/internal/api/middleware"
	"github.com/bigkaa/gosharebin/internal/config"
	"github.com/bigkaa/gosharebin/internal/database"
	"github.com/bigkaa/gosharebin/internal/repository"
	"github.com/bigkaa/gosharebin/internal/server"
	"github.com/bigkaa/gosharebin/internal/service"
	"github.com/bigkaa/gosharebin/internal/storage/filestore"
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
	logger.Info("Sharebin запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

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

	// 5. Файловое хранилище
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации файлового хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Файловое хранилище готово", slog.String("data_dir", cfg.DataDir))

	// 6. Repositories
	txRunner := repository.NewTxRunner(pool)
	indexStore := repository.NewIndexStore(txRunner)
	fileRepo := repository.NewFileRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	codeRepo := repository.NewCodeRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)

	// 7. Services
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	ledger := service.NewQuotaLedger(userRepo, fileRepo, settingsRepo, logger)
	alloc := service.NewCodeAllocator(codeRepo, cfg.CodeLength, logger)
	admission := service.NewAdmissionService(ledger, alloc, logger)
	uploads := service.NewUploadService(indexStore, store, alloc, logger)
	groups := service.NewGroupService(
		indexStore, fileRepo, groupRepo, store, alloc,
		admission, uploads, cfg.MaxFileSize, logger,
	)
	deletion := service.NewDeletionEngine(indexStore, fileRepo, groupRepo, store, cache, logger)
	download := service.NewDownloadService(fileRepo, groupRepo, store, cache, logger)

	// 8. JWT middleware (опционально)
	var jwtAuth *middleware.JWTAuth
	if cfg.JWTJWKSURL != "" {
		jwtAuth, err = middleware.NewJWTAuth(ctx, cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTAdminRole, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Проверка JWT включена", slog.String("jwks_url", cfg.JWTJWKSURL))
	} else {
		logger.Warn("SHB_JWT_JWKS_URL не задан — проверка JWT отключена")
	}

	// 9. API handlers
	health := handlers.NewHealthHandler(database.NewReadinessChecker(pool), config.Version, logger)
	apiHandler := handlers.NewAPIHandler(
		health, admission, uploads, groups,
		deletion, download, ledger, cfg.MaxFileSize, logger,
	)

	// 10. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка HTTP-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
