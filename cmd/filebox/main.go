// main.go — точка входа Filebox: персональное файловое хранилище.
// Порядок старта: config → logger → миграции → PostgreSQL → blob-хранилище →
// репозитории → сервисы → handlers → HTTP-сервер.
package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/bigkaa/filebox/internal/api/handlers"
	"github.com/bigkaa/filebox/internal/api/middleware"
	"github.com/bigkaa/filebox/internal/auth"
	"github.com/bigkaa/filebox/internal/config"
	"github.com/bigkaa/filebox/internal/database"
	"github.com/bigkaa/filebox/internal/repository"
	"github.com/bigkaa/filebox/internal/server"
	"github.com/bigkaa/filebox/internal/service"
	"github.com/bigkaa/filebox/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// 2. Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Filebox запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Миграции схемы БД
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций", slog.String("error", err.Error()))
		log.Fatalf("Миграции не применены: %v", err)
	}

	// 4. Подключение к PostgreSQL
	pool, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		log.Fatalf("PostgreSQL недоступен: %v", err)
	}
	defer pool.Close()

	// 5. Blob-хранилище на диске
	store, err := filestore.New(cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		log.Fatalf("Хранилище недоступно: %v", err)
	}
	logger.Info("Blob-хранилище готово", slog.String("data_dir", store.DataDir()))

	// 6. Репозитории и кэш метаданных
	fileRepo := repository.NewFileRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	cache := service.NewMetadataCache(cfg.CacheSize, cfg.CacheTTL)

	// 7. Сервисы
	fileSvc := service.NewFileService(fileRepo, store, cache, cfg.MaxFileSize, logger)
	accountSvc := service.NewAccountService(userRepo, logger)
	settingsSvc := service.NewSettingsService(userRepo, logger)

	// 8. Менеджер сессий
	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)
	if err != nil {
		logger.Error("Ошибка инициализации сессий", slog.String("error", err.Error()))
		log.Fatalf("Менеджер сессий не создан: %v", err)
	}

	// 9. Handlers
	h := server.Handlers{
		Auth:     handlers.NewAuthHandler(accountSvc, sessions, logger),
		Files:    handlers.NewFilesHandler(fileSvc, cfg.MaxFileSize, logger),
		Settings: handlers.NewSettingsHandler(settingsSvc, sessions, logger),
		Health:   handlers.NewHealthHandler(database.NewReadinessChecker(pool), store.DataDir()),
	}
	sessionAuth := middleware.NewSessionAuth(sessions, logger)

	// 10. Запуск сервера (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, h, sessionAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		log.Fatalf("Сервер завершился с ошибкой: %v", err)
	}

	logger.Info("Filebox остановлен")
}
