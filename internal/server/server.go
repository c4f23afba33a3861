// Пакет server — HTTP-сервер Filebox с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/filebox/internal/api/handlers"
	"github.com/bigkaa/filebox/internal/api/middleware"
	"github.com/bigkaa/filebox/internal/config"
)

// Handlers — набор обработчиков, монтируемых на router.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Files    *handlers.FilesHandler
	Settings *handlers.SettingsHandler
	Health   *handlers.HealthHandler
}

// Server — HTTP-сервер Filebox.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// sessionAuth защищает файловые endpoints и настройки; register,
// login, logout, health и metrics доступны без сессии.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, sessionAuth *middleware.SessionAuth) *Server {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Служебные endpoints — без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.Metrics)

	router.Route("/api/v1", func(r chi.Router) {
		// Открытые endpoints аутентификации
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/logout", h.Auth.Logout)

		// Всё остальное требует действующей сессии
		r.Group(func(r chi.Router) {
			r.Use(sessionAuth.Middleware())

			r.Get("/auth/me", h.Auth.Me)

			r.Post("/files", h.Files.Upload)
			r.Get("/files", h.Files.List)
			r.Post("/files/batch-delete", h.Files.BatchDelete)
			r.Get("/files/{id}/download", h.Files.Download)
			r.Get("/files/{id}/preview", h.Files.Preview)
			r.Delete("/files/{id}", h.Files.Delete)

			r.Put("/user/settings", h.Settings.Update)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
