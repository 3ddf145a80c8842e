package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/calendario-escolar/internal/application"
	"github.com/example/calendario-escolar/internal/config"
	"github.com/example/calendario-escolar/internal/document"
	httptransport "github.com/example/calendario-escolar/internal/http"
	"github.com/example/calendario-escolar/internal/persistence/sqlite"
	"github.com/example/calendario-escolar/internal/persistence/sqlite/migration"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer := document.NewChromeRenderer(document.ChromeOptions{
		ExecPath:  cfg.ChromePath,
		Timeout:   cfg.RenderTimeout,
		NoSandbox: cfg.ChromeNoSandbox,
	})

	app, err := newApp(ctx, cfg, renderer, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RenderTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("calendario API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// app holds the wired HTTP handler and the storage it must release.
type app struct {
	handler http.Handler
	storage *sqlite.Storage
}

func (a *app) Close() error {
	if a == nil || a.storage == nil {
		return nil
	}
	return a.storage.Close()
}

// newApp opens and migrates the database, builds the services and returns
// the routed handler. The renderer is injected so tests can avoid a browser.
func newApp(ctx context.Context, cfg config.Config, renderer document.Renderer, logger *slog.Logger) (*app, error) {
	storage, err := sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	idGenerator := uuid.NewString
	now := time.Now

	users := newUserRepositoryAdapter(storage)
	calendarios := newCalendarioRepositoryAdapter(storage)
	grade := newGradeHorariaRepositoryAdapter(storage)

	userService := application.NewUserServiceWithLogger(users, idGenerator, now, logger)
	authService := application.NewAuthServiceWithLogger(users, nil, []byte(cfg.JWTSecret), cfg.TokenTTL, idGenerator, now, logger)
	calendarioService := application.NewCalendarioServiceWithLogger(calendarios, users, idGenerator, now, logger)
	gradeService := application.NewGradeHorariaServiceWithLogger(grade, nil, idGenerator, now, logger)
	documentService := application.NewDocumentServiceWithLogger(calendarios, document.NewPipeline(renderer, cfg.ScratchDir), logger)
	userService.NotifyChanges(calendarioService.InvalidateEvents)

	if cfg.BootstrapAdmin() {
		admin, created, err := userService.EnsureAdmin(ctx, application.BootstrapAdminParams{
			Nome:     cfg.AdminName,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("ensure administrator: %w", err)
		}
		if created {
			logger.Info("administrator account created", "user_id", admin.ID, "email", admin.Email)
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:        httptransport.NewAuthHandler(authService, userService, logger),
		Users:       httptransport.NewUserHandler(userService, logger),
		Calendarios: httptransport.NewCalendarioHandler(calendarioService, logger),
		Documents:   httptransport.NewDocumentHandler(documentService, logger),
		Grade:       httptransport.NewGradeHandler(gradeService, logger),
		Validator:   authService,
		Logger:      logger,
		Middleware:  []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &app{handler: router, storage: storage}, nil
}
