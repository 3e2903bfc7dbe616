package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"plate-reader/internal/auth"
	"plate-reader/internal/config"
	httphandler "plate-reader/internal/http"
	"plate-reader/internal/http/middleware"
	"plate-reader/internal/model"
)

func runServe(cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	layouts, err := loadLayouts(cfg)
	if err != nil {
		return err
	}
	if cfg.Layout.File != "" && cfg.Layout.Watch {
		if err := layouts.Watch(ctx, cfg.Layout.File, log); err != nil {
			log.Warn().Err(err).Str("path", cfg.Layout.File).Msg("layout hot reload disabled")
		}
	}

	app, err := build(cfg, log, layouts, buildOptions{
		scanner:        scannerOptional,
		connectHistory: true,
		requireHistory: true,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(app.service, cfg, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, app.database, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().
		Str("addr", addr).
		Strs("layouts", layouts.Names()).
		Bool("history", app.service.HistoryEnabled()).
		Msg("starting plate reader service")

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
	return nil
}

func runToken(cfg *config.Config, cmd *tokenCmd) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	ttl, err := time.ParseDuration(cmd.TTL)
	if err != nil {
		return fmt.Errorf("invalid --ttl: %w", err)
	}

	token, err := auth.NewParser(cfg.Auth.AccessSecret).Issue(cmd.Subject, model.UserRole(cmd.Role), ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
