package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/config"
	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/email"
	"github.com/dukerupert/giftlist/internal/logging"
	"github.com/dukerupert/giftlist/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newSender(cfg *config.Config, logger *slog.Logger) email.Sender {
	switch cfg.Mailer() {
	case "postmark":
		return email.NewPostmarkClient(cfg.Email.PostmarkToken, cfg.Email.From)
	case "smtp":
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			From:     cfg.Email.From,
		})
	default:
		logger.Warn("no mail transport configured, emails will be logged")
		return email.LogSender{Logger: logger}
	}
}

func grantSecret(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.GrantSecret != "" {
		return cfg.GrantSecret, nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate grant secret: %w", err)
	}
	logger.Warn("GIFTLIST_GRANT_SECRET not set, group password grants will not survive a restart")
	return hex.EncodeToString(b), nil
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer db.Close()

	secret, err := grantSecret(cfg, logger)
	if err != nil {
		return err
	}
	granter, err := auth.NewGranter(secret)
	if err != nil {
		return err
	}

	mailer := email.NewMailer(newSender(cfg, logger.With("component", "email")), cfg.BaseURL)

	srv := server.New(db, server.Config{
		Mailer:         mailer,
		Granter:        granter,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired sessions", "count", n)
				}
				if n, err := srv.LoginCodeStore().DeleteExpired(); err != nil {
					logger.Error("cleanup expired login codes", "error", err)
				} else if n > 0 {
					logger.Info("cleaned up expired login codes", "count", n)
				}
				if n := srv.RateLimiter().Cleanup(); n > 0 {
					logger.Debug("pruned rate limit windows", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("giftlist starting", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "mailer", cfg.Mailer())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}
