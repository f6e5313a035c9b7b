package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"planadmin/internal/admin"
	"planadmin/internal/api"
	"planadmin/internal/auth"
	"planadmin/internal/breadcrumb"
	"planadmin/internal/events"
	"planadmin/internal/logger"
	"planadmin/internal/tags"
	"planadmin/internal/websession"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		return serve(a)
	},
}

func serve(a *app) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authService := auth.NewService(a.db, a.cache, time.Duration(cfg.BasicConfig.TokenTTLHours)*time.Hour)
	purgers := []websession.Purger{authService}

	var store websession.Store
	switch cfg.Session.Store {
	case "redis":
		store = websession.NewRedisStore(a.cache)
	default:
		sqlStore := websession.NewSQLStore(a.db, a.dbType)
		// Logged-in sessions must not outlive their user.
		a.bus.Subscribe(events.UserDeleted, func(ctx context.Context, e events.Event) error {
			return sqlStore.DeleteUser(ctx, e.UserID)
		})
		purgers = append(purgers, sqlStore)
		store = sqlStore
	}
	sessions := websession.NewManager(store, cfg.Session.CookieName,
		time.Duration(cfg.Session.TTLMinutes)*time.Minute, a.log)
	websession.StartSweeper(ctx, time.Duration(cfg.Session.SweepIntervalMinutes)*time.Minute, a.log, purgers...)

	crumbs := breadcrumb.DefaultConfig(cfg.Crumbs.HomeURL)
	if cfg.Crumbs.HomeTitle != "" {
		crumbs.HomeTitle = cfg.Crumbs.HomeTitle
		crumbs.Home = breadcrumb.NewEntry(cfg.Crumbs.HomeURL, cfg.Crumbs.HomeTitle)
	}
	if cfg.Crumbs.Separator != "" {
		crumbs.Separator = cfg.Crumbs.Separator
	}

	handlers, err := api.NewHandler(api.Options{
		Accounts:    a.accounts,
		Preferences: a.prefs,
		Auth:        authService,
		Sessions:    sessions,
		Tags: &tags.Library{
			Crumbs:   breadcrumb.New(crumbs),
			Registry: admin.DefaultRegistry(),
			Version:  cfg.BasicConfig.Version,
		},
		Log: a.log,
	})
	if err != nil {
		return fmt.Errorf("init handlers: %w", err)
	}

	router := gin.New()
	router.Use(logger.Middleware(a.log), gin.Recovery())
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
