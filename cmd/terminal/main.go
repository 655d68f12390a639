package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/terminal/internal/config"
	"github.com/kiwari-pos/terminal/internal/engine"
	"github.com/kiwari-pos/terminal/internal/floor"
	"github.com/kiwari-pos/terminal/internal/logging"
	"github.com/kiwari-pos/terminal/internal/router"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/kiwari-pos/terminal/internal/ws"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared document store: postgres when configured, in-memory otherwise.
	var st store.DocumentStore
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("connect to document store")
		}
		defer pool.Close()

		pg, err := store.NewPostgres(ctx, pool, log)
		if err != nil {
			log.WithError(err).Fatal("initialize document store")
		}
		go func() {
			if err := pg.Listen(ctx); err != nil {
				log.WithError(err).Fatal("document change listener stopped")
			}
		}()
		st = pg
	} else {
		log.Warn("DATABASE_URL not set; using in-memory store (no cross-terminal sharing)")
		st = store.NewMemory()
	}

	hub := ws.NewHub()
	go hub.Run()
	ws.Relay(ctx, st, hub, store.CollectionTables, store.CollectionOrders, store.CollectionKOTs)

	fl := floor.NewService(st, log)
	eng := engine.New(cfg.TerminalID, st, fl, log,
		engine.WithErrorHandler(func(tableID string, err error) {
			log.WithError(err).WithField("table_id", tableID).Error("order push failed")
			hub.BroadcastJSON(ws.TopicErrors, "push.failed", map[string]string{ //nolint:errcheck
				"table_id": tableID,
				"error":    err.Error(),
			})
		}),
	)
	go eng.Run(ctx)

	r := router.New(eng, fl, st, hub, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background()) //nolint:errcheck
	}()

	log.WithField("port", cfg.Port).WithField("terminal_id", cfg.TerminalID).
		Info("terminal started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server stopped")
	}
}
