package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"graph-db-migrater/sdk/audit"
	"graph-db-migrater/sdk/config"
	"graph-db-migrater/sdk/graphstore"
)

func main() {
	root := &cobra.Command{
		Use:   "migration-service",
		Short: "Syncs source database schemas into the data vault graph",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the request worker and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditStore, err := audit.Open(cfg.DBConnectionString, cfg.Debug)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}

	graph, err := graphstore.Open(ctx, cfg.AgeConnectionString)
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	defer graph.Close(context.Background())

	svc := NewService(cfg, auditStore, graph)
	go svc.RunWorker(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: svc.Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", cfg.Port).Info("migration service listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
