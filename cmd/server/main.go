package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/rs/cors"

	"campuswatt/internal/config"
	"campuswatt/internal/controller"
	"campuswatt/internal/ingest"
	"campuswatt/internal/routes"
	"campuswatt/internal/service"
	"campuswatt/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load(logger)

	// One store handle shared by the ingestor and every query handler.
	st := store.New(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, logger)
	defer st.Close()

	ingestor := ingest.New(cfg, st, logger)
	if err := ingestor.Start(); err != nil {
		// The API still serves (degraded) views without the broker.
		logger.Error("mqtt connect failed, ingestion disabled", "err", err)
	}
	defer ingestor.Close()

	svc := service.New(st, logger)
	ctrl := controller.NewDataController(svc, logger)
	router := routes.NewRouter(ctrl)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := handlers.RecoveryHandler()(
		handlers.LoggingHandler(os.Stdout,
			corsMiddleware.Handler(router)))

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler,
	}

	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
}
