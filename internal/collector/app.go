package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloudpico-notifier/internal/config"
	"cloudpico-notifier/internal/db"
	"cloudpico-notifier/internal/httpapi"
	"cloudpico-notifier/internal/migrate"
	"cloudpico-notifier/internal/mqtt"
	"cloudpico-notifier/internal/readings"
)

// RunApp wires storage, the MQTT uplink and the HTTP API around src and
// blocks until ctx is done or a component fails.
func RunApp(ctx context.Context, cfg config.Collector, src Source, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"stationID", cfg.StationID,
		"localName", cfg.LocalName,
		"serviceUUID", cfg.ServiceUUID,
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
	)

	dbConn, err := db.Open(db.Options{
		Path:         cfg.SQLitePath,
		MaxOpenConns: 1,
		LogSQL:       cfg.LogLevel <= slog.LevelDebug,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if _, err := migrate.Run(dbConn, logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready")

	repo := readings.NewRepository(dbConn)

	uplink := mqtt.NewClient(mqtt.Options{
		Broker:      cfg.MQTTBroker,
		Port:        cfg.MQTTPort,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}, logger)

	// Readings are stored while the broker is away, so the collector starts
	// without waiting for the first connection.
	go func() {
		if err := uplink.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}()

	mux := httpapi.NewMux(dbConn, repo, uplink, logger)
	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger)

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		httpErr <- srv.ListenAndServe()
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	coll := New(cfg.StationID, repo, uplink, logger)
	bleErr := make(chan error, 1)
	go func() {
		bleErr <- coll.Run(runCtx, src)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http: %w", err)
		}
		httpErr <- nil
	case err := <-bleErr:
		if err != nil {
			runErr = fmt.Errorf("ble: %w", err)
		}
		bleErr <- nil
	}

	cancel()
	<-bleErr

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("mqtt disconnecting")
	uplink.Disconnect()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if err := <-httpErr; err != nil && !errors.Is(err, http.ErrServerClosed) && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}
