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

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/auth"
	"github.com/ukydev/fleet-dashboard/internal/config"
	"github.com/ukydev/fleet-dashboard/internal/db"
	"github.com/ukydev/fleet-dashboard/internal/metrics"
	"github.com/ukydev/fleet-dashboard/internal/server"
	"github.com/ukydev/fleet-dashboard/internal/share"
	"github.com/ukydev/fleet-dashboard/internal/telemetry"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo123"
	demoName     = "Demo User"

	shutdownTimeout = 10 * time.Second
)

// stores bundles the repositories and whatever must be closed on exit.
type stores struct {
	users    db.UserRepository
	vehicles db.VehicleRepository
	close    func(context.Context) error
}

func configureLogging(cfg *config.Config) {
	log.SetLevel(cfg.LogLevel)
	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func openStores(ctx context.Context, cfg *config.Config, hasher db.PasswordHasher) (*stores, error) {
	if cfg.StoreBackend != config.BackendMongo {
		users, err := db.NewSeededUserRepository(ctx, hasher)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:    users,
			vehicles: db.NewMemoryVehicleRepository(db.SeedVehicles(time.Now())...),
			close:    func(context.Context) error { return nil },
		}, nil
	}

	client, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	database := client.Database(cfg.MongoDB)
	users := &db.MongoUserRepository{Collection: database.Collection("users"), Hasher: hasher}
	vehicles := &db.MongoVehicleRepository{Collection: database.Collection("vehicles")}

	if err := vehicles.SeedIfEmpty(ctx, db.SeedVehicles(time.Now())); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("seed vehicles: %w", err)
	}
	if err := ensureDemoUser(ctx, users); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	return &stores{users: users, vehicles: vehicles, close: disconnect(client)}, nil
}

func disconnect(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Disconnect(ctx)
	}
}

func ensureDemoUser(ctx context.Context, users db.UserRepository) error {
	_, err := users.FindUserByEmail(ctx, demoEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrUserNotFound) {
		return fmt.Errorf("look up demo user: %w", err)
	}
	if _, err := users.CreateUser(ctx, demoEmail, demoPassword, demoName); err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	log.WithField("email", demoEmail).Info("Seeded demo user")
	return nil
}

func startTelemetry(ctx context.Context, cfg *config.Config, vehicles db.VehicleRepository, rec metrics.Recorder) (mqtt.Client, error) {
	if cfg.MQTTBrokerURL == "" {
		log.Info("MQTT_BROKER_URL not set, telemetry ingest disabled")
		return nil, nil
	}
	client, err := telemetry.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
	if err != nil {
		return nil, err
	}
	if err := telemetry.NewIngestor(vehicles, rec).Subscribe(ctx, client, cfg.MQTTTopic); err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return client, nil
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	st, err := openStores(ctx, cfg, hasher)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.WithError(err).Warn("Failed to close store")
		}
	}()

	collector := metrics.NewCollector()
	mqttClient, err := startTelemetry(ctx, cfg, st.vehicles, collector)
	if err != nil {
		return fmt.Errorf("start telemetry: %w", err)
	}
	if mqttClient != nil {
		defer mqttClient.Disconnect(250)
	}

	handler := server.NewRouter(server.Deps{
		Users:                st.users,
		Vehicles:             st.vehicles,
		Hasher:               hasher,
		Sessions:             auth.NewSessionManager([]byte(cfg.SessionSecret), cfg.SessionTTL, cfg.IsProduction()),
		Links:                share.NewStore(cfg.ShareLinkTTL, cfg.PublicBaseURL),
		Collector:            collector,
		LoginRateLimitPerMin: cfg.LoginRateLimitPerMin,
		TrustProxyHeaders:    cfg.TrustProxyHeaders,
	})
	srv := newHTTPServer(cfg, handler)

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"env":     cfg.AppEnv,
			"backend": cfg.StoreBackend,
		}).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
