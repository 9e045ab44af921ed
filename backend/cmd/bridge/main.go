package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mqttbroker "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/redis/go-redis/v9"

	"room-bridge/backend/internal/api"
	"room-bridge/backend/internal/command"
	"room-bridge/backend/internal/config"
	"room-bridge/backend/internal/hub"
	"room-bridge/backend/internal/ingress"
	"room-bridge/backend/internal/metrics"
	"room-bridge/backend/internal/services"
	apicommon "room-bridge/backend/internal/shared/api"
	"room-bridge/backend/internal/shared/helpers"
	"room-bridge/backend/internal/store"
	"room-bridge/backend/internal/telemetry"
	"room-bridge/backend/pkg/mqtt"
	"room-bridge/backend/pkg/router"
	"room-bridge/backend/pkg/utils"
	"room-bridge/web"
)

func main() {
	sigCtx, sigCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer sigCancel()

	config, err := config.New()
	if err != nil {
		fatalIfErr(slog.Default(), fmt.Errorf("failed to create config: %w", err))
	}

	defer func() {
		if err := config.Close(); err != nil {
			slog.Default().Error("failed to close config", utils.ErrAttr(err))
		}
	}()

	// Initialize logger
	logger := helpers.GetLogger(config)
	logger.Info("starting room bridge", slog.String("build", utils.GetBuildVersion()))

	m := metrics.New()

	// Embedded MQTT broker, started first so the session can reach it
	var mqttServer *mqttbroker.Server

	if config.MQTTServerEnabled {
		mqttAddr := fmt.Sprintf(":%d", config.MQTTServerPort)

		mqttServer, err = getMQTTServer(logger, mqttAddr)
		fatalIfErr(logger, err)

		go func() {
			logger.Info("MQTT broker listening", slog.String("address", mqttAddr))

			if err := mqttServer.Serve(); err != nil {
				logger.Error("MQTT broker failed", utils.ErrAttr(err))
				sigCancel()
			}
		}()
	}

	// State store
	if err := helpers.RunMigrations(logger, config); err != nil {
		fatalIfErr(logger, fmt.Errorf("failed to run migrations: %w", err))
	}

	st, err := openStore(sigCtx, logger, config)
	fatalIfErr(logger, err)

	defer utils.LogOnError(logger, st.Close, "failed to close store")

	vocab, err := command.LoadVocabulary(config.DeviceVocabularyFile)
	fatalIfErr(logger, err)

	// Fan-out hub
	fanout := hub.New(logger, func(ctx context.Context) (telemetry.Snapshot, error) {
		return store.Snapshot(ctx, st)
	}, hub.Options{
		QueueLimit:  config.HubQueueLimit,
		SendTimeout: config.HubSendTimeout,
		Metrics:     m,
	})

	go fanout.Run(sigCtx)

	// Broker session
	session, err := mqtt.NewSession(logger, mqtt.SessionOptions{
		BrokerURL:  config.MQTTBroker,
		ClientID:   config.MQTTClientID,
		Username:   config.MQTTUsername,
		Password:   config.MQTTPassword,
		RetryDelay: config.MQTTRetryDelay,
		RetryLimit: config.MQTTRetryLimit,
		OnStateChange: func(s mqtt.State) {
			m.SetBrokerConnected(s == mqtt.StateConnected)
		},
	})
	fatalIfErr(logger, err)

	adapter := ingress.New(logger, st, fanout, m)
	fatalIfErr(logger, adapter.Register(session, ingress.DefaultTopics(config.MQTTTopicPrefix)))

	gateway := command.NewGateway(logger, session, vocab, config.Topic("commands"), config.CommandPublishTimeout, m)
	fatalIfErr(logger, gateway.RegisterPublish(session))

	go func() {
		if err := session.Connect(sigCtx); err != nil {
			logger.Error("Failed to connect to MQTT broker", utils.ErrAttr(err))
		}
	}()

	// HTTP
	svc := services.NewServices(logger, st, session, fanout, gateway)

	rb, err := router.NewRouteBuilder(logger)
	fatalIfErr(logger, err)

	registerHTTPHandlers(logger, rb, api.NewHandler(logger, svc, api.LiveOptions{}), m)

	httpServer := apicommon.NewHTTPServer(logger, fmt.Sprintf(":%d", config.Port), rb.Router())
	// Hijacked websocket connections are closed through the hub
	httpServer.RegisterOnShutdown(fanout.Close)
	httpServer.StartOnBackground(sigCancel)

	// Wait for signal (either OS or some failure)
	<-sigCtx.Done()
	logger.Info("received signal, shutting down...")

	logger.Info("http server shutting down...")

	if err := httpServer.ShutdownWithDefaultTimeout(); err != nil {
		logger.Error("http server shutdown failed", utils.ErrAttr(err))
	}

	fanout.Close()

	logger.Info("disconnecting from MQTT broker...")
	session.Close()

	if mqttServer != nil {
		logger.Info("mqtt broker shutting down...")

		if err := mqttServer.Close(); err != nil {
			logger.Error("mqtt broker shutdown failed", utils.ErrAttr(err))
		}
	}

	logger.Info("server exited gracefully")
}

// openStore opens the SQL store and, when a cache address is configured, wraps it in the Valkey
// write-through cache.
//
//nolint:ireturn // Returns the SQL store or its cached decorator
func openStore(ctx context.Context, l *slog.Logger, c *config.Config) (store.Store, error) {
	sqlStore, err := store.Open(ctx, l, c.Dialect, c.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if c.ValkeyAddr == "" {
		return sqlStore, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.ValkeyAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The SQL store stays authoritative, so an unreachable cache only costs read latency
		l.Warn("Valkey unreachable, cache reads will fall back to the database",
			slog.String("address", c.ValkeyAddr), utils.ErrAttr(err))
	}

	return store.NewCached(l, sqlStore, rdb, c.MQTTTopicPrefix, c.ValkeyTTL), nil
}

func getMQTTServer(l *slog.Logger, addr string) (*mqttbroker.Server, error) {
	server := mqttbroker.New(&mqttbroker.Options{
		InlineClient: true,
		Logger:       l.With(slog.String("component", "mqtt-broker")),
	})
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})

	if err := server.AddListener(tcp); err != nil {
		return nil, err
	}

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, err
	}

	return server, nil
}

// registerHTTPHandlers registers all HTTP handlers.
func registerHTTPHandlers(l *slog.Logger, rb *router.RouteBuilder, h *api.Handler, m *metrics.Metrics) {
	l.Info("Registering HTTP handlers...")

	h.RegisterRoutes(rb, apicommon.NewMiddlewareHandler(l))

	rb.Router().Handle("/metrics", m.Handler())

	webapp, err := web.DashboardApp()
	fatalIfErr(l, err)
	webapp.Register(rb.Router(), l)

	rb.Router().HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, webapp.URLBase(), http.StatusFound)
	})

	for _, route := range rb.Routes() {
		l.Debug("Route", slog.String("method", route.Method), slog.String("path", route.Path), slog.String("operationID", route.OperationID))
	}

	l.Info("HTTP handlers registered successfully", slog.Int("routes", len(rb.Routes())))
}

func fatalIfErr(l *slog.Logger, err error) {
	if err == nil {
		return
	}

	l.Error("error", utils.ErrAttr(err))
	os.Exit(1)
}
