package main

import (
	"context"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tesorio/saml2auth/pkg/config"
	"github.com/Tesorio/saml2auth/pkg/httputil"
	"github.com/Tesorio/saml2auth/pkg/identity"
	"github.com/Tesorio/saml2auth/pkg/observability"
	"github.com/Tesorio/saml2auth/pkg/session"
	"github.com/Tesorio/saml2auth/pkg/sso"
)

const maxRequestBytes = 1 << 20

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting saml2auth service")

	users, err := identity.NewPostgresStore(cfg.Storage.PostgresURL)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to identity store")
		os.Exit(1)
	}
	logger.Info("Connected to identity store")

	sessionStore, err := buildSessionStore(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to session store")
		os.Exit(1)
	}
	sessions := session.NewManager(sessionStore, cfg.Storage.SessionTTL, cfg.Storage.SessionCookieSecure)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	resolver := identity.NewResolver(users, identity.ProvisioningPolicy{
		Enabled:    cfg.SAML.Provisioning.Enabled,
		Groups:     cfg.SAML.Provisioning.Groups,
		ActiveFlag: cfg.SAML.Provisioning.ActiveFlag,
		StaffFlag:  cfg.SAML.Provisioning.StaffFlag,
		SuperFlag:  cfg.SAML.Provisioning.SuperFlag,
	}, identity.Hooks{
		AfterUserCreated: func(ctx context.Context, user *identity.User, claims identity.Claims) error {
			metrics.UsersProvisioned.Inc()
			observability.FromContext(ctx).WithField("user_id", user.ID).Info("Provisioned new user")
			return nil
		},
	})

	metadata := sso.NewMetadataResolver(cfg.SAML, metrics)
	builder, err := sso.NewClientBuilder(cfg.SAML, metadata, sso.DefaultServicePolicy())
	if err != nil {
		logger.WithError(err).Error("Failed to load service provider credentials")
		os.Exit(1)
	}

	handler := sso.NewHandler(cfg.SAML, builder, metadata, resolver, sessions, metrics)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	router.HandleFunc("/health", healthHandler(users, sessionStore)).Methods(http.MethodGet)
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.Handler(registry)).Methods(http.MethodGet)
	}

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.SecurityHeadersMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      chain(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return sessionStore.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return users.Close()
	})

	go func() {
		logger.WithField("addr", addr).Info("Listening for connections")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		os.Exit(1)
	}
}

func buildSessionStore(cfg *config.Config, logger *observability.Logger) (session.Store, error) {
	if cfg.Storage.RedisURL == "" {
		logger.Warn("No Redis URL configured, sessions are held in memory and lost on restart")
		return session.NewMemoryStore(), nil
	}
	store, err := session.NewRedisStore(session.RedisOptions{
		URL:      cfg.Storage.RedisURL,
		Password: cfg.Storage.RedisPassword,
		DB:       cfg.Storage.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to Redis session store")
	return store, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(users *identity.PostgresStore, sessions session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := map[string]string{"status": "healthy"}
		code := http.StatusOK

		if err := users.Ping(ctx); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if p, ok := sessions.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				status["status"] = "unhealthy"
				status["sessions"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		httputil.WriteJSON(w, code, status)
	}
}
