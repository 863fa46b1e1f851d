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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"oauth2-token-server/internal/auth"
	"oauth2-token-server/internal/flows"
	"oauth2-token-server/internal/handlers"
	"oauth2-token-server/internal/metrics"
	"oauth2-token-server/internal/scope"
	"oauth2-token-server/internal/store"
	"oauth2-token-server/internal/utils"
	"oauth2-token-server/pkg/config"
)

// Create a logger instance
var log = logrus.New()

func main() {
	root := &cobra.Command{
		Use:           "oauth2-token-server",
		Short:         "OAuth2 authorization and token server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configFile string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configFile)
		},
	}
	serveCmd.Flags().StringVar(&configFile, "config", config.GetEnvString("CONFIG_FILE", "config.yaml"), "YAML configuration file (env CONFIG_FILE)")

	hashCmd := &cobra.Command{
		Use:   "hash-secret <secret>",
		Short: "Print the bcrypt hash of a client secret or user password for the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashed, err := utils.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hashed))
			return nil
		},
	}

	root.AddCommand(serveCmd, hashCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func configureLogger(cfg config.LoggingConfig) {
	switch cfg.Level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

func serve(ctx context.Context, configFile string) error {
	log.Println("🚀 Starting OAuth2 token server...")

	configuration, err := config.LoadWithFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	configureLogger(configuration.Logging)
	log.Printf("✅ Configuration loaded successfully")
	log.Printf("🔧 Log Level: %s, Format: %s, Audit: %t", configuration.Logging.Level, configuration.Logging.Format, configuration.Logging.EnableAudit)

	storage, err := store.NewStorage(ctx, configuration.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storage.Close()

	if err := store.Seed(ctx, storage, configuration, log); err != nil {
		return fmt.Errorf("failed to seed storage: %w", err)
	}

	router, err := buildRouter(configuration, storage)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", configuration.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(configuration.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(configuration.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("🌐 OAuth2 server starting on port %d (storage: %s)", configuration.Server.Port, configuration.Database.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("🔄 Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(configuration.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("✅ Server stopped")
	return nil
}

func buildRouter(configuration *config.Config, storage store.Storage) (http.Handler, error) {
	security := configuration.Security

	mode, err := scope.ParseMatchMode(security.OfflineAccessMatch)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenFactory(security.AuthorizationCodeLength, security.AccessTokenLength, security.RefreshTokenLength)
	identities := auth.NewStoreIdentityVerifier(storage)
	audit := configuration.Logging.EnableAudit

	engine := flows.NewEngine(storage, identities, tokens, flows.EngineConfig{
		TokenTTLSeconds: security.TokenExpirySeconds,
		Offline:         scope.NewOfflinePolicy(security.OfflineAccessScope, mode),
		Audit:           audit,
	}, log)
	issuer := flows.NewGrantIssuer(storage, tokens, security.AuthorizationCodeExpirySeconds, security.TokenExpirySeconds, audit, log)
	transactions := flows.NewTransactionManager([]byte(security.JWTSecret), security.TransactionTTL())

	h := &handlers.Handlers{
		Store:       storage,
		Engine:      engine,
		Authorizer:  flows.NewAuthorizer(storage, issuer, transactions, log),
		Identities:  identities,
		Metrics:     metrics.NewMetricsCollector(log),
		Logger:      log,
		StorageType: configuration.Database.Type,
	}

	log.Printf("🎫 Token endpoint: /oauth/token")
	log.Printf("🔗 Authorization endpoint: /oauth/authorize")
	log.Printf("🏥 Health check: /health")
	return h.Router(), nil
}
