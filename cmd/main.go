package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtroode/mindhealer-server/database"
	apicontext "github.com/dtroode/mindhealer-server/internal/api/http/context"
	"github.com/dtroode/mindhealer-server/internal/api/http/handler"
	"github.com/dtroode/mindhealer-server/internal/api/http/router"
	httpserver "github.com/dtroode/mindhealer-server/internal/api/http/server"
	"github.com/dtroode/mindhealer-server/internal/config"
	"github.com/dtroode/mindhealer-server/internal/forum"
	"github.com/dtroode/mindhealer-server/internal/logger"
	"github.com/dtroode/mindhealer-server/internal/metrics"
	"github.com/dtroode/mindhealer-server/internal/model"
	"github.com/dtroode/mindhealer-server/internal/password"
	"github.com/dtroode/mindhealer-server/internal/repository/memory"
	"github.com/dtroode/mindhealer-server/internal/repository/mongo"
	"github.com/dtroode/mindhealer-server/internal/repository/postgres"
	"github.com/dtroode/mindhealer-server/internal/server"
	"github.com/dtroode/mindhealer-server/internal/service"
	"github.com/dtroode/mindhealer-server/internal/telemetry"
	"github.com/dtroode/mindhealer-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()

	cmd := &cobra.Command{
		Use:           "mindhealer-server",
		Short:         "MindHealer API and forum server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Manage the postgres schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}

			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			switch action {
			case "down":
				return database.Rollback(cmd.Context(), cfg.Database.DSN)
			case "status":
				return database.Status(cmd.Context(), cfg.Database.DSN)
			default:
				return database.Migrate(cmd.Context(), cfg.Database.DSN)
			}
		},
	}
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(*cobra.Command, []string) {
			logAppVersion()
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logger.New(cfg.LogLevel, cfg.LogFormat)

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		logger.Fatal("failed to initialize tracing", "error", err)
	}

	userStore, closeStore, err := openUserStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize storage", "driver", cfg.Database.Driver, "error", err)
	}
	defer closeStore()

	tokenManager, err := token.NewJWT(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret,
		token.WithAccessTTL(cfg.JWT.AccessTTL),
		token.WithRefreshTTL(cfg.JWT.RefreshTTL),
	)
	if err != nil {
		logger.Fatal("failed to create token manager", "error", err)
	}

	hasher := password.NewHasher(password.Params{Time: cfg.KDF.Time, MemKiB: cfg.KDF.MemKiB, Par: cfg.KDF.Par})
	tokenService := service.NewTokenService(tokenManager, userStore, logger)
	authService := service.NewAuth(userStore, hasher, tokenService, logger)

	m := metrics.New()
	coordinator := forum.NewCoordinator(logger, forum.WithObserver(m))

	r := router.New(authService, tokenService, coordinator, userStore, m, apicontext.NewManager(), router.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Cookie: handler.CookieConfig{
			Name:   cfg.Cookie.Name,
			Path:   cfg.Cookie.Path,
			Secure: cfg.Cookie.Secure,
			MaxAge: cfg.JWT.RefreshTTL,
		},
		AuthRateLimit:  cfg.RateLimit.AuthRequests,
		AuthRateWindow: cfg.RateLimit.AuthWindow,
		TrustProxy:     cfg.HTTP.TrustProxy,
	}, logger)

	httpServer := httpserver.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))
	httpServer.RegisterOnShutdown(r.CloseConnections)
	sl := server.NewSecurityLayer(cfg.HTTP.EnableHTTPS, cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address(), "https", cfg.HTTP.EnableHTTPS)
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
		}
	}(httpServer)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", httpServer.Address())
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("error during tracer shutdown", "error", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")

	return nil
}

// openUserStore connects the account store selected by cfg.Database.Driver.
func openUserStore(ctx context.Context, cfg *config.Config) (model.UserStore, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		return memory.NewUserRepository(), func() {}, nil

	case config.DriverMongo:
		conn, err := mongo.NewConnection(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		repo, err := mongo.NewUserRepository(ctx, conn)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return repo, func() { _ = conn.Close() }, nil

	default:
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), func() { _ = db.Close() }, nil
	}
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
