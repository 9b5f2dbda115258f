package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AbassKoyang/swirl-backend/internal/app"
	"github.com/AbassKoyang/swirl-backend/internal/auth"
	"github.com/AbassKoyang/swirl-backend/internal/config"
	"github.com/AbassKoyang/swirl-backend/internal/database"
	"github.com/AbassKoyang/swirl-backend/internal/logging"
	"github.com/AbassKoyang/swirl-backend/internal/metrics"
	"github.com/AbassKoyang/swirl-backend/internal/paging"
	"github.com/AbassKoyang/swirl-backend/internal/ratelimit"
	"github.com/AbassKoyang/swirl-backend/internal/seed"
	"github.com/AbassKoyang/swirl-backend/internal/server"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "swirl-api",
		Short: "Swirl blogging backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newServeCommand(), newReconcileCommand(), newSeedCommand(), newTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional dotenv file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Postgres connection string")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis address for rate limiting")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "redis.address", "redis-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute engagement counters from the relation tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvironment(cmd.Context(), func(ctx context.Context, env environment) error {
				touched, err := env.services.Ledger.Reconcile(ctx, env.db)
				if err != nil {
					return err
				}
				return printJSON(cmd, touched)
			})
		},
	}
}

func newSeedCommand() *cobra.Command {
	opts := seed.DefaultOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with demo content",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnvironment(cmd.Context(), func(ctx context.Context, env environment) error {
				factory, err := seed.NewFactory(env.services, opts.Seed, env.logger.Named("seed"))
				if err != nil {
					return err
				}
				summary, err := factory.Run(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Users, "users", opts.Users, "Number of users to create")
	cmd.Flags().IntVar(&opts.PostsPerUser, "posts-per-user", opts.PostsPerUser, "Posts per user")
	cmd.Flags().IntVar(&opts.CommentsPerPost, "comments-per-post", opts.CommentsPerPost, "Comments per post")
	cmd.Flags().Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "Random seed")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		subject string
		email   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.SessionSecret),
				Issuer:        appConfig.SessionIssuer,
				TokenTTL:      ttl,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(auth.SessionClaims{UserID: subject, UserEmail: email})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"token": token, "expires_at": expiresAt})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Principal identifier")
	cmd.Flags().StringVar(&email, "email", "", "Principal email")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

type environment struct {
	config   config.AppConfig
	logger   *zap.Logger
	db       *gorm.DB
	services *app.Services
	metrics  *metrics.Collectors
}

func withEnvironment(ctx context.Context, run func(context.Context, environment) error) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(ctx, database.ConfigFromApp(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	collectors := metrics.New()
	services, err := app.NewServices(app.ServicesConfig{
		Database: db,
		Metrics:  collectors,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	return run(ctx, environment{
		config:   appConfig,
		logger:   logger,
		db:       db,
		services: services,
		metrics:  collectors,
	})
}

func runServer(ctx context.Context) error {
	return withEnvironment(ctx, serve)
}

func serve(ctx context.Context, env environment) error {
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(env.config.SessionSecret),
		Issuer:        env.config.SessionIssuer,
		CookieName:    env.config.SessionCookieName,
	})
	if err != nil {
		return err
	}

	sqlDB, err := env.db.DB()
	if err != nil {
		return err
	}
	ready := func(ctx context.Context) error { return sqlDB.PingContext(ctx) }

	var limiter server.RateLimiter
	if env.config.RateLimitingActive() {
		client := redis.NewClient(&redis.Options{Addr: env.config.RedisAddress})
		defer client.Close()
		redisLimiter, err := ratelimit.NewLimiter(ratelimit.LimiterConfig{
			Client: client,
			Logger: env.logger.Named("ratelimit"),
		})
		if err != nil {
			return err
		}
		limiter = redisLimiter
	} else {
		env.logger.Info("rate limiting disabled")
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessions,
		Users:          env.services.Users,
		Blog:           env.services.Blog,
		Feeds:          env.services.Feeds,
		Notifications:  env.services.Notifications,
		Search:         env.services.Search,
		Limiter:        limiter,
		Metrics:        env.metrics,
		Ready:          ready,
		Bounds:         paging.Bounds{Default: env.config.FeedPageSize, Max: env.config.FeedMaxPageSize},
		AllowedOrigins: env.config.AllowedOrigins,
		Logger:         env.logger.Named("http"),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              env.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		env.logger.Info("server starting", zap.String("address", env.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
