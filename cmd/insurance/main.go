package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"

	insurance "github.com/goliatone/go-insurance"
	"github.com/goliatone/go-insurance/config"
	"github.com/goliatone/go-insurance/report"
	"github.com/goliatone/go-insurance/repository"
	"github.com/goliatone/go-insurance/smoke"
)

const serviceName = "insurance"

func main() {
	rootCmd := &cobra.Command{
		Use:           "insurance",
		Short:         "Healthcare insurance API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("server.address", ":5000", "Listen address")
	rootCmd.PersistentFlags().String("store.driver", "postgres", "Store driver (postgres or sqlite)")
	rootCmd.PersistentFlags().String("store.dsn", "", "Store connection string")
	rootCmd.PersistentFlags().String("log.level", "info", "Log level")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(smokeCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	flags := pflag.NewFlagSet("config", pflag.ContinueOnError)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// only dotted flags map onto config keys
		if strings.Contains(f.Name, ".") {
			flags.AddFlag(f)
		}
	})

	return config.Load(path, flags)
}

func newLogger(cfg *config.Config) (*insurance.ZapLogger, error) {
	return insurance.NewZapLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
}

func openStore(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	db, err := repository.Open(cfg.Store.Driver, cfg.Store.DSN, cfg.Store.Key)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, repository.Classify(err, nil)
	}
	return db, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			autoMigrate, _ := cmd.Flags().GetBool("migrate")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if autoMigrate {
				if err := repository.Migrate(ctx, db); err != nil {
					return err
				}
				logger.Info("schema migrated")
			}

			attempts, closeAttempts := attemptStore(ctx, cfg, logger)
			defer closeAttempts()

			repos := repository.NewRepositoryManager(db, repository.WithLogger(logger))
			repos.MustValidate()

			svc := insurance.NewService(repos, insurance.ServiceConfig{
				SigningKey:       []byte(cfg.Auth.SigningKey),
				TokenTTL:         cfg.Auth.TokenTTL,
				Issuer:           cfg.Auth.Issuer,
				BcryptCost:       cfg.Auth.BcryptCost,
				NumberAttempts:   cfg.Numbers.Attempts,
				Attempts:         attempts,
				MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
				LoginCooldown:    cfg.Auth.LoginCooldown,
				Exporter:         report.NewXLSXExporter(),
				Logger:           logger,
			})

			app := insurance.NewApp(insurance.AppConfig{
				CORSOrigins: cfg.Server.CORSOrigins,
				Logger:      logger,
			})
			svc.Mount(app)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting", "address", cfg.Server.Address)
				errCh <- app.Listen(cfg.Server.Address)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Error("server shutdown failed", "error", err)
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().Bool("migrate", false, "Create missing tables before serving")
	return cmd
}

// attemptStore uses redis when an address is configured and reachable,
// otherwise login throttling is kept in process
func attemptStore(ctx context.Context, cfg *config.Config, logger insurance.Logger) (insurance.AttemptStore, func()) {
	if cfg.Redis.Address == "" {
		return repository.NewMemoryAttempts(nil), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in process login throttling", "address", cfg.Redis.Address, "error", err)
		_ = client.Close()
		return repository.NewMemoryAttempts(nil), func() {}
	}

	logger.Info("login throttling backed by redis", "address", cfg.Redis.Address)
	return repository.NewRedisAttempts(client), func() { _ = client.Close() }
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the users, policies and claims tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Schema ready (%d tables).\n", len(repository.Models))
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt digest of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")

			digest, err := insurance.NewPasswordHasher(cost).Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Println(digest)
			return nil
		},
	}
	cmd.Flags().Int("cost", 12, "bcrypt cost")
	return cmd
}

func smokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run the end to end scenario against a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("base-url")
			selfHosted, _ := cmd.Flags().GetBool("self-hosted")
			runID, _ := cmd.Flags().GetString("run-id")
			level, _ := cmd.Flags().GetString("log.level")

			logger, err := insurance.NewZapLogger(level, "console", serviceName)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if selfHosted {
				url, stop, err := smoke.SelfHosted(logger)
				if err != nil {
					return err
				}
				defer stop()
				baseURL = url
			}

			if runID == "" {
				runID = fmt.Sprint(time.Now().Unix())
			}

			result, err := smoke.NewRunner(baseURL,
				smoke.WithRunID(runID),
				smoke.WithLogger(logger),
			).Run(cmd.Context())
			if result != nil {
				fmt.Println(print.MaybePrettyJSON(result))
			}
			if err != nil {
				return err
			}

			if failed := result.Failed(); len(failed) > 0 {
				return errors.New("smoke run had failing steps")
			}
			return nil
		},
	}
	cmd.Flags().String("base-url", "http://localhost:5000", "API base URL")
	cmd.Flags().Bool("self-hosted", false, "Start an in memory API and run against it")
	cmd.Flags().String("run-id", "", "Suffix making registered emails unique")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Println(print.MaybePrettyJSON(cfg.Masked()))
			return nil
		},
	}
}
