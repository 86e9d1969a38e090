package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lamim/taleforge/internal/api"
	"github.com/lamim/taleforge/internal/checkpoint"
	"github.com/lamim/taleforge/internal/config"
	"github.com/lamim/taleforge/internal/metrics"
	"github.com/lamim/taleforge/internal/narrative"
	"github.com/lamim/taleforge/internal/session"
	"github.com/lamim/taleforge/internal/storage"
	"github.com/lamim/taleforge/internal/terminal"
	"github.com/lamim/taleforge/internal/writer"
	"github.com/lamim/taleforge/pkg/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath  string
	envFile     string
	verbose     bool
	logFilePath string
	metricsAddr string
	ephemeral   bool
	width       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taleforge",
		Short: "TaleForge - interactive branching stories in your terminal",
		Long: `TaleForge writes a branching story with you, one scene at a time.
Pick a genre, read each scene as it is typed out, and choose what happens next.
Your progress is saved after every scene.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		SilenceUsage: true,
		RunE:         runPlay,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Start or resume a story",
		Long: `Start a new story or resume the saved one.
Type the number of an option to choose it, press Enter to skip the typing
animation and type q to abandon the current story.`,
		RunE: runPlay,
	}
	for _, cmd := range []*cobra.Command{rootCmd, playCmd} {
		cmd.Flags().StringVar(&logFilePath, "log-file", "", "Write logs to this file instead of the configured one")
		cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
		cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "Keep the session in memory only")
		cmd.Flags().IntVar(&width, "width", terminal.DefaultWidth, "Wrap story text at this column")
	}

	genresCmd := &cobra.Command{
		Use:   "genres",
		Short: "List the available genres",
		Args:  cobra.NoArgs,
		RunE:  listGenres,
	}

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(newSaveCommand())
	rootCmd.AddCommand(genresCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPlay(cmd *cobra.Command, args []string) error {
	loadEnvFile()

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logFilePath != "" {
		cfg.Logging.File = logFilePath
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if ephemeral {
		cfg.Storage.Driver = string(storage.DriverMemory)
	}

	logLevel, err := writer.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger, logFile, err := writer.SetupLogger(cfg.Logging.File, logLevel, verbose)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logFile.Sync()
		_ = logFile.Close()
	}()

	logger.Info("TaleForge starting",
		"version", Version,
		"config", configPath,
		"model", cfg.Backend.Model,
		"storage", cfg.Storage.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(logger)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics endpoint failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	store, err := openStore(ctx, cfg, secrets)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()
	snapshots := checkpoint.NewManager(store, cfg.Storage.Key, cfg.Limits(), logger, collector)

	apiKey := secrets.GetAPIKey()
	if apiKey == "" {
		logger.Warn("No API key configured, scene generation will fail",
			"env", "TALEFORGE_API_KEY or GEMINI_API_KEY")
	}
	backend := api.NewClient(api.ClientConfig{
		BaseURL:            cfg.Backend.BaseURL,
		Model:              cfg.Backend.Model,
		APIKey:             apiKey,
		Temperature:        cfg.Backend.Temperature,
		RateLimitPerMinute: cfg.Backend.RateLimitPerMinute,
		Timeout:            cfg.RequestTimeout(),
	}, logger, collector)

	generator := narrative.NewClient(backend, narrative.Options{
		Limits:         cfg.Limits(),
		CharTarget:     cfg.Story.CharTarget,
		ContextEntries: cfg.Story.ContextEntries,
		Templates: narrative.Templates{
			Opening:      cfg.PromptTemplates.Opening,
			Continuation: cfg.PromptTemplates.Continuation,
		},
	}, logger)

	ui := terminal.New(os.Stdin, os.Stdout, terminal.Config{
		Width:          width,
		RevealInterval: cfg.RevealInterval(),
		RevealFrame:    cfg.RevealFrame(),
	}, terminal.WithLogger(logger), terminal.WithMetrics(collector))

	controller := session.New(generator, snapshots, session.Config{
		Limits:          cfg.Limits(),
		LoadingInterval: cfg.LoadingInterval(),
		EnforceFinale:   cfg.FinaleEnforced(),
	},
		session.WithLogger(logger),
		session.WithMetrics(collector),
		session.WithObserver(ui.Notify))
	defer controller.Close()

	if err := ui.Run(ctx, controller); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("TaleForge exiting")
	return nil
}

// openStore builds the snapshot store selected by storage.driver
func openStore(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (storage.Store, error) {
	driver := storage.Driver(cfg.Storage.Driver)

	switch driver {
	case storage.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: secrets.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis at %s is unreachable: %w", cfg.Storage.RedisAddr, err)
		}
		return storage.New(driver, storage.WithRedisClient(client), storage.WithTTL(cfg.StorageTTL()))

	case storage.DriverSupabase:
		if secrets.SupabaseKey == "" {
			return nil, fmt.Errorf("%w: TALEFORGE_SUPABASE_KEY is not set", storage.ErrInvalidConfig)
		}
		return storage.New(driver, storage.WithSupabase(cfg.Storage.SupabaseURL, secrets.SupabaseKey, cfg.Storage.SupabaseTable))

	default:
		return storage.New(driver,
			storage.WithDir(cfg.Storage.Dir),
			storage.WithSQLitePath(cfg.Storage.SQLitePath))
	}
}

// loadEnvFile loads environment variables from the env file if it exists
func loadEnvFile() {
	if envFile == "" {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
		return
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
	}
}

func listGenres(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-10s %s\n", "ID", "GENRE")
	for _, g := range models.Genres() {
		fmt.Printf("%-10s %s\n", g.ID, g.Label)
	}
	return nil
}
