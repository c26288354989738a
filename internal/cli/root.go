package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stratlab-sync/internal/capability"
	"stratlab-sync/internal/client"
	"stratlab-sync/internal/config"
	"stratlab-sync/internal/jobs"
	"stratlab-sync/internal/logging"
	"stratlab-sync/internal/probe"
	"stratlab-sync/internal/readiness"
	"stratlab-sync/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.Store
	Client     *client.Client
	Capability *capability.Detector
	Readiness  *readiness.Aggregator
	Jobs       *jobs.Controller
}

// NewApp wires the synchronization layer from configuration.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.Store = store.Open(cfg.Store.Path, logger)

	auth := newFileAuth(config.DefaultConfigDir())
	app.Client = client.New(client.Config{
		BaseURL:        cfg.Service.BaseURL,
		SpecPath:       cfg.Service.SpecPath,
		JobsPath:       cfg.Service.JobsPath,
		RequestTimeout: cfg.Service.RequestTimeout,
	}, auth, logger)

	app.Capability = capability.New(app.Client, probe.Options{
		TTL:          cfg.Probes.TTL,
		MinInterval:  cfg.Probes.MinInterval,
		Timeout:      cfg.Service.RequestTimeout,
		Enabled:      func() bool { return cfg.ProbeEnabled("service_spec") },
		IsAuthorized: auth.IsAuthenticated,
		Store:        app.Store,
		StoreKey:     "capability/service_spec",
	}, logger)

	app.Readiness = readiness.New(auth.IsAuthenticated, logger)
	app.Readiness.Register("data_sources", "Data sources configured",
		readiness.CountCheck("data sources", func(ctx context.Context) (int, error) {
			return app.Client.Count(ctx, "/api/datasources")
		}))
	app.Readiness.Register("strategy_assignments", "Strategies assigned",
		readiness.CountCheck("assigned strategies", func(ctx context.Context) (int, error) {
			return app.Client.Count(ctx, "/api/strategies/assigned")
		}))

	app.Jobs = jobs.NewController(app.Client, jobs.Options{
		MaxRetained: cfg.Jobs.MaxRetained,
	}, logger)

	return app
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := NewApp(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "stratlab",
		Short: "StratLab sync - client for the remote backtest service",
		Long: `StratLab sync manages interaction with the remote backtest service:
it discovers what the service currently supports, aggregates readiness
checks into one verdict, drives backtest job lifecycles to completion,
and degrades to locally cached data when the service is unreachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stratlab-sync)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addJobCommands(rootCmd, app)
	addProbeCommands(rootCmd, app)
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("stratlab-sync %s\n", Version)
		},
	}
}

// Execute loads configuration and runs the root command.
func Execute() {
	configDir := ""
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configDir = os.Args[i+1]
		}
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		logger := logging.NewLogger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
	})

	rootCmd := NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
