package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"medtrack/cmd/medtrack/app"
	"medtrack/internal/config"
	"medtrack/internal/logging"
	"medtrack/internal/perception"
	"medtrack/internal/reconcile"
	"medtrack/internal/store"
	"medtrack/internal/task"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	profile    string

	// Logger
	logger *zap.Logger

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "medtrack",
	Short: "medtrack - medication tracker with language-model assistance",
	Long: `medtrack keeps a per-profile list of medications, enriches each entry
with a description fetched from a language model, checks combinations for
contraindications, answers questions about the list, and exports it as CSV.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		opts := logging.Options{
			DebugMode:  cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			JSONFormat: cfg.Logging.JSONFormat,
			Categories: cfg.Logging.Categories,
		}

		// The interactive UI owns the terminal; it logs to a file instead.
		if cmd == cmd.Root() {
			logger = zap.NewNop()
			if verbose {
				opts.DebugMode = true
				opts.Level = "debug"
			}
			return logging.Initialize(config.DefaultHome(), opts)
		}

		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.UseLogger(logger, opts)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmdContext(cmd))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Config file")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", store.DefaultProfile, "Profile to operate on")

	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(medsCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(contraindicationsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds the components a command works with.
type env struct {
	cfg     *config.Config
	catalog *store.Catalog
	runner  *task.Runner
	advisor *perception.Advisor
	engine  *reconcile.Engine
}

// newEnv builds the components from the loaded config. A missing API key is
// not an error here; commands that need the language model report it.
func newEnv(ctx context.Context, c *config.Config) *env {
	client, err := perception.NewClientFromConfig(ctx, c)
	if err != nil {
		logging.BootDebug("language model client unavailable: %v", err)
	}
	advisor := perception.NewAdvisor(client)
	return &env{
		cfg: c,
		catalog: store.NewCatalog(c.Store.ProfileDir, store.Options{
			Driver:      c.Store.Driver,
			BusyTimeout: c.Store.BusyTimeout(),
		}),
		runner:  task.NewRunner(task.Config{MaxConcurrent: c.Tasks.MaxConcurrent}),
		advisor: advisor,
		engine:  reconcile.NewEngine(advisor),
	}
}

// runInteractive starts the terminal UI.
func runInteractive(ctx context.Context) error {
	e := newEnv(ctx, cfg)

	deps := app.Deps{
		Config:     cfg,
		ConfigPath: configPath,
		Catalog:    e.catalog,
		Runner:     e.runner,
		Advisor:    e.advisor,
		Engine:     e.engine,
	}
	if cfg.UI.WatchProfiles {
		if _, err := e.catalog.List(); err != nil {
			return err
		}
		w, err := store.NewProfileWatcher(e.catalog.Dir())
		if err != nil {
			logging.BootWarn("profile watcher unavailable: %v", err)
		} else if err := w.Start(ctx); err != nil {
			logging.BootWarn("profile watcher failed to start: %v", err)
			w.Stop()
		} else {
			deps.Watcher = w
		}
	}

	m := app.New(deps)
	defer m.Shutdown()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("interactive UI failed: %w", err)
	}
	return nil
}
