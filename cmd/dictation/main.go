package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dictation/internal/config"
	"dictation/internal/database"
	"dictation/internal/logging"
)

var (
	// Global flags
	verbose bool

	// Loaded once per invocation by the root command
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dictation",
	Short: "Spelling dictation practice and maintenance tools",
	Long: `dictation runs spelling practice from the terminal and maintains the
word lists, pronunciation clips and feedback reports used by the server.

Configuration is read from CONFIG_PATH (or ./config.yaml) and the
environment, exactly like the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		l, err := logging.New(level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	audioCmd.AddCommand(audioGenerateCmd, audioPruneCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsResolveCmd)
	rootCmd.AddCommand(practiceCmd, levelsCmd, audioCmd, reportsCmd)
}

// openDatabase connects to the configured database and applies migrations
func openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.InitializeWithConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Migrate(ctx, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
