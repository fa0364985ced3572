package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kev765740/dependencywarden/internal/config"
	"github.com/kev765740/dependencywarden/internal/database"
	"github.com/kev765740/dependencywarden/internal/notify"
	"github.com/kev765740/dependencywarden/internal/policy"
	"github.com/kev765740/dependencywarden/internal/remediation"
	"github.com/kev765740/dependencywarden/internal/resilience"
	"github.com/kev765740/dependencywarden/internal/store"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "depwarden",
	Short: "Policy-gated automated remediation of dependency vulnerabilities",
	Long: `depwarden watches vulnerability alerts on your repositories and, where
policy allows, opens fix pull requests automatically: bumping the affected
dependency in package.json on a dedicated branch and requesting review.

Get started:
  depwarden doctor      Verify credentials and database health
  depwarden alerts      Inspect tracked alerts and their remediation state
  depwarden remediate   Remediate a single alert now
  depwarden policy      Show, change, and validate per-repository policies
  depwarden agent       Run the background remediation loop
  depwarden gateway     Start the local REST control plane`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.depwarden/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		alertsCmd,
		remediateCmd,
		policyCmd,
		agentCmd,
		gatewayCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}

// stack bundles the shared runtime pieces most commands need.
type stack struct {
	cfg      *config.Config
	db       database.DB
	alerts   *store.AlertStore
	resolver *policy.Resolver
	exec     *remediation.Executor
	notifier *notify.Dispatcher
}

func (s *stack) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// buildStack loads config, opens the database, and wires the remediation
// executor with its resilience settings.
func buildStack() (*stack, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	retry := resilience.DefaultRetry()
	if cfg.Agent.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Agent.MaxAttempts
	}
	if cfg.Agent.CallTimeout != "" {
		d, err := time.ParseDuration(cfg.Agent.CallTimeout)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("invalid call_timeout %q: %w", cfg.Agent.CallTimeout, err)
		}
		retry.Timeout = d
	}

	alerts := store.NewAlertStore(db)
	resolver := policy.NewResolver(store.NewPolicyStore(db))
	notifier := notify.NewDispatcher(cfg.Notify)
	exec := remediation.NewExecutor(alerts, resolver,
		remediation.NewConfigProviders(cfg),
		resilience.NewExecutor(retry),
		notifier, slog.Default())

	return &stack{
		cfg:      cfg,
		db:       db,
		alerts:   alerts,
		resolver: resolver,
		exec:     exec,
		notifier: notifier,
	}, nil
}
