// Package cli contains the marketplace-agent commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/homeservice/marketplace-agent/internal/app"
	"github.com/homeservice/marketplace-agent/internal/infrastructure/config"
	"github.com/homeservice/marketplace-agent/pkg/logger"
)

var (
	logLevel string
	pretty   bool
	cfg      *config.Config
	log      zerolog.Logger
	version  = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marketplace-agent",
	Short: "Home-service marketplace client agent",
	Long: `marketplace-agent keeps a session with the home-service marketplace
backend, listens for real-time notifications and exposes both through a local
HTTP API.

Example usage:
  marketplace-agent serve                      # Run the agent and local API
  marketplace-agent login -u alice             # Sign in (password from MARKETPLACE_PASSWORD)
  marketplace-agent whoami                     # Show the current session
  marketplace-agent notifications list         # Fetch notifications

Configuration is read from the environment (API_BASE_URL, WS_URL,
TOKEN_STORE, ...). Sessions outlive a single command only with
TOKEN_STORE=redis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-friendly console logs")
}

// initConfig loads the environment configuration and sets up logging.
func initConfig(ctx context.Context) error {
	var err error
	cfg, err = config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger.Init(logger.Options{
		Level:   level,
		Pretty:  pretty || cfg.Env == "development",
		Output:  os.Stderr,
		Service: "marketplace-agent",
	})
	log = logger.Component("cli")

	log.Debug().
		Str("api", cfg.API.BaseURL).
		Str("channel", cfg.Channel.URL).
		Str("token_store", cfg.Session.TokenStore).
		Msg("configuration loaded")
	return nil
}

// openSession builds the agent and restores the persisted session. The
// caller must Close the returned app.
func openSession(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Initialize(ctx)
	return a, nil
}
