package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/homeservice/marketplace-agent/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent and its local HTTP API",
	Long: `Restore the session, keep the notification channel connected while
signed in and serve the local HTTP API until interrupted.

Examples:
  marketplace-agent serve                 # Listen on PORT (default 8081)
  marketplace-agent serve --port 9090     # Listen on another port`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "local API port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("starting agent")
	return a.Serve(ctx)
}
