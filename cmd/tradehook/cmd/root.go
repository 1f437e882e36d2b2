package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradehook",
	Short: "Webhook bridge from trading-signal alerts to OANDA market orders",
	Long: `Tradehook receives trading-signal webhooks (e.g. TradingView alerts) and
turns them into risk-sized market orders on an OANDA account.

It provides:
  - A webhook server with token and source-IP access control
  - Risk-percentage position sizing with cross-currency conversion
  - A single-open-position guard backed by the broker's own position state
  - A SQLite or CSV trade ledger and Discord alerting
  - A dry-run mode that logs orders instead of sending them`,
}

var cfgPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "config.yaml", "path to config file")
}

// setupLogger installs a JSON slog logger at the configured level as the
// process default.
func setupLogger(level string) {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slevel})
	slog.SetDefault(slog.New(handler))
}
