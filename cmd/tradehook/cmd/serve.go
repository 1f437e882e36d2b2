package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradehook/alert"
	"github.com/rustyeddy/tradehook/broker"
	"github.com/rustyeddy/tradehook/config"
	"github.com/rustyeddy/tradehook/journal"
	"github.com/rustyeddy/tradehook/market"
	"github.com/rustyeddy/tradehook/oanda"
	"github.com/rustyeddy/tradehook/server"
	"github.com/rustyeddy/tradehook/trade"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Start the webhook server and handle inbound trading signals until
interrupted.

Example:
  tradehook serve -f config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.Logging.Level)

	client := newOandaClient(cfg)
	cache := market.NewPrecisionCache(cfg.Oanda.PrecisionDir, client)

	ledger, err := newJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer ledger.Close()

	notifier := alert.NewDiscord(cfg.Alert.DiscordWebhookURL, cfg.Alert.Timeout)
	engine := trade.NewEngine(client, cache, ledger, notifier)

	srv, err := server.New(cfg.Server, engine)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func newOandaClient(cfg *config.Config) *oanda.Client {
	creds := map[broker.Mode]oanda.Credentials{}
	if cfg.Oanda.Practice.APIKey != "" {
		creds[broker.Practice] = oanda.Credentials{
			APIKey:    cfg.Oanda.Practice.APIKey,
			AccountID: cfg.Oanda.Practice.AccountID,
		}
	}
	if cfg.Oanda.Live.APIKey != "" {
		creds[broker.Live] = oanda.Credentials{
			APIKey:    cfg.Oanda.Live.APIKey,
			AccountID: cfg.Oanda.Live.AccountID,
		}
	}
	return oanda.NewClient(creds, cfg.Oanda.Timeout, cfg.Oanda.DryRun)
}

func newJournal(cfg config.JournalConfig) (journal.Journal, error) {
	if cfg.Type == "csv" {
		return journal.NewCSV(cfg.TradesFile)
	}
	return journal.NewSQLite(cfg.DBPath)
}
