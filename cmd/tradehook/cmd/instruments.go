package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradehook/broker"
	"github.com/rustyeddy/tradehook/config"
	"github.com/rustyeddy/tradehook/market"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "Fetch the instrument precision table and refresh the snapshot",
	Long: `Fetch the tradable instrument list from OANDA, rewrite the price
precision snapshot for the chosen mode, and print the table.

Example:
  tradehook instruments -f config.yaml --mode practice`,
	RunE: runInstruments,
}

var instrumentsMode string

func init() {
	rootCmd.AddCommand(instrumentsCmd)
	instrumentsCmd.Flags().StringVar(&instrumentsMode, "mode", string(broker.Practice), "trading mode (practice|live)")
}

func runInstruments(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg.Logging.Level)

	mode, err := broker.ParseMode(instrumentsMode)
	if err != nil {
		return err
	}

	client := newOandaClient(cfg)
	cache := market.NewPrecisionCache(cfg.Oanda.PrecisionDir, client)

	precisions, err := cache.Refresh(cmd.Context(), mode)
	if err != nil {
		return fmt.Errorf("refresh precision snapshot: %w", err)
	}

	names := make([]string, 0, len(precisions))
	for name := range precisions {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%d instruments (%s):\n", len(names), mode)
	for _, name := range names {
		fmt.Printf("  %-12s %d\n", name, precisions[name])
	}
	return nil
}
