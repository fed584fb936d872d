package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/farreladriann/slc-backend/config"
	"github.com/farreladriann/slc-backend/core/statistics"
	"github.com/farreladriann/slc-backend/infra/store"
	"github.com/farreladriann/slc-backend/pkg/export"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats [daily|monthly|yearly]",
	Short: "Print the energy and cost report",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "json", "output format (json or csv)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	var period string
	if len(args) == 1 {
		period = args[0]
	}
	p, err := statistics.ParsePeriod(period)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	rep, err := statistics.NewService(st, cfg.Statistics).Report(ctx, p)
	if err != nil {
		return err
	}
	switch statsFormat {
	case "json":
		return export.WriteJSON(cmd.OutOrStdout(), rep)
	case "csv":
		return export.WriteCSV(cmd.OutOrStdout(), rep)
	default:
		return fmt.Errorf("unsupported format %s", statsFormat)
	}
}
