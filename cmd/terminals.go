package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/farreladriann/slc-backend/config"
	"github.com/farreladriann/slc-backend/infra/store"
)

var terminalsCmd = &cobra.Command{
	Use:   "terminals",
	Short: "Terminal related commands",
}

var terminalsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List terminals with their latest power reading",
	RunE:  runTerminalsLs,
}

func init() {
	terminalsCmd.AddCommand(terminalsLsCmd)
	rootCmd.AddCommand(terminalsCmd)
}

func runTerminalsLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			if _, ferr := fmt.Fprintf(cmd.ErrOrStderr(), "error while closing store: %v\n", err); ferr != nil {
				fmt.Println("failed to write to stderr:", ferr)
			}
		}
	}()
	terms, err := st.ListTerminals(ctx)
	if err != nil {
		return err
	}
	power, err := st.LatestPowerByTerminal(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRIORITY\tSTATUS\tPOWER (W)")
	for _, t := range terms {
		p := "-"
		if v, ok := power[t.ID]; ok {
			p = fmt.Sprintf("%.1f", v)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", t.ID, t.Priority, t.Status, p)
	}
	return w.Flush()
}
