package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/farreladriann/slc-backend/config"
	"github.com/farreladriann/slc-backend/core/allocation"
	"github.com/farreladriann/slc-backend/core/model"
)

var (
	allocateCapacity float64
	allocateMode     string
)

var allocateCmd = &cobra.Command{
	Use:   "allocate <batch.yaml|batch.json>",
	Short: "Solve an allocation batch offline and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocate,
}

func init() {
	allocateCmd.Flags().Float64Var(&allocateCapacity, "capacity", 0, "override the batch capacity in watts")
	allocateCmd.Flags().StringVar(&allocateMode, "mode", "", "AUTO, EXACT or APPROXIMATE, overrides the batch mode")
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
	batch, err := allocation.LoadBatch(args[0])
	if err != nil {
		return fmt.Errorf("load batch: %w", err)
	}
	if allocateCapacity > 0 {
		batch.Capacity = allocateCapacity
	}
	if allocateMode != "" {
		if batch.Mode, err = allocation.ParseMode(allocateMode); err != nil {
			return err
		}
	}
	// engine tuning comes from the config file when one is present
	acfg := allocation.Config{}
	if cfg, err := config.Load(cfgPath); err == nil {
		acfg = cfg.Allocation
	}
	acfg.SetDefaults()
	if batch.Capacity <= 0 {
		batch.Capacity = acfg.DefaultCapacityW
	}
	res := allocation.NewEngine(acfg).Allocate(batch.Items, batch.Capacity, batch.Mode)
	out := struct {
		Capacity float64           `json:"capacity"`
		Result   allocation.Result `json:"result"`
		Commands []model.Command   `json:"commands"`
	}{batch.Capacity, res, res.Commands(batch.Items)}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
