package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/farreladriann/slc-backend/config"
	"github.com/farreladriann/slc-backend/simulator"
)

var simCfg simulator.Config
var simProfile string

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate outlet boards on the configured broker",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simCfg.Outlets, "outlets", simulator.DefaultOutlets, "number of outlets")
	f.DurationVar(&simCfg.Interval, "interval", simulator.DefaultInterval, "reading publish interval")
	f.Float64Var(&simCfg.DrawW, "draw", simulator.DefaultDrawW, "load of a switched on outlet in watts")
	f.Float64Var(&simCfg.Jitter, "jitter", 0.05, "relative noise on readings")
	f.BoolVar(&simCfg.InitialOn, "on", false, "start with every relay closed")
	f.StringVar(&simProfile, "profile", "", "per-terminal draws (JSON or YAML)")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sc := simCfg
	sc.Broker = cfg.MQTT.Broker
	sc.UpstreamTopic = cfg.MQTT.UpstreamTopic
	sc.DownstreamTopic = cfg.MQTT.DownstreamTopic
	if simProfile != "" {
		if sc.Draws, err = simulator.LoadDrawProfile(simProfile); err != nil {
			return fmt.Errorf("draw profile: %w", err)
		}
	}
	board, err := simulator.NewBoard(sc)
	if err != nil {
		return err
	}
	return board.Run(ctx)
}
