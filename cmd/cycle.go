package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/app"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/config"
	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/infra/logger"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Process one simulated sample and print the resulting outputs",
	RunE:  cycleOnce,
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}

func cycleOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("cycle-command").Errorf("service close: %v", err)
		}
	}()

	out, err := svc.ProcessOnce(ctx)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
