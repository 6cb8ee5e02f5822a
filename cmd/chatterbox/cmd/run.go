package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatterbox-vr/chatterbox/internal/app"
	"github.com/chatterbox-vr/chatterbox/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the chatbox daemon",
	Long: `Start the chatbox daemon. It connects to the system layer, renders the
configured template on every update tick and sends the result to the VR
client over OSC. Stops on SIGINT or SIGTERM.`,
	RunE: runHandler,
}

func runHandler(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

func init() {
	rootCmd.AddCommand(runCmd)
}
