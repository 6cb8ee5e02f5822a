package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chatterbox-vr/chatterbox/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "chatterbox",
	Short: "Chatterbox mirrors live status into a social-VR chatbox",
	Long: `Chatterbox renders a placeholder template into the in-game chatbox text
field on a fixed cadence. Templates pull from data-source modules: media
playback, time, AFK state, heart rate, speech to text, HTTP endpoints and
more.

Available commands:
  run       Start the chatbox daemon
  modules   List the available modules and their placeholders
  profile   Export or import module configuration profiles

Use "chatterbox [command] --help" for more information about a specific command.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.New()
	},
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
