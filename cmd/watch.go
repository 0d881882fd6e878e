package cmd

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cohydra/cohydra/profile"
)

var watchDebounce time.Duration

// watchCmd keeps the derived profiles current while the source changes.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Generate, then regenerate whenever the source changes",
	Long: `Watch generates all derived profiles, then monitors the source
directory and regenerates the whole tree after each burst of changes.
Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		root, err := buildTree(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return profile.Watch(ctx, root, profile.WatchOptions{Debounce: watchDebounce})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before regenerating")
	rootCmd.AddCommand(watchCmd)
}
