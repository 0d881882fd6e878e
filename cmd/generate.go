package cmd

import (
	"github.com/spf13/cobra"
)

// generateCmd builds every derived profile from the configured source.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate all derived profiles",
	Long: `Generate derives every profile in the configured tree, in
parent-before-children order. Unchanged conversions are skipped, stale
outputs are removed, and symlinks are refreshed.`,
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
		return root.GenerateAll()
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
