package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// treeCmd prints the configured profile tree without generating anything.
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the configured profile tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root, err := buildTree(cfg, zap.NewNop())
		if err != nil {
			return err
		}
		root.PrintAll(os.Stdout)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
