package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <names...>",
	Short: "Delete one or more virtual BMCs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		for _, vmName := range args {
			resp, err := c.Communicate("delete", map[string]any{"vm_name": vmName})
			if err != nil {
				return fmt.Errorf("vbmc: %w", err)
			}
			if err := printResponse(resp); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
