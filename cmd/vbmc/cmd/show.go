package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a virtual BMC's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		resp, err := c.Communicate("show", map[string]any{"vm_name": args[0]})
		if err != nil {
			return fmt.Errorf("vbmc: %w", err)
		}
		return printResponse(resp)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
