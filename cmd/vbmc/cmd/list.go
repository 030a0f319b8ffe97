package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listFakeMAC bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all virtual BMCs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client()
		if err != nil {
			return err
		}
		resp, err := c.Communicate("list", map[string]any{"fakemac": listFakeMAC})
		if err != nil {
			return fmt.Errorf("vbmc: %w", err)
		}
		return printResponse(resp)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listFakeMAC, "fakemac", false, "include the fake MAC address column")
}
