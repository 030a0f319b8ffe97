package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var addArgs struct {
	vmUUID           string
	username         string
	password         string
	port             int
	address          string
	fakemac          string
	viserver         string
	viserverUsername string
	viserverPassword string
}

var addCmd = &cobra.Command{
	Use:   "add <vm-name>",
	Short: "Create a new BMC for a virtual machine instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vmName := args[0]

		hasUser := addArgs.viserverUsername != ""
		hasPass := addArgs.viserverPassword != ""
		if hasUser != hasPass {
			return errors.New("vbmc: --viserver-username and --viserver-password must both be given, or neither")
		}

		c, err := client()
		if err != nil {
			return err
		}

		resp, err := c.Communicate("add", map[string]any{
			"vm_name":           vmName,
			"vm_uuid":           addArgs.vmUUID,
			"username":          addArgs.username,
			"password":          addArgs.password,
			"port":              addArgs.port,
			"address":           addArgs.address,
			"fakemac":           addArgs.fakemac,
			"viserver":          addArgs.viserver,
			"viserver_username": addArgs.viserverUsername,
			"viserver_password": addArgs.viserverPassword,
		})
		if err != nil {
			return fmt.Errorf("vbmc: %w", err)
		}
		return printResponse(resp)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addArgs.vmUUID, "vm-uuid", "", "the UUID of the virtual machine")
	addCmd.Flags().StringVar(&addArgs.username, "username", "admin", "the BMC username")
	addCmd.Flags().StringVar(&addArgs.password, "password", "password", "the BMC password")
	addCmd.Flags().IntVar(&addArgs.port, "port", 6230, "port to listen on")
	addCmd.Flags().StringVar(&addArgs.address, "address", "::", "the address to bind to")
	addCmd.Flags().StringVar(&addArgs.fakemac, "fakemac", "", "the fake MAC address to report to vCenter")
	addCmd.Flags().StringVar(&addArgs.viserver, "viserver", "", "the VI Server")
	addCmd.Flags().StringVar(&addArgs.viserverUsername, "viserver-username", "", "the VI Server username")
	addCmd.Flags().StringVar(&addArgs.viserverPassword, "viserver-password", "", "the VI Server password")
}
