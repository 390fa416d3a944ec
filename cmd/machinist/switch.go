package main

import (
	"fmt"

	"machinist/cmd/machinist/ui"

	"github.com/spf13/cobra"
)

func switchCmd(flags *rootFlags) *cobra.Command {
	var sync bool
	var command string

	cmd := &cobra.Command{
		Use:   "switch <machine> <method>",
		Short: "Activate the deployed system configuration",
		Long: "Activate the deployed system configuration with the given method\n" +
			"(switch, boot, test, dry-activate). Exits with the activation\n" +
			"script's status so partial activations are visible to callers.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := openMachine(flags, args[0])
			if err != nil {
				return err
			}
			defer done()

			status, err := m.SwitchToConfiguration(cmd.Context(), args[1], sync, command)
			if err != nil {
				return err
			}
			if status != 0 {
				return fmt.Errorf("activation on %s exited with status %d", args[0], status)
			}
			fmt.Println(ui.SuccessMsg("configuration activated on %s", args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", true, "flush filesystem buffers before activating")
	cmd.Flags().StringVar(&command, "command", "", "activation script to run instead of the system profile's")
	return cmd
}
