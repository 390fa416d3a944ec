package main

import (
	"fmt"

	"machinist/cmd/machinist/ui"

	"github.com/spf13/cobra"
)

func rebootCmd(flags *rootFlags) *cobra.Command {
	var wait bool
	var hard bool
	var rescue bool

	cmd := &cobra.Command{
		Use:   "reboot <machine>",
		Short: "Reboot the machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := openMachine(flags, args[0])
			if err != nil {
				return err
			}
			defer done()

			switch {
			case rescue:
				if err := m.RebootIntoRescue(cmd.Context()); err != nil {
					return err
				}
			case wait:
				if err := m.RebootAndWaitUntilUp(cmd.Context(), hard); err != nil {
					return err
				}
				fmt.Println(ui.SuccessMsg("machine %s is back up", args[0]))
				return nil
			default:
				if err := m.Reboot(cmd.Context(), hard); err != nil {
					return err
				}
			}
			fmt.Println(ui.SuccessMsg("reboot issued to %s", args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "block until the machine is reachable again")
	cmd.Flags().BoolVar(&hard, "hard", false, "hint backends to power-cycle instead of a clean reboot")
	cmd.Flags().BoolVar(&rescue, "rescue", false, "reboot into the rescue system, when supported")
	return cmd
}
