package main

import (
	"fmt"

	"machinist/cmd/machinist/ui"

	"github.com/spf13/cobra"
)

func sendKeysCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "send-keys <machine>",
		Short: "Provision the machine's declared secrets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := openMachine(flags, args[0])
			if err != nil {
				return err
			}
			defer done()

			if err := m.SendKeys(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("keys sent to %s", args[0]))
			return nil
		},
	}
}
