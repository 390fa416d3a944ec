package main

import (
	"fmt"

	"machinist/cmd/machinist/ui"

	"github.com/spf13/cobra"
)

func waitCmd(flags *rootFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "wait <machine>",
		Short: "Block until the machine is reachable over SSH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := openMachine(flags, args[0])
			if err != nil {
				return err
			}
			defer done()

			if err := m.WaitForReachable(cmd.Context(), strict); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("machine %s is reachable", args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false,
		"probe again even if connectivity was confirmed before this run")
	return cmd
}
