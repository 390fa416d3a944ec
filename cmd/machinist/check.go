package main

import (
	"fmt"
	"strings"

	"machinist/cmd/machinist/ui"

	"github.com/spf13/cobra"
)

func checkCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <machine>",
		Short: "Probe the machine and classify its service units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := openMachine(flags, args[0])
			if err != nil {
				return err
			}
			defer done()

			res, err := m.Check(cmd.Context())
			if err != nil {
				return err
			}

			none := ui.Muted("none")
			failed := none
			if len(res.FailedUnits) > 0 {
				failed = ui.ErrorStyle.Render(strings.Join(res.FailedUnits, ", "))
			}
			inProgress := none
			if len(res.InProgressUnits) > 0 {
				inProgress = ui.WarnStyle.Render(strings.Join(res.InProgressUnits, ", "))
			}

			fmt.Print(ui.KeyValues("",
				ui.KV("reachable", ui.Bool(res.Reachable)),
				ui.KV("load", strings.Join(res.Load, " ")),
				ui.KV("failed units", failed),
				ui.KV("in progress", inProgress),
			))
			for _, msg := range res.Messages {
				fmt.Println(ui.WarnMsg("%s", msg))
			}
			return nil
		},
	}
}
