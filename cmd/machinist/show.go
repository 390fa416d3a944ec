package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"machinist"
	"machinist/cmd/machinist/ui"

	"github.com/spf13/cobra"
)

func showCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <machine>",
		Short: "Show the machine's persisted record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, done, err := openMachine(flags, args[0])
			if err != nil {
				return err
			}
			defer done()

			rec, err := m.Record()
			if err != nil {
				return err
			}

			keyNames := make([]string, 0, len(rec.Keys))
			for name := range rec.Keys {
				keyNames = append(keyNames, name)
			}
			sort.Strings(keyNames)

			startTime := ui.Muted("unknown")
			if !rec.StartTime.IsZero() {
				startTime = rec.StartTime.Format(time.RFC3339)
			}

			fmt.Print(ui.KeyValues("",
				ui.KV("state", ui.Good(rec.State.String(), rec.State == machinist.Up)),
				ui.KV("ssh pinged", ui.Bool(rec.SSHPinged)),
				ui.KV("ssh port", strconv.Itoa(rec.SSHPort)),
				ui.KV("fast connection", ui.Bool(rec.HasFastConnection)),
				ui.KV("keys on machine", ui.Bool(rec.StoreKeysOnMachine)),
				ui.KV("owners", strings.Join(rec.Owners, ", ")),
				ui.KV("keys", strings.Join(keyNames, ", ")),
				ui.KV("start time", startTime),
			))
			return nil
		},
	}
}
