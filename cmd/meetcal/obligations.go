package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"meetcal/internal/lifecycle"
)

var errNoJournal = errors.New("no database configured; set database in the config file")

func newObligationsCommand(g *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "obligations",
		Short: "List or settle obligations queued by journaled transitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if a.journal == nil {
				return errNoJournal
			}

			pending, err := a.journal.PendingObligations(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if pending == nil {
					pending = []lifecycle.Obligation{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(pending)
			}
			printObligations(cmd.OutOrStdout(), pending)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print pending obligations as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "done <obligation-id>",
		Short: "Mark an obligation as carried out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if a.journal == nil {
				return errNoJournal
			}
			if err := a.journal.MarkDone(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "obligation %s done\n", args[0])
			return nil
		},
	})
	return cmd
}

func printObligations(w io.Writer, obs []lifecycle.Obligation) {
	if len(obs) == 0 {
		_, _ = fmt.Fprintln(w, "no pending obligations")
		return
	}
	table := uitable.New()
	table.Separator = "  "
	table.MaxColWidth = 60
	table.AddRow("ID", "KIND", "MEETING", "PARTICIPANTS", "CREATED")
	for _, ob := range obs {
		table.AddRow(ob.ID, string(ob.Kind), ob.MeetingID, strings.Join(ob.Participants, ", "), ob.CreatedAt.Local().Format(time.DateTime))
	}
	_, _ = fmt.Fprintln(w, table)
}
