package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"meetcal/internal/ics"
	"meetcal/internal/lifecycle"
	"meetcal/internal/model"
	"meetcal/internal/store"
)

type transitionOptions struct {
	reason string
	by     string
	at     string
	out    string
	json   bool
}

func newTransitionCommand(g *globalOptions) *cobra.Command {
	o := &transitionOptions{}

	cmd := &cobra.Command{
		Use:   "transition <meeting-id> <complete|reschedule|cancel>",
		Short: "Apply a lifecycle transition to one meeting",
		Example: `  meetcal transition m-42 complete
  meetcal transition m-42 reschedule --at 2024-03-01T10:00:00+01:00
  meetcal transition m-42 cancel --reason "candidate withdrew" --by counterpart --out updated.ics`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := lifecycle.ParseTransition(args[1])
			if err != nil {
				return err
			}
			payload, err := o.payload()
			if err != nil {
				return err
			}

			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			meetings, err := a.loadMeetings(cmd.Context())
			if err != nil {
				return err
			}
			eng, err := a.newEngine("", "", nil)
			if err != nil {
				return err
			}

			st := store.NewMemory(meetings)
			res, err := eng.ApplyTransition(st.Snapshot(), args[0], t, payload)
			if err != nil {
				return err
			}
			if err := st.Put(res.Meeting); err != nil {
				return err
			}
			if a.journal != nil {
				if err := a.journal.Record(cmd.Context(), res); err != nil {
					return err
				}
			}

			if o.out != "" {
				if err := writeICS(o.out, st.Snapshot(), time.Now()); err != nil {
					return err
				}
			}
			if o.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&o.reason, "reason", "", "Cancellation reason (required for cancel)")
	cmd.Flags().StringVar(&o.by, "by", string(model.PartyOrganizer), "Canceling party: organizer or counterpart")
	cmd.Flags().StringVar(&o.at, "at", "", "New start time for reschedule, RFC 3339")
	cmd.Flags().StringVar(&o.out, "out", "", "Write the updated calendar to this ICS file")
	cmd.Flags().BoolVar(&o.json, "json", false, "Print the transition result as JSON")
	return cmd
}

func (o *transitionOptions) payload() (lifecycle.Payload, error) {
	p := lifecycle.Payload{Reason: o.reason}
	if o.by != "" {
		by, err := model.ParseParty(o.by)
		if err != nil {
			return p, err
		}
		p.CanceledBy = by
	}
	if o.at != "" {
		at, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return p, fmt.Errorf("invalid --at: %w", err)
		}
		p.NewStartsAt = at
	}
	return p, nil
}

// writeICS writes the calendar atomically next to path.
func writeICS(path string, meetings []model.Meeting, stamp time.Time) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".meetcal-export-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.WriteString(tmp, ics.Encode(meetings, stamp)); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func printResult(w io.Writer, res lifecycle.Result) {
	_, _ = titleColor.Fprintf(w, "%s: %s -> %s\n", res.Meeting.Title, res.Previous, res.Meeting.Status)
	if res.Meeting.Cancellation != nil {
		_, _ = fmt.Fprintf(w, "  canceled by %s: %s\n", res.Meeting.Cancellation.CanceledBy, res.Meeting.Cancellation.Reason)
	}
	if res.Transition == lifecycle.TransitionReschedule {
		_, _ = fmt.Fprintf(w, "  new start: %s\n", res.Meeting.StartsAt.Format(time.RFC3339))
	}
	for _, ob := range res.Obligations {
		_, _ = overflowColor.Fprintf(w, "  obligation %s %s\n", ob.Kind, ob.ID)
	}
}
