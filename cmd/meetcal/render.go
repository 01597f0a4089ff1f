package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"meetcal/internal/calendar"
	"meetcal/internal/engine"
	"meetcal/internal/model"
	"meetcal/internal/store"
)

type renderOptions struct {
	view   string
	anchor string
	move   string
	json   bool
}

func newRenderCommand(g *globalOptions) *cobra.Command {
	o := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the week or month view of the configured feeds",
		Example: `  meetcal render --view month --anchor 2024-02-15
  meetcal render --move next --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			meetings, err := a.loadMeetings(cmd.Context())
			if err != nil {
				return err
			}
			eng, err := a.newEngine(o.view, o.anchor, nil)
			if err != nil {
				return err
			}
			if o.move != "" {
				dir, err := calendar.ParseDirection(o.move)
				if err != nil {
					return err
				}
				if err := eng.Navigate(dir); err != nil {
					return err
				}
			}

			view := eng.Render(store.NewMemory(meetings).Snapshot())
			if o.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printView(cmd.OutOrStdout(), view, a.loc)
			return nil
		},
	}

	cmd.Flags().StringVar(&o.view, "view", "", "View mode: week or month (default from config)")
	cmd.Flags().StringVar(&o.anchor, "anchor", "", "Anchor date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&o.move, "move", "", "Navigate before rendering: previous, next or today")
	cmd.Flags().BoolVar(&o.json, "json", false, "Print the view as JSON")
	return cmd
}

var (
	titleColor    = color.New(color.Bold, color.Underline)
	todayColor    = color.New(color.Bold, color.FgHiYellow)
	dayColor      = color.New(color.Bold)
	spillColor    = color.New(color.Faint)
	overflowColor = color.New(color.Faint, color.Italic)
	canceledColor = color.New(color.FgRed, color.CrossedOut)
	doneColor     = color.New(color.FgGreen)
)

// printView writes a day-by-day table. Days outside the anchor's month are
// dimmed, today is highlighted.
func printView(w io.Writer, v engine.View, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	_, _ = titleColor.Fprintln(w, viewTitle(v))

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60

	for _, b := range v.Days {
		label := b.Day.Date.In(loc).Format("Mon Jan 02")
		switch {
		case b.Day.IsToday:
			label = todayColor.Sprint(label)
		case !b.Day.IsInCurrentPeriod:
			label = spillColor.Sprint(label)
		default:
			label = dayColor.Sprint(label)
		}

		if len(b.VisibleMeetings) == 0 && b.OverflowCount == 0 {
			tbl.AddRow(label, "", overflowColor.Sprint("none"))
			continue
		}
		for i, m := range b.VisibleMeetings {
			if i > 0 {
				label = ""
			}
			tbl.AddRow(label, m.StartsAt.In(loc).Format("15:04"), meetingLine(m))
		}
		if b.OverflowCount > 0 {
			more := fmt.Sprintf("+%d more", b.OverflowCount)
			if b.FirstOverflow != nil {
				more += " (next: " + b.FirstOverflow.Title + ")"
			}
			if len(b.VisibleMeetings) > 0 {
				label = ""
			}
			tbl.AddRow(label, "", overflowColor.Sprint(more))
		}
	}
	_, _ = fmt.Fprintln(w, tbl)
	if v.Omitted > 0 {
		_, _ = overflowColor.Fprintf(w, "%d meetings outside this range\n", v.Omitted)
	}
}

func viewTitle(v engine.View) string {
	if v.Mode == calendar.ViewMonth {
		return v.Anchor.In(time.UTC).Format("January 2006")
	}
	if len(v.Days) == 0 {
		return "Week of " + v.Anchor.String()
	}
	return fmt.Sprintf("Week %s to %s", v.Days[0].Day.Date, v.Days[len(v.Days)-1].Day.Date)
}

func meetingLine(m model.Meeting) string {
	line := fmt.Sprintf("%s [%s, %dm]", m.Title, m.Kind, m.DurationMinutes)
	switch m.Status {
	case model.StatusCanceled:
		return canceledColor.Sprint(line + " canceled")
	case model.StatusCompleted:
		return doneColor.Sprint(line + " done")
	case model.StatusRescheduled:
		return line + " rescheduled"
	}
	if m.Remote() {
		line += " " + m.MeetingLink
	}
	return line
}
