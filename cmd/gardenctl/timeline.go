package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/events"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

func newTimelineCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <event-id>",
		Short: "Show the merged history of an event",
		Long:  "Merge status updates and service changes of an event into one timeline, newest first, ending with its creation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			timeline, err := events.NewService(client, client, nil).GetTimeline(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if f := opts.format(); f != formatTable {
				return writeStructured(cmd.OutOrStdout(), f, timeline)
			}
			return renderTimeline(cmd.OutOrStdout(), timeline, time.Now())
		},
	}
}

func renderTimeline(w io.Writer, t *events.Timeline, now time.Time) error {
	if _, err := fmt.Fprintf(w, "%s [%s, %s]\n\n",
		t.Event.Title, eventKind(t.Event), events.StatusLabel(t.Event.Status)); err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"When", "", "Entry", "Details"})
	for _, e := range t.Entries {
		tw.AppendRow(table.Row{
			e.Timestamp.UTC().Format(timeLayout),
			humanize.RelTime(e.Timestamp, now, "ago", "from now"),
			entryTitle(e),
			entryDetails(e),
		})
	}
	tw.Render()
	return nil
}

func eventKind(e *domain.Event) string {
	details, err := e.Details()
	if err != nil {
		return string(e.Type)
	}
	switch d := details.(type) {
	case domain.IncidentDetails:
		return string(d.Severity) + " incident"
	case domain.MaintenanceDetails:
		if d.ScheduledStartAt != nil && d.ScheduledEndAt != nil {
			return fmt.Sprintf("maintenance %s to %s",
				d.ScheduledStartAt.UTC().Format(timeLayout), d.ScheduledEndAt.UTC().Format(timeLayout))
		}
	}
	return string(e.Type)
}

func entryTitle(e events.TimelineEntry) string {
	switch e.Kind {
	case events.TimelineCreated:
		return "Created as " + e.StatusLabel
	case events.TimelineServiceChange:
		count := len(e.Services) + len(e.Groups)
		title := fmt.Sprintf("%s %d %s", titleWord(string(e.Action)), count, e.TypeLabel)
		if e.Legacy {
			title += " (legacy)"
		}
		return title
	default:
		return e.StatusLabel
	}
}

func entryDetails(e events.TimelineEntry) string {
	if e.Kind != events.TimelineServiceChange {
		return e.Message
	}

	names := make([]string, 0, len(e.Services)+len(e.Groups))
	for _, s := range e.Services {
		names = append(names, s.Name)
	}
	for _, g := range e.Groups {
		names = append(names, g.Name+" (group)")
	}
	details := strings.Join(names, ", ")
	if e.Reason != "" {
		details += "\nReason: " + e.Reason
	}
	return details
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
