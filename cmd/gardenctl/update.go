package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bissquit/garden-console/internal/domain"
	"github.com/bissquit/garden-console/internal/events"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var errTokenRequired = errors.New("a bearer token is required to submit updates (use --token, GARDEN_BACKEND__TOKEN or backend.token in CONFIG_PATH)")

type updateOptions struct {
	status    string
	message   string
	notify    bool
	set       []string
	remove    []string
	add       []string
	addGroups []string
	reason    string
	dryRun    bool
}

func newUpdateCmd(opts *cliOptions) *cobra.Command {
	u := &updateOptions{}

	cmd := &cobra.Command{
		Use:   "update <event-id>",
		Short: "Reconcile and submit an event update",
		Long: `Build an event update from service edits against the event's current services.

Status changes, removals and additions are reconciled into one payload. Use
--dry-run to print the payload without sending it.`,
		Example: `  gardenctl update 6f1c... --status monitoring --message "Fix deployed" \
    --set db=operational --remove cdn --reason "cdn was unaffected"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := u.draft()
			if err != nil {
				return err
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			svc := events.NewService(client, client, client)

			if u.dryRun {
				preview, err := svc.Preview(cmd.Context(), args[0], draft)
				if err != nil {
					return err
				}
				if f := opts.format(); f != formatTable {
					return writeStructured(cmd.OutOrStdout(), f, preview)
				}
				return renderPayload(cmd.OutOrStdout(), preview.Payload)
			}

			if opts.backend.Token == "" {
				return errTokenRequired
			}
			update, err := svc.Submit(cmd.Context(), args[0], draft, opts.backend.Token)
			if err != nil {
				return err
			}
			if f := opts.format(); f != formatTable {
				return writeStructured(cmd.OutOrStdout(), f, update)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "update %s posted: %s\n", update.ID, events.StatusLabel(update.Status))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&u.status, "status", "", "event status after the update")
	flags.StringVar(&u.message, "message", "", "update message")
	flags.BoolVar(&u.notify, "notify", false, "notify subscribers")
	flags.StringArrayVar(&u.set, "set", nil, "change a current service status, service=status")
	flags.StringArrayVar(&u.remove, "remove", nil, "remove a service from the event")
	flags.StringArrayVar(&u.add, "add", nil, "add a service, service=status")
	flags.StringArrayVar(&u.addGroups, "add-group", nil, "add every service of a group, group=status")
	flags.StringVar(&u.reason, "reason", "", "reason for adding or removing services")
	flags.BoolVar(&u.dryRun, "dry-run", false, "print the reconciled payload without submitting it")
	_ = cmd.MarkFlagRequired("status")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func (u *updateOptions) draft() (events.Draft, error) {
	set, err := parseAssignments(u.set)
	if err != nil {
		return events.Draft{}, fmt.Errorf("--set: %w", err)
	}
	add, err := parseAssignments(u.add)
	if err != nil {
		return events.Draft{}, fmt.Errorf("--add: %w", err)
	}
	groups, err := parseAssignments(u.addGroups)
	if err != nil {
		return events.Draft{}, fmt.Errorf("--add-group: %w", err)
	}

	draft := events.Draft{
		Status:            domain.EventStatus(u.status),
		Message:           u.message,
		NotifySubscribers: u.notify,
		RemoveServiceIDs:  u.remove,
		Reason:            u.reason,
	}
	for _, a := range set {
		draft.SetStatuses = append(draft.SetStatuses, domain.AffectedService{ServiceID: a.id, Status: a.status})
	}
	for _, a := range add {
		draft.AddServices = append(draft.AddServices, domain.AffectedService{ServiceID: a.id, Status: a.status})
	}
	for _, a := range groups {
		draft.AddGroups = append(draft.AddGroups, domain.AffectedGroup{GroupID: a.id, Status: a.status})
	}
	return draft, nil
}

type assignment struct {
	id     string
	status domain.ServiceStatus
}

// parseAssignments parses id=status pairs. Statuses are checked here so that
// typos fail before any backend call.
func parseAssignments(values []string) ([]assignment, error) {
	out := make([]assignment, 0, len(values))
	for _, v := range values {
		id, st, ok := strings.Cut(v, "=")
		id, st = strings.TrimSpace(id), strings.TrimSpace(st)
		if !ok || id == "" || st == "" {
			return nil, fmt.Errorf("invalid assignment %q, want id=status", v)
		}
		status := domain.ServiceStatus(st)
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid status %q for %s", st, id)
		}
		out = append(out, assignment{id: id, status: status})
	}
	return out, nil
}

func renderPayload(w io.Writer, p *events.UpdatePayload) error {
	if _, err := fmt.Fprintf(w, "Status: %s\nMessage: %s\nNotify: %s\n",
		events.StatusLabel(p.Status), p.Message, yesNo(p.NotifySubscribers)); err != nil {
		return err
	}
	if p.Reason != "" {
		if _, err := fmt.Fprintf(w, "Reason: %s\n", p.Reason); err != nil {
			return err
		}
	}

	if len(p.ServiceUpdates)+len(p.AddServices)+len(p.AddGroups)+len(p.RemoveServiceIDs) == 0 {
		_, err := fmt.Fprintln(w, "No service changes.")
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Operation", "Target", "Status"})
	for _, s := range p.ServiceUpdates {
		tw.AppendRow(table.Row{"update", s.ServiceID, statusText(s.Status)})
	}
	for _, s := range p.AddServices {
		tw.AppendRow(table.Row{"add", s.ServiceID, statusText(s.Status)})
	}
	for _, g := range p.AddGroups {
		tw.AppendRow(table.Row{"add group", g.GroupID, statusText(g.Status)})
	}
	for _, id := range p.RemoveServiceIDs {
		tw.AppendRow(table.Row{"remove", id, ""})
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	tw.Render()
	return nil
}
