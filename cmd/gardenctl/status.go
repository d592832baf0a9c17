package main

import (
	"fmt"
	"io"

	"github.com/bissquit/garden-console/internal/catalog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the grouped status page",
		Long:  "Resolve the effective status of every service from active events and print services grouped for display.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			overview, err := catalog.NewService(client).Overview(cmd.Context())
			if err != nil {
				return err
			}

			if f := opts.format(); f != formatTable {
				return writeStructured(cmd.OutOrStdout(), f, overview)
			}
			return renderOverview(cmd.OutOrStdout(), overview)
		},
	}
}

func renderOverview(w io.Writer, o *catalog.Overview) error {
	if _, err := fmt.Fprintf(w, "%s: %d services, %d active events\n\n",
		o.Summary.Message, o.Summary.Total, o.Summary.ActiveEvents); err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Group", "Service", "Status", "Active event"})
	for i, listing := range o.Listing {
		group := "Ungrouped"
		if listing.Group != nil {
			group = listing.Group.Name
		}
		for _, s := range listing.Services {
			tw.AppendRow(table.Row{group, s.Name, statusText(s.EffectiveStatus), yesNo(s.HasActiveEvents)})
		}
		if i < len(o.Listing)-1 {
			tw.AppendSeparator()
		}
	}
	tw.Render()
	return nil
}
