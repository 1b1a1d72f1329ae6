package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"notesd/internal/journal"
)

const (
	ansiBlue  = "\x1b[34m"
	ansiReset = "\x1b[0m"
)

func newJournalCommand(cmdCtx *commandContext) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded webhook deliveries",
	}

	journalCmd.AddCommand(newJournalListCommand(cmdCtx))
	journalCmd.AddCommand(newJournalClearCommand(cmdCtx))

	return journalCmd
}

type deliveryView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status"`
	Revision string `json:"revision,omitempty"`
	Error    string `json:"error,omitempty"`
	Created  string `json:"created_at"`
}

func newJournalListCommand(cmdCtx *commandContext) *cobra.Command {
	var statusFilters []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliveries, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			var statuses []journal.Status
			for _, raw := range statusFilters {
				status, ok := journal.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			deliveries, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			views := make([]deliveryView, 0, len(deliveries))
			for _, d := range deliveries {
				views = append(views, deliveryView{
					ID:       d.ID,
					Title:    d.Title,
					Filename: d.Filename,
					Status:   string(d.Status),
					Revision: shortRevision(d.Revision),
					Error:    d.ErrorMessage,
					Created:  d.CreatedAt.Local().Format(time.RFC3339),
				})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			if len(views) == 0 {
				fmt.Fprintln(out, "No deliveries recorded")
				return nil
			}

			summary, err := store.Summarize(cmd.Context())
			if err == nil {
				line := fmt.Sprintf("%d deliveries (%d pushed, %d pending push, %d rejected, %d failed)",
					summary.Total, summary.Pushed, summary.PushPending, summary.Rejected, summary.Failed)
				if isTerminal(out) {
					line = ansiBlue + line + ansiReset
				}
				fmt.Fprintln(out, line)
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.ID, v.Title, v.Filename, v.Status, v.Revision, v.Created})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "File", "Status", "Revision", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statusFilters, "status", nil,
		"Filter by status (repeatable): "+statusNames())
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func statusNames() string {
	statuses := journal.AllStatuses()
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func newJournalClearCommand(cmdCtx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete finished journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			remove := store.ClearTerminal
			if all {
				remove = store.Clear
			}
			removed, err := remove(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d deliveries\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Also delete in-flight and push_pending entries")
	return cmd
}

func shortRevision(revision string) string {
	if len(revision) > 8 {
		return revision[:8]
	}
	return revision
}
