package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dvrmanager/internal/config"
	"dvrmanager/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue and database health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				summary, err := store.Health(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue health: %w", err)
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue stats: %w", err)
				}

				for _, line := range renderSectionHeader("Queue", colorize) {
					fmt.Fprintln(out, line)
				}
				rows := make([][]string, 0, len(queue.AllStatuses()))
				for _, status := range queue.AllStatuses() {
					count := stats[status]
					if count == 0 {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, statusIndent+"Queue is empty")
				} else {
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Count"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				fmt.Fprintln(out, renderStatusLine("Total", statusInfo, strconv.Itoa(summary.Total), colorize))
				if summary.Failed > 0 {
					fmt.Fprintln(out, renderStatusLine("Failed", statusError, strconv.Itoa(summary.Failed), colorize))
				}
				if summary.Quarantined > 0 {
					fmt.Fprintln(out, renderStatusLine("Quarantined", statusWarn, strconv.Itoa(summary.Quarantined), colorize))
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Database", colorize) {
					fmt.Fprintln(out, line)
				}
				dbHealth, dbErr := store.CheckHealth(cmd.Context())
				fmt.Fprintln(out, renderStatusLine("Path", statusInfo, dbHealth.DBPath, colorize))
				if dbErr != nil {
					fmt.Fprintln(out, renderStatusLine("Connection", statusError, dbErr.Error(), colorize))
					return nil
				}
				fmt.Fprintln(out, renderStatusLine("Connection", statusOK, "", colorize))
				if len(dbHealth.MissingColumns) > 0 {
					detail := fmt.Sprintf("missing columns: %v", dbHealth.MissingColumns)
					fmt.Fprintln(out, renderStatusLine("Schema", statusError, detail, colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Schema", statusOK, "", colorize))
				}
				integrity := statusOK
				if !dbHealth.IntegrityCheck {
					integrity = statusError
				}
				fmt.Fprintln(out, renderStatusLine("Integrity", integrity, "", colorize))
				fmt.Fprintln(out, renderStatusLine("Recordings", statusInfo, strconv.Itoa(dbHealth.TotalRecordings), colorize))
				return nil
			})
		},
	}
}
