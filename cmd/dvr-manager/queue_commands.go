package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dvrmanager/internal/config"
	"dvrmanager/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the recording queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueReleaseCommand(ctx))
	queueCmd.AddCommand(newQueueResetStuckCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued recordings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var statuses []queue.Status
				if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
					status, ok := queue.ParseStatus(trimmed)
					if !ok {
						return fmt.Errorf("unknown status %q", trimmed)
					}
					statuses = append(statuses, status)
				}

				recordings, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(recordings) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(recordings))
				for _, rec := range recordings {
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						string(rec.Status),
						rec.FileName,
						strconv.Itoa(rec.Attempts),
						truncate(rec.ErrorMessage, 60),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "File", "Attempts", "Error"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show recordings with this status")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearMoved bool
	var clearFailed bool
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed or failed recordings from the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var removed int64
				var err error
				switch {
				case clearAll:
					removed, err = store.Clear(cmd.Context())
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
				case clearMoved:
					removed, err = store.ClearMoved(cmd.Context())
				default:
					return fmt.Errorf("specify --moved, --failed, or --all")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d recording(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clearMoved, "moved", false, "Remove recordings that finished moving")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove failed recordings")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every recording")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var retryAll bool

	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Send failed recordings back through processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !retryAll && len(args) == 0 {
				return fmt.Errorf("specify recording ids or --all")
			}
			ids, err := parseRecordingIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				retried, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d recording(s)\n", retried)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&retryAll, "all", false, "Retry every failed recording")
	return cmd
}

func newQueueReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release id [id...]",
		Short: "Release quarantined recordings back into the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordingIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				released, err := store.RetryQuarantined(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d recording(s)\n", released)
				return nil
			})
		},
	}
}

func newQueueResetStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Roll interrupted recordings back to their previous state",
		Long: "Resets recordings stuck in a processing status, typically after " +
			"an unclean daemon shutdown, so the next daemon run picks them up.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				reset, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d recording(s)\n", reset)
				return nil
			})
		},
	}
}

func parseRecordingIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid recording id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}
