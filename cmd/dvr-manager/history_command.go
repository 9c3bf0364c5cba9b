package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dvrmanager/internal/config"
	"dvrmanager/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var recordingID int64

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the placement audit trail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				var records []*queue.MoveRecord
				var err error
				if recordingID > 0 {
					records, err = store.MoveRecordsForRecording(cmd.Context(), recordingID)
				} else {
					records, err = store.RecentMoveRecords(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No move history")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						strconv.FormatInt(record.RecordingID, 10),
						string(record.Outcome),
						record.DestPath,
						truncate(record.Detail, 50),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Time", "ID", "Outcome", "Destination", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	cmd.Flags().Int64Var(&recordingID, "id", 0, "Show history for a single recording")
	return cmd
}
