package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"fftoolbox/internal/encode"
	"fftoolbox/internal/history"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent encode results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "Encode history is disabled in config.")
				return nil
			}

			store, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var records []history.Record
			if runID != "" {
				records, err = store.ListRun(cmd.Context(), runID)
			} else {
				records, err = store.List(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No encode history yet.")
				return nil
			}

			fmt.Fprintln(out, renderHistoryTable(records))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of records to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show one run's records in execution order")
	return cmd
}

func renderHistoryTable(records []history.Record) string {
	headers := []string{"When", "File", "Preset", "Status", "Input", "Output", "Saved", "Detail"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		detail := ""
		switch {
		case rec.ErrorMessage != "":
			detail = truncate(rec.ErrorMessage, 48)
		case rec.Retried:
			detail = "retried for size"
		}
		saved := "-"
		if rec.Status == string(encode.StatusSuccess) {
			saved = formatPercent(rec.SavedPercent)
		}
		rows = append(rows, []string{
			humanize.Time(rec.CreatedAt),
			filepath.Base(rec.Input),
			rec.PresetID,
			rec.Status,
			formatBytes(rec.InputBytes),
			formatBytes(rec.OutputBytes),
			saved,
			detail,
		})
	}
	return renderTable(headers, rows, 4, 5, 6)
}
