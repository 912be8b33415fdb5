package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yoriiioff/espvision/internal/config"
	"github.com/yoriiioff/espvision/internal/store"
)

func newHistoryCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past processing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, cfg)
		},
	}
}

func runHistory(cmd *cobra.Command, cfg *config.Config) error {
	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open job history: %w", err)
	}
	defer st.Close()

	list, err := st.Jobs().List()
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded yet.")
		return nil
	}

	headers := []string{"Started", "Input", "Status", "Frames", "Detections"}
	rows := make([][]string, 0, len(list))
	for _, j := range list {
		rows = append(rows, []string{
			j.StartedAt.Format("2006-01-02 15:04"),
			j.InputPath,
			string(j.Status),
			strconv.Itoa(j.ProcessedFrames),
			strconv.Itoa(j.Detections),
		})
	}

	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
	return nil
}
