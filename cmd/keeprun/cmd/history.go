package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"keeprun/internal/runlog"
)

var (
	historyLogPath string
	historyOutput  string
	historyTail    int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded iterations from a run log",
	Long: `History reads the run log written by 'keeprun run' and displays one
row per iteration: sequence number, start time, runtime, and exit
status. Child output interleaved in the log is skipped.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyLogPath, "log", "log.txt", "Run log to read")
	historyCmd.Flags().StringVar(&historyOutput, "output", "table", "Output format: table or json")
	historyCmd.Flags().IntVar(&historyTail, "tail", 0, "Show only the last N iterations, 0 = all")
}

func runHistory(cmd *cobra.Command, args []string) error {
	records, err := runlog.ReadRecords(historyLogPath)
	if err != nil {
		return err
	}
	if historyTail > 0 && len(records) > historyTail {
		records = records[len(records)-historyTail:]
	}

	if historyOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No iterations recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Seq", "Started", "Runtime", "Exit", "Reason")

	failures := 0
	for _, rec := range records {
		if rec.ExitCode != 0 {
			failures++
		}
		table.Append(
			strconv.FormatUint(rec.Sequence, 10),
			rec.StartTime.Format(time.RFC3339),
			rec.Duration().Truncate(time.Millisecond).String(),
			strconv.Itoa(rec.ExitCode),
			rec.ExitReason,
		)
	}

	table.Render()
	fmt.Printf("\nTotal iterations: %d (%d failed)\n", len(records), failures)
	return nil
}
