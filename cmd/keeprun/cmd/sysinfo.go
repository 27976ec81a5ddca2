package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keeprun/internal/hostinfo"
)

var sysinfoOutput string

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Report the allocated node's hardware",
	Long: `Sysinfo probes the current host (CPU model, thread count, RAM) and
prints it. Useful at the top of a batch job script to record which node
the scheduler handed out.`,
	RunE: runSysinfo,
}

func init() {
	rootCmd.AddCommand(sysinfoCmd)

	sysinfoCmd.Flags().StringVar(&sysinfoOutput, "output", "text", "Output format: text or json")
}

func runSysinfo(cmd *cobra.Command, args []string) error {
	info := hostinfo.Detect()

	if sysinfoOutput == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("Hostname: %s\n", info.Hostname)
	fmt.Printf("OS/Arch:  %s/%s\n", info.OS, info.Arch)
	fmt.Printf("CPU:      %s (%d threads)\n", info.CPUModel, info.CPUThreads)
	fmt.Printf("RAM:      %s total, %s free\n",
		hostinfo.FormatRAM(info.RAMBytes), hostinfo.FormatRAM(info.RAMFree))
	return nil
}
