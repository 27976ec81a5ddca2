package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"keeprun/internal/config"
	"keeprun/internal/hostinfo"
	"keeprun/internal/metrics"
	"keeprun/internal/shutdown"
	"keeprun/internal/supervisor"
)

var (
	runCommand          string
	runWorkDir          string
	runInterval         time.Duration
	runLogPath          string
	runChildLogPath     string
	runMaxRuntime       time.Duration
	runIterationTimeout time.Duration
	runForwardSignals   bool
	runGracePeriod      time.Duration
	runBackoff          bool
	runBackoffMax       time.Duration
	runBackoffJitter    bool
	runMetricsListen    string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Run a command under supervision, restarting it after every exit",
	Long: `Run launches the target command in the working directory, waits for it
to exit, sleeps the configured interval, and starts it again. The exit
status is recorded but never changes the restart decision.

The loop terminates only on an external signal (SIGINT/SIGTERM), on
exhaustion of --max-runtime, or on a setup error before the first
iteration. Graceful termination exits 0.

The target can be given either after "--" or via --command.

Example:
  keeprun run --workdir ~/inputs --interval 30s -- python3 poller.py
  keeprun run --interval 1s --max-runtime 5s --command "/bin/false"
  keeprun run --backoff --backoff-max 5m -- ./flaky-sync.sh`,
	Args: cobra.ArbitraryArgs,
	RunE: runSupervisor,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runCommand, "command", "", "Target command with arguments (alternative to positional args)")
	runCmd.Flags().StringVar(&runWorkDir, "workdir", ".", "Working directory for the workload")
	runCmd.Flags().DurationVar(&runInterval, "interval", 30*time.Second, "Delay between iterations")
	runCmd.Flags().StringVar(&runLogPath, "log", "", "Run log path (default log.txt in workdir)")
	runCmd.Flags().StringVar(&runChildLogPath, "child-log", "", "Separate child output log (default: the run log)")
	runCmd.Flags().DurationVar(&runMaxRuntime, "max-runtime", 0, "Wall-clock budget, 0 = unbounded")
	runCmd.Flags().DurationVar(&runIterationTimeout, "iteration-timeout", 0, "Per-child timeout, 0 = none")
	runCmd.Flags().BoolVar(&runForwardSignals, "forward-signals", true, "Forward termination signals to a running child")
	runCmd.Flags().DurationVar(&runGracePeriod, "grace-period", 5*time.Second, "SIGTERM-to-SIGKILL window on shutdown")
	runCmd.Flags().BoolVar(&runBackoff, "backoff", false, "Grow the delay after consecutive failures (default: fixed delay)")
	runCmd.Flags().DurationVar(&runBackoffMax, "backoff-max", 10*time.Minute, "Delay cap when --backoff is set")
	runCmd.Flags().BoolVar(&runBackoffJitter, "backoff-jitter", false, "Add jitter when --backoff is set")
	runCmd.Flags().StringVar(&runMetricsListen, "metrics-listen", "", "Serve /metrics and /healthz on this address (off by default)")
}

// applyConfigDefaults fills flag values from the config file for flags
// the user did not set explicitly. Flags win over config, config wins
// over built-in defaults.
func applyConfigDefaults(cmd *cobra.Command) {
	stringDefault := func(flag, key string, dst *string) {
		if !cmd.Flags().Changed(flag) && viper.GetString(key) != "" {
			*dst = viper.GetString(key)
		}
	}
	durationDefault := func(flag, key string, dst *time.Duration) {
		if !cmd.Flags().Changed(flag) {
			*dst = config.Duration(viper.GetString(key), *dst)
		}
	}

	stringDefault("workdir", "workdir", &runWorkDir)
	stringDefault("log", "log", &runLogPath)
	stringDefault("child-log", "child_log", &runChildLogPath)
	stringDefault("metrics-listen", "metrics_listen", &runMetricsListen)
	durationDefault("interval", "interval", &runInterval)
	durationDefault("max-runtime", "max_runtime", &runMaxRuntime)
	durationDefault("iteration-timeout", "iteration_timeout", &runIterationTimeout)
	durationDefault("grace-period", "grace_period", &runGracePeriod)
	durationDefault("backoff-max", "backoff.max", &runBackoffMax)

	if !cmd.Flags().Changed("forward-signals") && viper.IsSet("forward_signals") {
		runForwardSignals = viper.GetBool("forward_signals")
	}
	if !cmd.Flags().Changed("backoff") && viper.IsSet("backoff.enabled") {
		runBackoff = viper.GetBool("backoff.enabled")
	}
	if !cmd.Flags().Changed("backoff-jitter") && viper.IsSet("backoff.jitter") {
		runBackoffJitter = viper.GetBool("backoff.jitter")
	}
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	applyConfigDefaults(cmd)

	log := newLogger()
	defer log.Close()

	if len(args) == 0 {
		args = strings.Fields(runCommand)
	}
	if len(args) == 0 {
		return supervisor.ErrNoCommand
	}

	cfg := supervisor.DefaultConfig()
	cfg.Command = args[0]
	cfg.Args = args[1:]
	cfg.WorkDir = runWorkDir
	cfg.Interval = runInterval
	cfg.LogPath = runLogPath
	cfg.ChildLogPath = runChildLogPath
	cfg.MaxRuntime = runMaxRuntime
	cfg.IterationTimeout = runIterationTimeout
	cfg.ForwardSignals = runForwardSignals
	cfg.GracePeriod = runGracePeriod
	if runBackoff {
		cfg.Delay = supervisor.NewExponentialBackoff(runInterval, runBackoffMax, runBackoffJitter)
	}

	m := metrics.New()

	// Setup errors surface here, before the loop starts: non-zero exit,
	// zero log entries.
	sup, err := supervisor.New(cfg, log, m)
	if err != nil {
		return err
	}

	node := hostinfo.Detect()
	log.Info("allocated node", map[string]interface{}{
		"hostname": node.Hostname,
		"cpu":      node.CPUModel,
		"threads":  node.CPUThreads,
		"ram":      hostinfo.FormatRAM(node.RAMBytes),
	})

	mgr := shutdown.New(runGracePeriod+5*time.Second, log)
	ctx := mgr.Notify(context.Background())

	if runMetricsListen != "" {
		exporter := metrics.NewExporter(m, log)
		exporter.Serve(runMetricsListen)
		mgr.Register(exporter.Stop)
	}
	mgr.Register(func(context.Context) error { return sup.Close() })

	// Blocks until signal or budget exhaustion; both return nil.
	err = sup.Run(ctx)

	finish := map[string]interface{}{"iterations": sup.Sequence()}
	if sig := mgr.Signal(); sig != nil {
		finish["signal"] = sig.String()
	}
	log.Info("supervision finished", finish)

	mgr.Shutdown()
	return err
}
