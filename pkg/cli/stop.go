package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	stopForce   bool
	stopTimeout time.Duration
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running vhostd server",
	Example: `  vhostd stop
  vhostd stop --force
  vhostd stop --pid-file /tmp/vhostd.pid --timeout 30s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pidPath := resolvedPIDPath()
		info, err := liveProcess(pidPath)
		if err != nil {
			return err
		}

		process, err := os.FindProcess(info.PID)
		if err != nil {
			return fmt.Errorf("failed to find process %d: %w", info.PID, err)
		}

		sig := signalTerm
		if stopForce {
			sig = signalKill
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Stopping vhostd (PID %d) with %s... ", info.PID, signalName(sig))

		if err := process.Signal(sig); err != nil {
			fmt.Fprintln(w, "failed")
			return fmt.Errorf("failed to send signal: %w", err)
		}

		// A killed process cannot clean up after itself.
		if stopForce {
			fmt.Fprintln(w, "done")
			time.Sleep(100 * time.Millisecond)
			_ = RemovePIDFile(pidPath)
			return nil
		}

		deadline := time.Now().Add(stopTimeout)
		for time.Now().Before(deadline) {
			if !processIsRunning(info.PID) {
				fmt.Fprintln(w, "done")
				_ = RemovePIDFile(pidPath)
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}

		fmt.Fprintln(w, "timeout")
		fmt.Fprintf(w, "\nProcess did not stop within %s.\nTry: vhostd stop --force\n", stopTimeout)
		return errors.New("timeout waiting for process to stop")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the listener of the running vhostd server",
	Long: `Ask the running server to release and rebind its ports with the same
configuration. The process keeps running; this is SIGHUP on Unix.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if signalRestart == nil {
			return errors.New("restart by signal is not supported on this platform; use stop and serve")
		}

		info, err := liveProcess(resolvedPIDPath())
		if err != nil {
			return err
		}

		process, err := os.FindProcess(info.PID)
		if err != nil {
			return fmt.Errorf("failed to find process %d: %w", info.PID, err)
		}
		if err := process.Signal(signalRestart); err != nil {
			return fmt.Errorf("failed to send signal: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Restart requested (PID %d, %s)\n", info.PID, signalName(signalRestart))
		return nil
	},
}

func init() {
	stopCmd.Flags().BoolVarP(&stopForce, "force", "f", false, "Kill the process instead of stopping it gracefully")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "Time to wait for graceful shutdown")
}
