//go:build !windows

package cli

import (
	"os"

	"golang.org/x/sys/unix"
)

// Signals for Unix systems
var (
	signalTerm    os.Signal = unix.SIGTERM
	signalKill    os.Signal = unix.SIGKILL
	signalRestart os.Signal = unix.SIGHUP
)

// serveSignals are the signals the serve command handles.
var serveSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP}

// signalName returns the conventional name of sig.
func signalName(sig os.Signal) string {
	if s, ok := sig.(unix.Signal); ok {
		return unix.SignalName(s)
	}
	return sig.String()
}

// isRestartSignal reports whether sig asks a running server to restart.
func isRestartSignal(sig os.Signal) bool {
	return sig == signalRestart
}

// checkProcessRunning checks if a process is running using signal 0.
func checkProcessRunning(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

var processIsRunning = checkProcessRunning
