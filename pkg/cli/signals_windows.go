//go:build windows

package cli

import (
	"os"

	"golang.org/x/sys/windows"
)

// Windows doesn't have SIGTERM or SIGHUP: os.Interrupt is the graceful stop
// and restarts are not signalled.
var (
	signalTerm    = os.Interrupt
	signalKill    = os.Kill
	signalRestart os.Signal
)

var serveSignals = []os.Signal{os.Interrupt}

func signalName(sig os.Signal) string {
	switch sig {
	case os.Interrupt:
		return "interrupt"
	case os.Kill:
		return "kill"
	}
	return sig.String()
}

func isRestartSignal(os.Signal) bool { return false }

// checkProcessRunning checks if a process is running on Windows.
func checkProcessRunning(pid int) bool {
	handle, err := windows.OpenProcess(windows.SYNCHRONIZE|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer func() { _ = windows.CloseHandle(handle) }()

	// WAIT_TIMEOUT means process is still running
	event, err := windows.WaitForSingleObject(handle, 0)
	if err != nil {
		return false
	}
	return event == uint32(windows.WAIT_TIMEOUT)
}

var processIsRunning = checkProcessRunning
