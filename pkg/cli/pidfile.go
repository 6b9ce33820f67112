package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/getmockd/vhostd/internal/ports"
)

// ErrNotRunning is returned when no live server is recorded in the PID file.
var ErrNotRunning = errors.New("vhostd is not running")

// PIDFile contains process information for a running vhostd instance.
type PIDFile struct {
	PID          int       `json:"pid"`
	StartTime    time.Time `json:"startTime"`
	Version      string    `json:"version"`
	Commit       string    `json:"commit,omitempty"`
	Ports        string    `json:"ports"`
	Host         string    `json:"host,omitempty"`
	VirtualHosts []string  `json:"virtualHosts,omitempty"`
	ConfigFile   string    `json:"configFile,omitempty"`
}

// DefaultPIDPath returns the default PID file location (~/.vhostd/vhostd.pid).
func DefaultPIDPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".vhostd", "vhostd.pid")
	}
	return filepath.Join(home, ".vhostd", "vhostd.pid")
}

// WritePIDFile writes the PID file to the specified path.
// It creates the parent directory if it doesn't exist.
func WritePIDFile(path string, info *PIDFile) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal PID file: %w", err)
	}

	// Write atomically by writing to temp file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename PID file: %w", err)
	}

	return nil
}

// ReadPIDFile reads and parses the PID file from the specified path.
func ReadPIDFile(path string) (*PIDFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w (no PID file at %s)", ErrNotRunning, path)
		}
		return nil, fmt.Errorf("failed to read PID file: %w", err)
	}

	var info PIDFile
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse PID file: %w", err)
	}

	return &info, nil
}

// RemovePIDFile removes the PID file at the specified path.
func RemovePIDFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// liveProcess reads the PID file and checks the recorded process. A stale
// PID file is removed.
func liveProcess(path string) (*PIDFile, error) {
	info, err := ReadPIDFile(path)
	if err != nil {
		return nil, err
	}
	if !info.IsRunning() {
		_ = RemovePIDFile(path)
		return nil, fmt.Errorf("%w (stale PID file removed)", ErrNotRunning)
	}
	return info, nil
}

// IsRunning checks if the process with the stored PID is still running.
func (p *PIDFile) IsRunning() bool {
	if p.PID <= 0 {
		return false
	}
	return processIsRunning(p.PID)
}

// Uptime returns the duration since the process started.
func (p *PIDFile) Uptime() time.Duration {
	if p.StartTime.IsZero() {
		return 0
	}
	return time.Since(p.StartTime)
}

// FormatUptime returns a human-readable uptime string.
func (p *PIDFile) FormatUptime() string {
	d := p.Uptime()
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if hours >= 24 {
		days := hours / 24
		hours = hours % 24
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// URLs returns one base URL per recorded port, https for TLS ports.
func (p *PIDFile) URLs() []string {
	specs, err := ports.Parse(p.Ports)
	if err != nil {
		return nil
	}
	host := p.Host
	if host == "" {
		host = "localhost"
	}

	urls := make([]string, 0, len(specs))
	for _, s := range specs {
		scheme := "http"
		if s.TLS {
			scheme = "https"
		}
		urls = append(urls, fmt.Sprintf("%s://%s:%d", scheme, host, s.Port))
	}
	return urls
}
