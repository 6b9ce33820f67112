package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/vhostd/pkg/cli/internal/output"
	"github.com/getmockd/vhostd/pkg/engine"
	"github.com/spf13/cobra"
)

// StatusOutput represents the JSON output format for status.
type StatusOutput struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid,omitempty"`
	Version      string   `json:"version,omitempty"`
	Commit       string   `json:"commit,omitempty"`
	Uptime       string   `json:"uptime,omitempty"`
	Ports        string   `json:"ports,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	VirtualHosts []string `json:"virtualHosts,omitempty"`
	ConfigFile   string   `json:"configFile,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the running vhostd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		info, err := liveProcess(resolvedPIDPath())
		if err != nil {
			if !errors.Is(err, ErrNotRunning) {
				return err
			}
			if jsonOutput {
				return output.JSON(w, StatusOutput{Running: false})
			}
			fmt.Fprintln(w, "vhostd is not running")
			return nil
		}

		out := StatusOutput{
			Running:      true,
			PID:          info.PID,
			Version:      info.Version,
			Commit:       info.Commit,
			Uptime:       info.FormatUptime(),
			Ports:        info.Ports,
			URLs:         info.URLs(),
			VirtualHosts: info.VirtualHosts,
			ConfigFile:   info.ConfigFile,
		}
		if jsonOutput {
			return output.JSON(w, out)
		}

		tw := output.Table(w)
		fmt.Fprintf(tw, "Status:\trunning (PID %d)\n", out.PID)
		fmt.Fprintf(tw, "Version:\t%s\n", out.Version)
		fmt.Fprintf(tw, "Uptime:\t%s\n", out.Uptime)
		fmt.Fprintf(tw, "Ports:\t%s\n", out.Ports)
		fmt.Fprintf(tw, "URLs:\t%s\n", strings.Join(out.URLs, " "))
		if len(out.VirtualHosts) > 0 {
			fmt.Fprintf(tw, "Virtual hosts:\t%s\n", strings.Join(out.VirtualHosts, " "))
		}
		if out.ConfigFile != "" {
			fmt.Fprintf(tw, "Config:\t%s\n", out.ConfigFile)
		}
		return tw.Flush()
	},
}

var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "Print the address other machines can reach this host on",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, ok := engine.LocalIPAddress()
		if !ok {
			return errors.New("no non-loopback address found")
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), map[string]string{"address": addr})
		}
		fmt.Fprintln(cmd.OutOrStdout(), addr)
		return nil
	},
}
