package cli

import (
	"fmt"

	"github.com/getmockd/vhostd/internal/ports"
	"github.com/getmockd/vhostd/pkg/cli/internal/output"
	"github.com/getmockd/vhostd/pkg/config"
	"github.com/getmockd/vhostd/pkg/provider"
	"github.com/getmockd/vhostd/pkg/registry"
	"github.com/spf13/cobra"
)

// ValidateOutput is the JSON result of the validate command.
type ValidateOutput struct {
	Valid        bool     `json:"valid"`
	Ports        string   `json:"ports,omitempty"`
	VirtualHosts bool     `json:"virtualHosts"`
	Hosts        []string `json:"hosts,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate <config-file>",
	Short: "Check a configuration file without starting the server",
	Long: `Load a configuration file, apply VHOSTD_* environment overrides, and
check every field. Route patterns, "when" conditions and body files are
compiled as the server would.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := validateConfigFile(args[0])
		w := cmd.OutOrStdout()

		if jsonOutput {
			if jerr := output.JSON(w, out); jerr != nil {
				return jerr
			}
			return err
		}

		if err != nil {
			return err
		}
		for _, warning := range out.Warnings {
			output.Warn("%s", warning)
		}
		fmt.Fprintf(w, "Configuration OK: ports %s", out.Ports)
		if out.VirtualHosts {
			fmt.Fprintf(w, ", %d virtual hosts", len(out.Hosts))
		}
		fmt.Fprintln(w)
		return nil
	},
}

// validateConfigFile loads, validates and builds the providers of one file.
func validateConfigFile(path string) (*ValidateOutput, error) {
	out := &ValidateOutput{}

	cfg, err := config.LoadFromFile(path)
	if err == nil {
		err = cfg.ApplyEnv()
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err == nil {
		reg := registry.New()
		err = applyProviders(registrySink{reg}, cfg)
		out.Hosts = reg.Hosts()
	}
	if err != nil {
		out.Errors = errorLines(err)
		return out, fmt.Errorf("invalid configuration:\n%w", err)
	}

	out.Valid = true
	out.Ports, _ = ports.Normalize(cfg.Ports)
	out.VirtualHosts = cfg.VirtualHosts

	specs, _ := ports.Parse(cfg.Ports)
	for _, spec := range specs {
		if err := ports.Check(spec.Port); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("port %d is not available: %v", spec.Port, err))
		}
	}
	return out, nil
}

// registrySink installs providers on a bare registry.
type registrySink struct{ *registry.Registry }

func (s registrySink) SetDefaultProvider(p provider.Provider)       { s.SetDefault(p) }
func (s registrySink) SetProvider(p provider.Provider, host string) { s.Set(host, p) }
func (s registrySink) SetVirtualHostingEnabled(enabled bool)        { s.SetVirtualHosting(enabled) }

func errorLines(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var lines []string
		for _, e := range joined.Unwrap() {
			lines = append(lines, errorLines(e)...)
		}
		return lines
	}
	return []string{err.Error()}
}
