package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"fftoolbox/internal/config"
	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/logging"
	"fftoolbox/internal/preflight"
)

func newCheckCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools, directories, and hardware encoders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Environment", colorize))
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out, renderSectionHeader("Hardware", colorize))
			renderHardwareChecks(cmd, cfg, colorize)

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(failed, ", "))
			}
			fmt.Fprintln(out, "All checks passed.")
			return nil
		},
	}
}

// renderHardwareChecks reports acceleration availability. Hardware is
// advisory: nothing here can fail the check, since software encoders
// cover every plan.
func renderHardwareChecks(cmd *cobra.Command, cfg *config.Config, colorize bool) {
	out := cmd.OutOrStdout()
	if !cfg.Hardware.Enabled {
		fmt.Fprintln(out, renderStatusLine("Acceleration", statusInfo, "disabled in config", colorize))
		return
	}

	negotiator := hwaccel.NewNegotiator(cfg, logging.NewNop())
	caps := negotiator.Discover(cmd.Context())
	for _, c := range caps {
		fmt.Fprintln(out, renderStatusLine(strings.ToUpper(string(c.Backend)), statusOK,
			strings.Join(c.Encoders, ", "), colorize))
	}

	failures := negotiator.Failures()
	backends := make([]string, 0, len(failures))
	for backend := range failures {
		backends = append(backends, string(backend))
	}
	sort.Strings(backends)
	for _, backend := range backends {
		fmt.Fprintln(out, renderStatusLine(strings.ToUpper(backend), statusWarn,
			failures[hwaccel.Backend(backend)].Error(), colorize))
	}

	if len(caps) == 0 {
		fmt.Fprintln(out, renderStatusLine("Acceleration", statusInfo,
			"none detected (software encoders only)", colorize))
	}
}
