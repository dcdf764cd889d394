package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"fftoolbox/internal/hwaccel"
	"fftoolbox/internal/logging"
)

func newHWCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "hw",
		Short: "Report usable hardware encoders",
		Long: `Hw probes each acceleration backend: the platform signal, the encoder
list, and a one-second trial encode. Backends that fail any gate are
reported with the reason; they never block a run, since every plan can
fall back to the software encoders.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.Hardware.Enabled {
				fmt.Fprintln(out, "Hardware acceleration is disabled in config; libx264/libx265 handle every encode.")
				return nil
			}

			negotiator := hwaccel.NewNegotiator(cfg, logging.NewNop())
			caps := negotiator.Discover(cmd.Context())
			failures := negotiator.Failures()

			if len(caps) > 0 {
				headers := []string{"Backend", "Encoders"}
				rows := make([][]string, 0, len(caps))
				for _, c := range caps {
					rows = append(rows, []string{
						strings.ToUpper(string(c.Backend)),
						strings.Join(c.Encoders, ", "),
					})
				}
				fmt.Fprintln(out, renderTable(headers, rows))
			} else {
				fmt.Fprintln(out, "No hardware encoders detected.")
			}

			if len(failures) > 0 {
				backends := make([]string, 0, len(failures))
				for backend := range failures {
					backends = append(backends, string(backend))
				}
				sort.Strings(backends)
				colorize := shouldColorize(out)
				for _, backend := range backends {
					line := renderStatusLine(strings.ToUpper(backend), statusWarn,
						failures[hwaccel.Backend(backend)].Error(), colorize)
					fmt.Fprintln(out, line)
				}
			}

			fmt.Fprintln(out, "Software fallback: libx264 (H.264) and libx265 (H.265) are always available.")
			return nil
		},
	}
}
