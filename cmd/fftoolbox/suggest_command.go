package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"fftoolbox/internal/logging"
	"fftoolbox/internal/media"
	"fftoolbox/internal/plan"
)

func newSuggestCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest FILE...",
		Short: "Show which preset each source would get by default",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			prober := media.NewProber(cfg, logging.NewNop())
			headers := []string{"File", "Codec", "Resolution", "Size", "Preset", "Why"}
			var rows [][]string
			var failed int
			for _, arg := range args {
				profile, err := prober.Probe(cmd.Context(), arg)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "probe failed: %s: %v\n", arg, err)
					continue
				}
				id := plan.Suggest(profile)
				rows = append(rows, []string{
					filepath.Base(profile.Path),
					profile.VideoCodec,
					profile.Resolution(),
					formatBytes(profile.SizeBytes),
					id,
					suggestReason(profile, id),
				})
			}

			if len(rows) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, 3))
			}
			if failed == len(args) {
				return fmt.Errorf("no readable sources among %d path(s)", len(args))
			}
			return nil
		},
	}
}

// suggestReason explains the rule that picked the preset, mirroring the
// order the rules run in.
func suggestReason(profile media.Profile, id string) string {
	switch id {
	case "resolve_cleanup":
		return "professional mezzanine codec"
	case "whatsapp":
		return "large high-resolution file"
	case "quick":
		return "already a lean delivery encode"
	default:
		return "general-purpose default"
	}
}
