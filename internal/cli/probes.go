package cli

import (
	"github.com/spf13/cobra"

	"stratlab-sync/internal/capability"
	"stratlab-sync/internal/probe"
	"stratlab-sync/internal/readiness"
)

// addProbeCommands adds capability and readiness commands.
func addProbeCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newReadinessCmd(app))
	rootCmd.AddCommand(newCapabilityCmd(app))
	rootCmd.AddCommand(newResetCmd(app))
}

func newReadinessCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "readiness",
		Short: "Run all readiness checks and print the verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			verdict := app.Readiness.Run(cmd.Context())
			if output.IsJSON() {
				return output.JSON(verdict)
			}

			for _, check := range verdict.Checks {
				switch check.Status {
				case readiness.StatusPassed:
					output.Success("  ✓ %s: %s", check.Label, check.Message)
				case readiness.StatusWarning:
					output.Warning("  ! %s: %s", check.Label, check.Message)
				case readiness.StatusFailed:
					output.Error("  ✗ %s: %s", check.Label, check.Message)
				}
			}
			if verdict.OK {
				output.Success("Ready")
			} else {
				output.Warning("Not ready")
			}
			return nil
		},
	}
}

func newCapabilityCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "capability <route>",
		Short: "Check whether the service exposes an optional route",
		Long: `Check whether the remote service currently exposes an optional route,
per its self-description document. When the document cannot be fetched
the answer is "unknown", which callers must treat distinctly from a
confirmed "absent".`,
		Example: `  stratlab capability /api/backtests/compare`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			answer := app.Capability.HasDetail(cmd.Context(), args[0])
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"route":    args[0],
					"presence": string(answer.Presence),
					"source":   string(answer.Source),
				})
			}

			switch answer.Presence {
			case capability.Present:
				output.Success("%s: present", args[0])
			case capability.Absent:
				output.Warning("%s: absent", args[0])
			default:
				output.Dim("%s: unknown (service description unavailable)", args[0])
			}
			if answer.Source == probe.SourceLocal {
				output.Dim("(from cached service description)")
			}
			return nil
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear cached probe state and persisted fallback facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			app.Capability.Reset()
			output.Info("Probe caches cleared")
			return nil
		},
	}
}
