package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stratlab-sync/internal/errors"
	"stratlab-sync/internal/jobs"
	"stratlab-sync/pkg/utils"
)

// addJobCommands adds job lifecycle commands.
func addJobCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSubmitCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newResultsCmd(app))
	rootCmd.AddCommand(newCancelCmd(app))
	rootCmd.AddCommand(newListCmd(app))
}

func newSubmitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a backtest job",
		Example: `  stratlab submit --name t1 --symbol AAPL --start 2023-01-01 --end 2023-12-31 --strategy momentum
  stratlab submit --name multi --symbol AAPL --symbol MSFT --start 2023-01-01 --end 2023-06-30 --strategy mean_reversion`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			name, _ := cmd.Flags().GetString("name")
			symbols, _ := cmd.Flags().GetStringArray("symbol")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			strategy, _ := cmd.Flags().GetString("strategy")
			capital, _ := cmd.Flags().GetFloat64("capital")

			jobID, err := app.Jobs.Submit(cmd.Context(), jobs.Config{
				Name:           name,
				Symbols:        symbols,
				Start:          start,
				End:            end,
				StrategyType:   strategy,
				InitialCapital: capital,
			})
			if err != nil {
				if errors.IsValidation(err) {
					output.Error("Invalid job configuration: %v", err)
					return err
				}
				output.Error("Submission failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"job_id": jobID})
			}
			output.Success("Job submitted: %s", jobID)
			output.Dim("Track it with: stratlab watch %s", jobID)
			return nil
		},
	}

	cmd.Flags().String("name", "", "job name")
	cmd.Flags().StringArray("symbol", nil, "data-source symbol (repeatable)")
	cmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().String("strategy", "", "strategy identifier")
	cmd.Flags().Float64("capital", 0, "initial capital")
	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Fetch a job's current status once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			job, err := app.Jobs.Poll(cmd.Context(), args[0])
			if err != nil {
				// A failed fetch is recoverable for this call only; the last
				// retained record is still worth showing.
				if retained, ok := app.Jobs.Get(args[0]); ok {
					output.Warning("Status fetch failed (%v), showing last known state", err)
					printJob(output, retained)
					return nil
				}
				output.Error("Status fetch failed: %v", err)
				return err
			}
			printJob(output, job)
			return nil
		},
	}
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Poll a job until it reaches a terminal state",
		Long: `Poll a job at the configured interval until it reaches a terminal state.

The controller never schedules polls itself; this command owns the
repeating schedule, adds jitter against thundering herds, and backs off
on consecutive transport failures.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			jobID := args[0]
			interval := app.Config.Jobs.PollInterval

			failures := 0
			for {
				job, err := app.Jobs.Poll(cmd.Context(), jobID)
				if err != nil {
					if errors.Is(err, errors.ErrJobNotFound) {
						output.Error("Unknown job: %s", jobID)
						return err
					}
					failures++
					delay := utils.Backoff(failures, interval, 30*time.Second, 2.0)
					output.Warning("Poll failed (%v), retrying in %s", err, delay.Round(time.Second))
					if err := sleep(cmd.Context(), delay); err != nil {
						return err
					}
					continue
				}
				failures = 0

				printJob(output, job)
				if job.Status.IsTerminal() {
					return nil
				}
				if err := sleep(cmd.Context(), utils.Jitter(interval, 0.2)); err != nil {
					return err
				}
			}
		},
	}
	return cmd
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newResultsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results <job-id>",
		Short: "Fetch results and metrics for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			includeTrades, _ := cmd.Flags().GetBool("trades")
			maxTrades, _ := cmd.Flags().GetInt("max-trades")

			doc, err := app.Jobs.FetchResults(cmd.Context(), args[0], includeTrades, maxTrades)
			if err != nil {
				if errors.Is(err, errors.ErrResultsNotReady) {
					output.Warning("Results not ready: %v", err)
					return err
				}
				output.Error("Results fetch failed: %v", err)
				return err
			}

			metrics := jobs.ExtractMetrics(doc)
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"results": doc,
					"metrics": metrics,
				})
			}

			output.Printf("Win rate:      %.2f%%\n", metrics.WinRate)
			output.Printf("Total return:  %.2f%%\n", metrics.TotalReturn)
			output.Printf("Max drawdown:  %.2f%%\n", metrics.MaxDrawdown)
			output.Printf("Sharpe ratio:  %.2f\n", metrics.SharpeRatio)
			if includeTrades {
				output.Printf("Trades:        %d\n", len(doc.Trades))
			}
			return nil
		},
	}
	cmd.Flags().Bool("trades", false, "include the trade list")
	cmd.Flags().Int("max-trades", 100, "maximum number of trades to fetch")
	return cmd
}

func newCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a job (best-effort)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.Jobs.Cancel(cmd.Context(), args[0]); err != nil {
				output.Error("Cancel failed: %v", err)
				return err
			}
			output.Info("Cancellation requested; poll the job to observe the outcome")
			return nil
		},
	}
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List retained job records",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			retained := app.Jobs.List()

			if output.IsJSON() {
				return output.JSON(retained)
			}
			if len(retained) == 0 {
				output.Dim("No jobs retained")
				return nil
			}
			for _, job := range retained {
				output.Printf("%-20s %-18s %5.1f%%  %s\n", job.ID, job.Status, job.Progress, job.Name)
			}
			return nil
		},
	}
}

func printJob(output *Output, job jobs.Job) {
	if output.IsJSON() {
		_ = output.JSON(job)
		return
	}
	line := fmt.Sprintf("[%s] %s %.1f%%", job.Status, job.ID, job.Progress)
	if job.Message != "" {
		line += " - " + job.Message
	}
	switch job.Status {
	case jobs.StateCompleted:
		output.Success("%s", line)
	case jobs.StateError, jobs.StateCancelled:
		output.Warning("%s", line)
	default:
		output.Println(line)
	}
}
