package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaki95/pack-shuffler/internal/continuous"
	"github.com/jaki95/pack-shuffler/internal/job"
	"github.com/jaki95/pack-shuffler/internal/progress"
	"github.com/jaki95/pack-shuffler/internal/selection"
)

func newWatchCommand(app *appContext) *cobra.Command {
	var typeName, outFlag, style string
	var avoidDuplicates, weightBySource bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <dir|container>...",
		Short: "Regenerate a shuffled pack on a fixed interval",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			req, err := app.shuffleRequest(cmd, typeName, style, avoidDuplicates, weightBySource)
			if err != nil {
				return err
			}
			req.Packs, err = app.loadPacks(signalCtx, args, req.Target)
			if err != nil {
				return err
			}
			req.Output = selection.Output{Path: app.outputPath(outFlag)}

			// Seed the first generation with whatever a previous run left behind.
			if _, statErr := os.Stat(req.Output.Path); statErr == nil {
				if prev, err := app.scanner().Load(signalCtx, req.Output.Path, req.Target); err == nil {
					req.Output.PreviousPack = prev
				} else {
					app.logger.Debug("Previous output not reusable", "path", req.Output.Path, "error", err)
				}
			}

			if interval <= 0 {
				interval = app.cfg.Shuffle.Interval
			}

			tracker := progress.NewTracker()
			engine, err := app.engine(signalCtx, tracker)
			if err != nil {
				return err
			}
			jobs := job.NewManager(0)
			runner := continuous.New(engine, jobs, req, interval,
				continuous.WithLogger(app.logger),
				continuous.WithProgress(tracker),
			)

			fmt.Fprintf(cmd.OutOrStdout(), "Shuffling %d packs into %s every %s (Ctrl+C to stop)\n",
				len(req.Packs), req.Output.Path, interval)
			if err := runner.Run(signalCtx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderJobs(jobs.ListJobs(1, job.MaxPageSize)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Output pack type")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output container path")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between generations (default from config)")
	registerShuffleFlags(cmd, &style, &avoidDuplicates, &weightBySource)
	return cmd
}

func renderJobs(page *job.Response) string {
	rows := make([][]string, 0, len(page.Jobs))
	for _, j := range page.Jobs {
		duration := "-"
		if j.EndTime != nil {
			duration = j.EndTime.Sub(j.StartTime).Round(time.Millisecond).String()
		}
		detail := j.Error
		if detail == "" && len(j.Warnings) > 0 {
			detail = fmt.Sprintf("%d warnings", len(j.Warnings))
		}
		rows = append(rows, []string{
			j.StartTime.Format(time.TimeOnly),
			j.Status,
			strconv.Itoa(j.Tracks),
			duration,
			detail,
		})
	}
	return renderTable(
		[]string{"Started", "Status", "Tracks", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	)
}
