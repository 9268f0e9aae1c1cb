package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jaki95/pack-shuffler/internal/converter"
	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/progress"
	"github.com/jaki95/pack-shuffler/internal/selection"
)

type outputFlags struct {
	typeName   string
	out        string
	noProgress bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.typeName, "type", "t", "", "Output pack type")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Output container path")
	cmd.Flags().BoolVar(&f.noProgress, "no-progress", false, "Disable progress bars")
}

func newConvertCommand(app *appContext) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "convert <container>",
		Short: "Show how a pack's tracks map onto another type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := app.targetType(typeName)
			if err != nil {
				return err
			}
			packs, err := app.loadPacks(cmd.Context(), args, nil)
			if err != nil {
				return err
			}
			if len(packs) == 0 {
				return fmt.Errorf("no pack found at %s", args[0])
			}
			pack := packs[0]

			conv := converter.New(app.registry, app.logger)
			rule := conv.Rule(pack, target)
			converted := conv.Convert(pack, target)

			kept := make(map[string]int, len(converted.Tracks))
			for _, t := range converted.Tracks {
				kept[t.Path] = t.SlotNumber
			}

			rows := make([][]string, 0, len(pack.Tracks))
			for _, t := range pack.Tracks {
				to := "dropped"
				if n, ok := kept[t.Path]; ok {
					to = strconv.Itoa(n)
				}
				rows = append(rows, []string{strconv.Itoa(t.SlotNumber), to, filepath.Base(t.Path)})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s -> %s (offset %+d)\n", pack.Name, orDash(pack.Type), target.Name, rule.Offset)
			fmt.Fprintln(out, renderTable(
				[]string{"From", "To", "File"},
				rows,
				[]columnAlignment{alignRight, alignRight},
			))
			if names := compatibleTypes(app.registry, pack); len(names) > 0 {
				fmt.Fprintf(out, "Compatible types: %v\n", names)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Target pack type")
	return cmd
}

func newAssignCommand(app *appContext) *cobra.Command {
	var flags outputFlags

	cmd := &cobra.Command{
		Use:   "assign <container>",
		Short: "Convert one pack and write it as the output pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := app.outputType(flags.typeName)
			if err != nil {
				return err
			}
			packs, err := app.loadPacks(cmd.Context(), args, nil)
			if err != nil {
				return err
			}
			if len(packs) == 0 {
				return fmt.Errorf("no pack found at %s", args[0])
			}

			return app.runEngine(cmd, flags, func(ctx context.Context, e *selection.Engine, out selection.Output) selection.Result {
				return e.Assign(ctx, packs[0], target, out)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newRandomCommand(app *appContext) *cobra.Command {
	var flags outputFlags

	cmd := &cobra.Command{
		Use:   "random <dir|container>...",
		Short: "Pick one pack at random and write it as the output pack",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := app.outputType(flags.typeName)
			if err != nil {
				return err
			}
			packs, err := app.loadPacks(cmd.Context(), args, target)
			if err != nil {
				return err
			}

			return app.runEngine(cmd, flags, func(ctx context.Context, e *selection.Engine, out selection.Output) selection.Result {
				return e.PickRandom(ctx, packs, target, out)
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newShuffleCommand(app *appContext) *cobra.Command {
	var flags outputFlags
	var style string
	var avoidDuplicates, weightBySource bool

	cmd := &cobra.Command{
		Use:   "shuffle <dir|container>...",
		Short: "Build a pack from random tracks of many packs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := app.shuffleRequest(cmd, flags.typeName, style, avoidDuplicates, weightBySource)
			if err != nil {
				return err
			}
			req.Packs, err = app.loadPacks(cmd.Context(), args, req.Target)
			if err != nil {
				return err
			}

			return app.runEngine(cmd, flags, func(ctx context.Context, e *selection.Engine, out selection.Output) selection.Result {
				req.Output = out
				return e.CreateShuffled(ctx, req)
			})
		},
	}

	flags.register(cmd)
	registerShuffleFlags(cmd, &style, &avoidDuplicates, &weightBySource)
	return cmd
}

func registerShuffleFlags(cmd *cobra.Command, style *string, avoidDuplicates, weightBySource *bool) {
	cmd.Flags().StringVar(style, "style", "", "Shuffle style: standard, paired, chaos or chaos_all")
	cmd.Flags().BoolVar(avoidDuplicates, "avoid-duplicates", true, "Use each track file at most once")
	cmd.Flags().BoolVar(weightBySource, "weight-by-source", true, "Weight tracks by their pack's shuffle frequency")
}

// shuffleRequest builds a request from flags, falling back to the shuffle
// section of the configuration for flags left unset.
func (a *appContext) shuffleRequest(cmd *cobra.Command, typeName, style string, avoidDuplicates, weightBySource bool) (selection.ShuffleRequest, error) {
	target, err := a.outputType(typeName)
	if err != nil {
		return selection.ShuffleRequest{}, err
	}
	if style == "" {
		style = a.cfg.Shuffle.Style
	}
	parsed, err := selection.ParseStyle(style)
	if err != nil {
		return selection.ShuffleRequest{}, err
	}
	if !cmd.Flags().Changed("avoid-duplicates") {
		avoidDuplicates = a.cfg.Shuffle.AvoidDuplicates
	}
	if !cmd.Flags().Changed("weight-by-source") {
		weightBySource = a.cfg.Shuffle.WeightBySource
	}
	return selection.ShuffleRequest{
		Target:          target,
		Style:           parsed,
		AvoidDuplicates: avoidDuplicates,
		WeightBySource:  weightBySource,
	}, nil
}

type engineCall func(ctx context.Context, e *selection.Engine, out selection.Output) selection.Result

// runEngine runs one engine operation with progress bars and prints the
// result.
func (a *appContext) runEngine(cmd *cobra.Command, flags outputFlags, call engineCall) error {
	var bars *progressBars
	var tracker *progress.Tracker
	if !flags.noProgress {
		bars = newProgressBars(nil)
		tracker = bars.attach()
	}

	e, err := a.engine(cmd.Context(), tracker)
	if err != nil {
		return err
	}
	result := call(cmd.Context(), e, selection.Output{Path: a.outputPath(flags.out)})
	if bars != nil {
		bars.finish()
	}
	return a.printResult(cmd.OutOrStdout(), result)
}

func (a *appContext) printResult(w io.Writer, result selection.Result) error {
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if !result.Success {
		if result.Err != nil {
			return fmt.Errorf("%s: %w", result.Message, result.Err)
		}
		return errors.New(result.Message)
	}

	fmt.Fprintln(w, result.Message)
	if result.Pack != nil {
		var t *domain.TypeDef
		if result.Pack.Type != "" {
			t, _ = a.registry.Get(result.Pack.Type)
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Slot", "Name", "File", "Song", "Alt"},
			trackRows(result.Pack.Tracks, t),
			[]columnAlignment{alignRight},
		))
	}
	return nil
}
