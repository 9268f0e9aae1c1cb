package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/registry"
)

func newScanCommand(app *appContext) *cobra.Command {
	var typeFlag string
	var explain, prune bool

	cmd := &cobra.Command{
		Use:   "scan <dir|container>...",
		Short: "Find packs and detect their type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *domain.TypeDef
			if typeFlag != "" {
				t, err := app.targetType(typeFlag)
				if err != nil {
					return err
				}
				filter = t
			}

			packs, err := app.loadPacks(cmd.Context(), args, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(packs))
			for _, p := range packs {
				typeName := p.Type
				if typeName == "" {
					typeName = "unknown"
				}
				rows = append(rows, []string{
					p.Name,
					typeName,
					strconv.Itoa(len(p.Slots())),
					yesNo(p.HasAltTracks()),
					string(p.Settings.Frequency),
					p.Path,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Pack", "Type", "Slots", "Alts", "Frequency", "Path"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))

			if prune && app.cache != nil {
				keep := make([]string, len(packs))
				for i, p := range packs {
					keep[i] = p.Path
				}
				removed, err := app.cache.Prune(cmd.Context(), keep)
				if err != nil {
					return fmt.Errorf("prune cache: %w", err)
				}
				fmt.Fprintf(out, "Pruned %d cache entries\n", removed)
			}

			if explain {
				m := app.scanner().Matcher()
				for _, p := range packs {
					fmt.Fprintf(out, "\n%s\n", p.Name)
					var crows [][]string
					for _, c := range m.Candidates(p.Slots(), filter) {
						crows = append(crows, []string{
							c.Type.Name,
							fmt.Sprintf("%.3f", c.Confidence),
							fmt.Sprintf("%.3f", c.RequiredConfidence),
							fmt.Sprintf("%.3f", c.AllConfidence),
							strconv.Itoa(c.Overlap),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Type", "Confidence", "Required", "All", "Overlap"},
						crows,
						[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
					))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Only consider types compatible with this type")
	cmd.Flags().BoolVar(&explain, "explain", false, "Show every candidate type with its scores")
	cmd.Flags().BoolVar(&prune, "prune", false, "Drop cached packs this scan did not find")
	return cmd
}

func newShowCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <container>",
		Short: "Show the tracks of one pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packs, err := app.loadPacks(cmd.Context(), args, nil)
			if err != nil {
				return err
			}
			if len(packs) == 0 {
				return fmt.Errorf("no pack found at %s", args[0])
			}
			p := packs[0]

			var t *domain.TypeDef
			if p.Type != "" {
				t, _ = app.registry.Get(p.Type)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s by %s (%s)\n", p.Name, orDash(p.Creator), orDash(p.Type))
			fmt.Fprintln(out, renderTable(
				[]string{"Slot", "Name", "File", "Song", "Alt"},
				trackRows(p.Tracks, t),
				[]columnAlignment{alignRight},
			))
			if t != nil {
				if missing := missingSlots(p, t); len(missing) > 0 {
					fmt.Fprintf(out, "Missing required slots: %s\n", joinInts(missing))
				}
			}
			return nil
		},
	}
}

func trackRows(tracks []domain.Track, t *domain.TypeDef) [][]string {
	rows := make([][]string, 0, len(tracks))
	for _, tr := range tracks {
		name := ""
		if t != nil {
			if def, ok := t.Slot(tr.SlotNumber); ok {
				name = def.Name
			}
		}
		song := ""
		if tr.Song != "" {
			song = tr.Description()
		}
		rows = append(rows, []string{
			strconv.Itoa(tr.SlotNumber),
			name,
			filepath.Base(tr.Path),
			song,
			yesNo(tr.IsAlt),
		})
	}
	return rows
}

func missingSlots(p *domain.Pack, t *domain.TypeDef) []int {
	have := p.Slots()
	var missing []int
	for _, n := range t.RequiredSlots.Sorted() {
		if !have.Contains(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// compatibleTypes lists the names of the types a pack can be converted to.
func compatibleTypes(reg *registry.Registry, p *domain.Pack) []string {
	t, ok := reg.Get(p.Type)
	if !ok {
		return nil
	}
	var names []string
	for _, c := range reg.CompatibleWith(t) {
		names = append(names, c.Name)
	}
	return names
}
