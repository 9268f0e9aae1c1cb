package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newTypesCommand(app *appContext) *cobra.Command {
	var showRules bool

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the known pack types",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var rows [][]string
			for _, t := range app.registry.Types() {
				rows = append(rows, []string{
					t.Name,
					t.Label(),
					strconv.Itoa(len(t.Slots)),
					strconv.Itoa(len(t.RequiredSlots)),
					strconv.Itoa(t.Priority),
					yesNo(t.Selectable),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Display name", "Slots", "Required", "Priority", "Selectable"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))

			if !showRules {
				return nil
			}
			rows = rows[:0]
			for _, r := range app.registry.Rules() {
				mapping := fmt.Sprintf("%+d", r.Offset)
				if len(r.Table) > 0 {
					mapping = fmt.Sprintf("%s, %d table entries", mapping, len(r.Table))
				}
				rows = append(rows, []string{r.Source, r.Target, mapping})
			}
			fmt.Fprintln(out, renderTable([]string{"Source", "Target", "Mapping"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showRules, "conversions", false, "Also list conversion rules")
	return cmd
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
