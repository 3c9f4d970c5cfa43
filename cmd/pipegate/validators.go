package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/pipegate/internal/domain/pipeline"
)

func newValidatorsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validators",
		Short: "List the configured validator chain and available validators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, headerStyle.Render("Configured chain"))
			if len(app.Config.Validators) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("  (empty, every pipeline is runnable)"))
			}
			for i, v := range app.Config.Validators {
				var notes []string
				if !app.Registry.Has(v.Name) {
					notes = append(notes, "not registered")
				}
				if v.FailClosed {
					notes = append(notes, "fail-closed")
				}
				if v.DefaultLimit > 0 {
					notes = append(notes, fmt.Sprintf("default limit %d", v.DefaultLimit))
				}
				if v.RequireStages {
					notes = append(notes, "requires stages")
				}
				line := fmt.Sprintf("  %d. %s", i+1, v.Name)
				if len(notes) > 0 {
					line += " " + mutedStyle.Render("("+strings.Join(notes, ", ")+")")
				}
				fmt.Fprintln(out, line)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, headerStyle.Render("Available"))
			fmt.Fprintln(out, "  "+strings.Join(app.Registry.Names(), ", "))

			kinds := pipeline.FailureKinds()
			names := make([]string, len(kinds))
			for i, kind := range kinds {
				names[i] = string(kind)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, headerStyle.Render("Failure kinds"))
			fmt.Fprintln(out, "  "+strings.Join(names, ", "))
			return nil
		},
	}
}
