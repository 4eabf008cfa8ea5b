package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantdb/internal/app"
	"github.com/dropDatabas3/tenantdb/internal/provisioner"
)

func discoverCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Corre una vez el discovery contra el catálogo y muestra el reporte",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), g, func(ctx context.Context, a *app.App) error {
				rep, err := a.Provisioner.DiscoverAndRegister(ctx)
				if err != nil && rep.Result() == "ok" {
					return err
				}
				printReport(rep, asJSON)
				// conflictos/inválidas: reporte impreso y exit != 0
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Salida JSON")
	return cmd
}

func printReport(rep provisioner.Report, asJSON bool) {
	if asJSON {
		type issue struct {
			ID    string `json:"id"`
			Error string `json:"error"`
		}
		conv := func(in []provisioner.Issue) []issue {
			out := make([]issue, 0, len(in))
			for _, is := range in {
				out = append(out, issue{ID: is.ID.String(), Error: is.Err.Error()})
			}
			return out
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"result":    rep.Result(),
			"added":     rep.Added,
			"unchanged": rep.Unchanged,
			"skipped":   rep.Skipped,
			"conflicts": conv(rep.Conflicts),
			"invalid":   conv(rep.Invalid),
		})
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tSTATUS\tDETAIL")
	for _, id := range rep.Added {
		fmt.Fprintf(tw, "%s\tadded\t\n", id)
	}
	for _, id := range rep.Unchanged {
		fmt.Fprintf(tw, "%s\tunchanged\t\n", id)
	}
	for _, id := range rep.Skipped {
		fmt.Fprintf(tw, "%s\tskipped\tdefault tenant\n", id)
	}
	for _, is := range rep.Conflicts {
		fmt.Fprintf(tw, "%s\tconflict\t%v\n", is.ID, is.Err)
	}
	for _, is := range rep.Invalid {
		fmt.Fprintf(tw, "%s\tinvalid\t%v\n", is.ID, is.Err)
	}
	_ = tw.Flush()
	fmt.Printf("result=%s %s (%s)\n", rep.Result(), rep.String(), rep.Duration)
}
