package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantdb/internal/app"
	cpsql "github.com/dropDatabas3/tenantdb/internal/controlplane/sql"
)

func catalogCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Administración de la tabla del catálogo",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Crea la tabla del catálogo en la base default si no existe",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), g, func(ctx context.Context, a *app.App) error {
				cat, ok := a.Catalog.(*cpsql.Catalog)
				if !ok {
					return fmt.Errorf("catalog.kind=%s: init solo aplica a sql", a.Config.Catalog.Kind)
				}
				if err := cat.EnsureSchema(ctx); err != nil {
					return err
				}
				fmt.Printf("catalog table %s ready\n", cat.Table())
				return nil
			})
		},
	})
	return cmd
}
