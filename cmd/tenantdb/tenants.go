package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantdb/internal/app"
	"github.com/dropDatabas3/tenantdb/internal/controlplane"
	"github.com/dropDatabas3/tenantdb/internal/infra/tenantsql"
)

func tenantsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Operaciones sobre el catálogo de tenants",
	}
	cmd.AddCommand(tenantsListCmd(g), tenantsPutCmd(g), tenantsDeleteCmd(g))
	return cmd
}

func tenantsListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lista las filas activas del catálogo (sin passwords)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), g, func(ctx context.Context, a *app.App) error {
				if a.Catalog == nil {
					return errors.New("catalog.kind=none: no hay catálogo")
				}
				rows, err := a.Catalog.List(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSOURCE\tERROR")
				for _, r := range rows {
					errStr := ""
					if r.Err != nil {
						errStr = r.Err.Error()
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Source.Redacted(), errStr)
				}
				return tw.Flush()
			})
		},
	}
}

// writer: solo el catálogo fs admite escrituras desde la CLI.
func writer(a *app.App) (controlplane.Writer, error) {
	w, ok := a.Catalog.(controlplane.Writer)
	if !ok {
		return nil, fmt.Errorf("catalog.kind=%s no admite escrituras", a.Config.Catalog.Kind)
	}
	return w, nil
}

func tenantsPutCmd(g *globals) *cobra.Command {
	var (
		name, driver, url, user, password string
		maxPool                           int
		acquire                           time.Duration
	)
	cmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Crea o actualiza un tenant en el catálogo fs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), g, func(ctx context.Context, a *app.App) error {
				w, err := writer(a)
				if err != nil {
					return err
				}
				row := controlplane.Row{
					ID:   tenantsql.TenantID(args[0]),
					Name: name,
					Source: tenantsql.Source{
						Driver: driver, URL: url, Username: user, Password: password,
						MaxPoolSize: maxPool, AcquireTimeout: acquire,
					},
				}
				if err := row.Source.Validate(); err != nil {
					return err
				}
				if err := w.Put(ctx, row); err != nil {
					return err
				}
				fmt.Printf("tenant %s saved\n", row.ID)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Nombre legible")
	f.StringVar(&driver, "driver", "", "Driver: pg|mysql|sqlite")
	f.StringVar(&url, "url", "", "URL/DSN de la base")
	f.StringVar(&user, "username", "", "Usuario (opcional)")
	f.StringVar(&password, "password", "", "Password (se cifra si TENANTDB_SECRETBOX_KEY está seteada)")
	f.IntVar(&maxPool, "max-pool-size", 0, "Máximo de conexiones (0 = default)")
	f.DurationVar(&acquire, "acquire-timeout", 0, "Timeout de acquire (0 = default)")
	_ = cmd.MarkFlagRequired("driver")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func tenantsDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Da de baja un tenant del catálogo fs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), g, func(ctx context.Context, a *app.App) error {
				w, err := writer(a)
				if err != nil {
					return err
				}
				if err := w.Delete(ctx, tenantsql.TenantID(args[0])); err != nil {
					return err
				}
				fmt.Printf("tenant %s deleted\n", args[0])
				return nil
			})
		},
	}
}
