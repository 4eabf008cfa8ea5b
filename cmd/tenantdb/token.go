package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ajwt "github.com/dropDatabas3/tenantdb/internal/jwt"
)

func tokenCmd(g *globals) *cobra.Command {
	var (
		sub string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un bearer token para las rutas /admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			tok, exp, err := ajwt.NewIssuer(cfg.Admin.Issuer, cfg.Admin.JWTSecret).Sign(sub, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			fmt.Printf("# expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "admin", "Subject del token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Validez del token")
	return cmd
}
