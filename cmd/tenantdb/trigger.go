package main

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantdb/internal/discovery"
)

func triggerCmd(g *globals) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Publica un pedido de discovery en Redis (todas las instancias en modo redis)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return errors.New("redis.addr no configurado")
			}
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer rdb.Close()

			n, err := discovery.Publish(cmd.Context(), rdb, cfg.Discovery.Channel, reason)
			if err != nil {
				return err
			}
			fmt.Printf("published to %s (%d subscribers)\n", cfg.Discovery.Channel, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cli", "Texto libre incluido en el mensaje")
	return cmd
}
