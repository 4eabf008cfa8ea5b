// Command tenantdb: routing de conexiones database-per-tenant.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tenantdb/internal/config"
	"github.com/dropDatabas3/tenantdb/internal/observability/logger"
	_ "github.com/dropDatabas3/tenantdb/internal/store/adapters/all"
)

var version = "dev"

type globals struct {
	configPath string
	envFile    string
}

func (g *globals) load() (*config.Config, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("env file %s: %w", g.envFile, err)
		}
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "tenantdb"})
	return cfg, nil
}

func main() {
	g := &globals{
		configPath: os.Getenv("TENANTDB_CONFIG"),
		envFile:    ".env",
	}

	root := &cobra.Command{
		Use:           "tenantdb",
		Short:         "Routing de conexiones database-per-tenant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", g.configPath, "Archivo YAML de configuración (env TENANTDB_CONFIG)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", g.envFile, "Archivo .env a cargar si existe")

	root.AddCommand(
		serveCmd(g),
		discoverCmd(g),
		tenantsCmd(g),
		catalogCmd(g),
		triggerCmd(g),
		encryptCmd(),
		tokenCmd(g),
	)

	err := root.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
