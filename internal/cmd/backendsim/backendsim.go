// Package backendsim parses backend simulator flags and starts the HTTP
// service used for local quest development.
package backendsim

import (
	"context"
	"flag"
	"fmt"

	"github.com/EV081/mysto-mobile-sub000/internal/backendsim"
	"github.com/EV081/mysto-mobile-sub000/internal/catalog"
	entrypoint "github.com/EV081/mysto-mobile-sub000/internal/platform/cmd"
)

// Config holds backend simulator command configuration.
type Config struct {
	Addr        string `env:"MYSTO_BACKEND_SIM_ADDR" envDefault:":8090"`
	CatalogPath string `env:"MYSTO_BACKEND_SIM_CATALOG"`
	AuthToken   string `env:"MYSTO_BACKEND_SIM_TOKEN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The simulator listen address")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "The museum catalog YAML path")
	fs.StringVar(&cfg.AuthToken, "token", cfg.AuthToken, "The bearer token required from clients (empty disables auth)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the backend simulator HTTP service.
func Run(ctx context.Context, cfg Config) error {
	if cfg.CatalogPath == "" {
		return fmt.Errorf("a museum catalog path is required")
	}
	museums, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	var opts []backendsim.Option
	if cfg.AuthToken != "" {
		opts = append(opts, backendsim.WithAuthToken(cfg.AuthToken))
	}
	sim := backendsim.New(museums, opts...)

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBackendSim, func(ctx context.Context) error {
		return backendsim.Run(ctx, cfg.Addr, sim)
	})
}
