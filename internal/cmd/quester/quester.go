// Package quester parses quester command flags and runs quest operations
// against a museum backend.
package quester

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	entrypoint "github.com/EV081/mysto-mobile-sub000/internal/platform/cmd"
	apperrors "github.com/EV081/mysto-mobile-sub000/internal/platform/errors"
	"github.com/EV081/mysto-mobile-sub000/internal/quest"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/api"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/cache"
	cachesqlite "github.com/EV081/mysto-mobile-sub000/internal/quest/cache/sqlite"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/initiator"
	"github.com/EV081/mysto-mobile-sub000/internal/quest/registry"
	"github.com/EV081/mysto-mobile-sub000/internal/telemetry"
	telemetrysqlite "github.com/EV081/mysto-mobile-sub000/internal/telemetry/sqlite"
)

// Config holds quester command configuration.
type Config struct {
	BackendURL    string `env:"MYSTO_BACKEND_URL" envDefault:"http://localhost:8090"`
	AuthToken     string `env:"MYSTO_AUTH_TOKEN"`
	CachePath     string `env:"MYSTO_CACHE_PATH" envDefault:"quester-cache.db"`
	TelemetryPath string `env:"MYSTO_TELEMETRY_PATH"`

	Op       string
	MuseumID int64
	At       string
	ObjectID int64
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "The museum backend base URL")
	fs.StringVar(&cfg.AuthToken, "token", cfg.AuthToken, "The bearer token sent to the backend")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "The goal cache database path")
	fs.StringVar(&cfg.TelemetryPath, "telemetry", cfg.TelemetryPath, "The telemetry database path (empty disables recording)")
	fs.StringVar(&cfg.Op, "op", "status", "The operation to run: start, status, refresh, or found")
	fs.Int64Var(&cfg.MuseumID, "museum", cfg.MuseumID, "The museum id to operate on")
	fs.StringVar(&cfg.At, "at", cfg.At, "The device location as lat,lon (empty when unavailable)")
	fs.Int64Var(&cfg.ObjectID, "object", cfg.ObjectID, "The cultural object id for the found operation")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes a single quest operation and prints the resulting state.
func Run(ctx context.Context, cfg Config) error {
	return RunWithOutput(ctx, cfg, os.Stdout)
}

// RunWithOutput executes a single quest operation writing results to out.
func RunWithOutput(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.MuseumID <= 0 {
		return apperrors.New(apperrors.CodeMuseumIDInvalid, "a positive -museum id is required")
	}
	loc, err := parseLocation(cfg.At)
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceQuester, func(ctx context.Context) error {
		emitter, closeTelemetry, err := openEmitter(cfg.TelemetryPath)
		if err != nil {
			return err
		}
		defer closeTelemetry()

		store, err := cachesqlite.Open(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open goal cache: %w", err)
		}
		defer store.Close()

		var clientOpts []api.Option
		if cfg.AuthToken != "" {
			clientOpts = append(clientOpts, api.WithAuthToken(cfg.AuthToken))
		}
		client := api.NewClient(cfg.BackendURL, clientOpts...)
		engine := initiator.New(client, cache.NewSilent(store, emitter), initiator.WithEmitter(emitter))
		reg := registry.New(client, engine, registry.WithEmitter(emitter))
		defer reg.Close()

		state, err := runOp(ctx, reg, cfg, loc)
		if err != nil {
			return err
		}
		printState(out, state, quest.Completion(state))
		return nil
	})
}

func runOp(ctx context.Context, reg *registry.Registry, cfg Config, loc *quest.Location) (quest.State, error) {
	switch cfg.Op {
	case "start":
		return reg.StartIfNeeded(ctx, cfg.MuseumID, loc)
	case "status", "refresh":
		return reg.Refresh(ctx, cfg.MuseumID)
	case "found":
		if cfg.ObjectID <= 0 {
			return quest.State{}, apperrors.New(apperrors.CodeUnknown, "a positive -object id is required for found")
		}
		return reg.MarkFound(cfg.MuseumID, cfg.ObjectID), nil
	default:
		return quest.State{}, apperrors.New(apperrors.CodeUnknown, fmt.Sprintf("unknown operation %q", cfg.Op))
	}
}

func openEmitter(path string) (*telemetry.Emitter, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	store, err := telemetrysqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open telemetry store: %w", err)
	}
	return telemetry.NewEmitter(store), func() { _ = store.Close() }, nil
}

func parseLocation(at string) (*quest.Location, error) {
	at = strings.TrimSpace(at)
	if at == "" {
		return nil, nil
	}
	parts := strings.Split(at, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("location must be lat,lon: %q", at)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("parse longitude: %w", err)
	}
	return &quest.Location{Latitude: lat, Longitude: lon}, nil
}

func printState(out io.Writer, state quest.State, completion float64) {
	fmt.Fprintf(out, "museum %d: %s", state.MuseumID, state.Status)
	if state.GoalID > 0 {
		fmt.Fprintf(out, " goal=%d", state.GoalID)
	}
	if len(state.TargetObjects) > 0 {
		fmt.Fprintf(out, " progress=%d/%d (%.0f%%)", len(state.Found), len(state.TargetObjects), completion*100)
	}
	if state.ErrorMessage != "" {
		fmt.Fprintf(out, " message=%q", state.ErrorMessage)
	}
	fmt.Fprintln(out)
}
