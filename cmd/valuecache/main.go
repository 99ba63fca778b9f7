// Command valuecache trains a state-value table by self-play on an m,n,k board,
// keeping hot values in a write-back cache in front of a memory, SQLite or
// Postgres store, and serves Prometheus metrics while it runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/valuecache/cache"
	"github.com/IvanBrykalov/valuecache/internal/config"
	pmet "github.com/IvanBrykalov/valuecache/metrics/prom"
	"github.com/IvanBrykalov/valuecache/policy"
	"github.com/IvanBrykalov/valuecache/state"
	"github.com/IvanBrykalov/valuecache/store"
	"github.com/IvanBrykalov/valuecache/store/memstore"
	"github.com/IvanBrykalov/valuecache/store/postgres"
	"github.com/IvanBrykalov/valuecache/store/sqlite"
)

func main() {
	// ---- Flags ----
	var (
		cfgPath     = flag.String("config", "", "path to a YAML config (default ./valuecache.yaml if present)")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr, overrides metrics.addr")
		episodes    = flag.Int("episodes", 0, "self-play episodes, overrides policy.episodes")
		seed        = flag.Int64("seed", 0, "random seed (0 = time-based)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *episodes > 0 {
		cfg.Policy.Episodes = *episodes
	}

	log := newLogger(cfg.Log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *seed, log); err != nil {
		log.Error("valuecache failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seed int64, log *slog.Logger) error {
	st, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("closing store", slog.Any("error", err))
		}
	}()

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, cfg.Metrics.Namespace, "cache", nil)
	if cfg.Metrics.Addr != "" {
		http.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics: serving", slog.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	// ---- Build cache ----
	shape := state.Shape{Rows: cfg.Cache.Rows, Cols: cfg.Cache.Cols}
	c := cache.New(st, cache.Options{
		Capacity:          cfg.Cache.Capacity,
		Shape:             shape,
		LoadSize:          cfg.Cache.LoadSize,
		Default:           cfg.Cache.DefaultValue,
		FlushInterval:     cfg.Cache.FlushInterval,
		StoreTimeout:      cfg.Cache.StoreTimeout,
		LookupConcurrency: cfg.Cache.LookupConcurrency,
		Metrics:           metrics,
		Logger:            log,
	})
	defer func() {
		// ctx may already be cancelled by the signal that ended the run.
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			log.Error("final flush", slog.Any("error", err))
		}
	}()

	if n, err := c.Load(ctx); err != nil {
		log.Warn("warm start skipped", slog.Any("error", err))
	} else {
		log.Info("warm start", slog.Int("loaded", n))
	}

	// ---- Self-play ----
	popt := policy.Options{
		Gamma:   cfg.Policy.Gamma,
		Tau:     cfg.Policy.Tau,
		Default: cfg.Cache.DefaultValue,
		Seed:    seed,
	}
	if popt.Tau == 0 {
		popt.Tau = -1 // configured as zero: never explore
	}
	x := policy.New(c, popt)
	popt.Method = policy.Min
	if popt.Seed != 0 {
		popt.Seed++
	}
	o := policy.New(c, popt)

	var wins [3]int // O, draw, X
	start := time.Now()
	for i := 0; i < cfg.Policy.Episodes; i++ {
		ep, err := playEpisode(ctx, shape, x, o)
		switch {
		case errors.Is(err, context.Canceled):
			log.Info("interrupted", slog.Int("episodes", i))
			return report(log, wins, start, c)
		case errors.Is(err, cache.ErrStoreUnavailable):
			// The write stayed in memory; the evictee is retried on the next eviction or flush.
			log.Warn("store unavailable during episode", slog.Int("episode", i), slog.Any("error", err))
			continue
		case err != nil:
			return err
		}
		wins[ep.winner+1]++
		log.Debug("episode",
			slog.Int("n", i),
			slog.Int("winner", int(ep.winner)),
			slog.Int("moves", ep.moves),
			slog.Int("explored", ep.explored))
	}
	return report(log, wins, start, c)
}

func report(log *slog.Logger, wins [3]int, start time.Time, c *cache.Coordinator) error {
	log.Info("self-play done",
		slog.Int("x_wins", wins[2]),
		slog.Int("o_wins", wins[0]),
		slog.Int("draws", wins[1]),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("resident", c.Len()),
		slog.Int("dirty", c.Dirty()))
	return nil
}

// schemaStore is a store whose schema the command creates on startup.
type schemaStore interface {
	store.Store
	InitSchema(ctx context.Context) error
}

func openStore(ctx context.Context, sc config.StoreConfig, log *slog.Logger) (schemaStore, error) {
	var (
		st  schemaStore
		err error
	)
	switch sc.Driver {
	case config.DriverMemory:
		st = memstore.New()
	case config.DriverSQLite:
		st, err = sqlite.Open(ctx, sc.DSN, sqlite.WithLogger(log))
	case config.DriverPostgres:
		st, err = postgres.Open(ctx, sc.DSN, postgres.WithLogger(log))
	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
