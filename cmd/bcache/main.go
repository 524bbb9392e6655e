// Command bcache exercises a block cache over configured devices.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/bcache"
	"github.com/hupe1980/bcache/resource"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bcache",
		Usage: "drive a sharded block cache over memory, file and object-store devices",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{envVarPrefix + "_CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			benchCommand(),
			catCommand(),
			putCommand(),
			exportCommand(),
		},
	}
}

// env is what every command runs against.
type env struct {
	cfg     *Config
	cache   *bcache.Cache
	devices *devices
	logger  *bcache.Logger
	metrics *bcache.BasicMetricsCollector
}

// withCache loads the configuration, opens the devices and the cache, runs
// fn and tears everything down. A cache fault is turned into an error.
func withCache(fn func(e *env, ctx *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) (err error) {
		cfg, err := LoadConfig(ctx.String("config"))
		if err != nil {
			return err
		}

		level, _ := cfg.Level()
		logger := bcache.NewTextLogger(level)

		rc := resource.NewController(resource.Config{
			MemoryLimitBytes:   cfg.Resource.MemoryLimitBytes,
			MaxInflightIO:      cfg.Resource.MaxInflightIO,
			IOLimitBytesPerSec: cfg.Resource.IOLimitBytesPerSec,
		})

		ds, err := openDevices(ctx.Context, cfg, rc)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := ds.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing devices: %w", cerr)
			}
		}()

		basic := &bcache.BasicMetricsCollector{}
		collectors := teeCollector{basic}

		if cfg.MetricsAddr != "" {
			reg := prometheus.NewRegistry()
			collectors = append(collectors, NewPrometheusCollector(reg))
			stop := serveMetrics(cfg.MetricsAddr, reg, logger)
			defer stop()
		}

		c, err := bcache.New(ds.table,
			bcache.WithNumBuffers(cfg.Buffers),
			bcache.WithNumShards(cfg.Shards),
			bcache.WithLogger(logger),
			bcache.WithMetricsCollector(collectors),
			bcache.WithResourceController(rc),
		)
		if err != nil {
			return err
		}
		defer c.Close()

		defer func() {
			r := recover()
			if r == nil {
				return
			}
			f, ok := bcache.IsFault(r)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("cache fault: %w", f)
		}()

		return fn(&env{
			cfg:     cfg,
			cache:   c,
			devices: ds,
			logger:  logger,
			metrics: basic,
		}, ctx)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *bcache.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// blockArgs parses the DEV and BLOCKNO positional arguments.
func blockArgs(ctx *cli.Context) (dev, blockno uint32, err error) {
	if ctx.NArg() != 2 {
		return 0, 0, fmt.Errorf("expected DEV BLOCKNO, got %d arguments", ctx.NArg())
	}
	d, err := strconv.ParseUint(ctx.Args().Get(0), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("device id: %w", err)
	}
	b, err := strconv.ParseUint(ctx.Args().Get(1), 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("block number: %w", err)
	}
	return uint32(d), uint32(b), nil
}
