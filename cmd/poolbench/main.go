// Copyright (C) MongoDB, Inc. 2023-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// poolbench runs a synthetic workload against a pool of in-memory connections and prints the pool's report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ikmak/agingpool/internal/conntest"
	"github.com/ikmak/agingpool/internal/randutil"
	"github.com/ikmak/agingpool/options"
	"github.com/ikmak/agingpool/pool"
	"github.com/ikmak/agingpool/report"
)

type benchConfig struct {
	configFile string
	envFile    string
	workers    int
	iterations int
	nested     int
	hold       time.Duration
	failRate   float64
	format     string
	traces     bool
	httpAddr   string
	verbose    bool
}

func main() {
	var cfg benchConfig
	flag.StringVar(&cfg.configFile, "config", "", "TOML file with pool options")
	flag.StringVar(&cfg.envFile, "env", "", "dotenv file loaded before reading AGINGPOOL_* variables")
	flag.IntVar(&cfg.workers, "workers", 8, "number of concurrent workers")
	flag.IntVar(&cfg.iterations, "iterations", 100, "checkouts per worker")
	flag.IntVar(&cfg.nested, "nested", 1, "connections each worker holds at once")
	flag.DurationVar(&cfg.hold, "hold", time.Millisecond, "average time a connection is held per checkout")
	flag.Float64Var(&cfg.failRate, "fail-rate", 0, "fraction of connection attempts that fail")
	flag.StringVar(&cfg.format, "format", "text", "report format: text, json or debug")
	flag.BoolVar(&cfg.traces, "traces", false, "capture and print allocation traces")
	flag.StringVar(&cfg.httpAddr, "http", "", "serve the report on this address after the run")
	flag.BoolVar(&cfg.verbose, "v", false, "print the effective pool options")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// loadOptions merges the pool options from, in increasing precedence: defaults, the config file, the environment and
// the command line.
func loadOptions(cfg benchConfig) (*options.PoolOptions, error) {
	if cfg.envFile != "" {
		if err := options.LoadEnvFile(cfg.envFile); err != nil {
			return nil, err
		}
	}
	var fileOpts *options.PoolOptions
	if cfg.configFile != "" {
		var err error
		if fileOpts, err = options.LoadFile(cfg.configFile); err != nil {
			return nil, err
		}
	}
	envOpts, err := options.FromEnv()
	if err != nil {
		return nil, err
	}
	flagOpts := options.Pool().SetName("poolbench")
	if cfg.traces {
		flagOpts.SetCaptureAllocationTraces(true)
	}
	return options.MergePoolOptions(flagOpts, fileOpts, envOpts), nil
}

func run(ctx context.Context, cfg benchConfig, out io.Writer) error {
	if cfg.workers < 1 || cfg.iterations < 1 || cfg.nested < 1 {
		return errors.New("workers, iterations and nested must be at least 1")
	}
	po, err := loadOptions(cfg)
	if err != nil {
		return err
	}
	if cfg.verbose {
		pretty.Fprintf(os.Stderr, "%# v\n", po)
	}

	rng := randutil.NewLockedRand(randutil.CryptoSeed())
	connector := &conntest.MockConnector{}
	if cfg.failRate > 0 {
		connector.ConnectFn = func(ctx context.Context) (*conntest.MockConnection, error) {
			if rng.Float64() < cfg.failRate {
				return nil, conntest.ErrInjected
			}
			return &conntest.MockConnection{ID: uint64(rng.Int63())}, nil
		}
	}

	p, err := pool.New[*conntest.MockConnection](connector, po)
	if err != nil {
		return err
	}
	defer p.Close()

	start := time.Now()
	failures, err := workload(ctx, p, cfg, rng)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d workers x %d checkouts in %s, %d failed\n",
		cfg.workers, cfg.iterations, time.Since(start).Round(time.Millisecond), failures)

	r := report.Build(p, time.Now())
	switch cfg.format {
	case "text":
		err = report.WriteText(out, r, cfg.traces)
	case "json":
		err = report.WriteJSON(out, r, false)
	case "debug":
		report.WriteDebug(out, r)
	default:
		err = errors.Errorf("unknown format %q", cfg.format)
	}
	if err != nil || cfg.httpAddr == "" {
		return err
	}

	srv := &http.Server{Addr: cfg.httpAddr, Handler: report.NewHandler(p, nil)}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	fmt.Fprintf(os.Stderr, "serving report on http://%s/stats\n", cfg.httpAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// jitter returns a random duration in [d/2, 3d/2).
func jitter(rng *randutil.LockedRand, d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rng.Int63n(int64(d)))
}

// workload runs the checkout loop of every worker and returns the number of checkouts that failed because a
// connection could not be opened. Any other error stops the run.
func workload(ctx context.Context, p *pool.Pool[*conntest.MockConnection], cfg benchConfig, rng *randutil.LockedRand) (int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	failures := make([]int64, cfg.workers)

	for w := 0; w < cfg.workers; w++ {
		w := w
		g.Go(func() error {
			owner := p.NewOwner(fmt.Sprintf("worker-%d", w))
			held := make([]*conntest.MockConnection, 0, cfg.nested)
			for i := 0; i < cfg.iterations; i++ {
				for len(held) < cfg.nested {
					c, err := p.AcquireN(gctx, owner, cfg.nested)
					if errors.Is(err, conntest.ErrInjected) {
						failures[w]++
						break
					}
					if err != nil {
						return errors.Wrapf(err, "worker %d", w)
					}
					held = append(held, c)
				}
				time.Sleep(jitter(rng, cfg.hold))
				for _, c := range held {
					p.Release(owner, c)
				}
				held = held[:0]
			}
			return nil
		})
	}
	err := g.Wait()

	var total int64
	for _, f := range failures {
		total += f
	}
	return total, err
}
