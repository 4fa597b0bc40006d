package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/UltraSive/ttlkv/internal/cleaner"
	"github.com/UltraSive/ttlkv/internal/datastore"
	"github.com/UltraSive/ttlkv/internal/handler"
	"github.com/UltraSive/ttlkv/internal/info"
	"github.com/UltraSive/ttlkv/internal/store"
	"github.com/UltraSive/ttlkv/internal/transport"
	"github.com/UltraSive/ttlkv/internal/upstream"
)

func main() {
	// Optional; a missing .env is not an error.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "ttlkv",
		Usage: "TTL-aware key-value store over an embedded engine",
		Commands: []*cli.Command{
			runCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: ":8080", Usage: "listen address", EnvVars: []string{"TTLKV_BIND"}},
			&cli.StringFlag{Name: "path", Value: "./data", Usage: "database directory", EnvVars: []string{"TTLKV_PATH"}},
			&cli.StringFlag{Name: "backend", Value: "rocksdb", Usage: "storage backend: rocksdb, leveldb or leveldb-mem", EnvVars: []string{"TTLKV_BACKEND"}},
			&cli.DurationFlag{Name: "sweep-interval", Value: cleaner.DefaultInterval, Usage: "delay between expiry sweeps", EnvVars: []string{"TTLKV_SWEEP_INTERVAL"}},
			&cli.IntFlag{Name: "sweep-chunk", Value: cleaner.DefaultChunkSize, Usage: "max keys reclaimed per sweep", EnvVars: []string{"TTLKV_SWEEP_CHUNK"}},
			&cli.StringFlag{Name: "upstream", Usage: "base URL of an upstream instance for read-through", EnvVars: []string{"TTLKV_UPSTREAM"}},
			&cli.DurationFlag{Name: "upstream-ttl", Value: 30 * time.Second, Usage: "TTL for values filled from the upstream (0 = no expiry)", EnvVars: []string{"TTLKV_UPSTREAM_TTL"}},
		},
		Action: run,
	}
}

func openDatastore(backend, path string) (datastore.Datastore, error) {
	switch backend {
	case "rocksdb":
		return datastore.NewRocksDB(path)
	case "leveldb":
		return datastore.NewLevelDB(path)
	case "leveldb-mem":
		return datastore.NewLevelDBMem()
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func run(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	backend := c.String("backend")
	ds, err := openDatastore(backend, c.String("path"))
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer ds.Close()

	reg := prometheus.NewRegistry()
	s := store.New(ds,
		store.WithLogger(log.Named("store")),
		store.WithMetrics(store.NewMetrics(reg)),
	)

	opts := []handler.Option{handler.WithLogger(log.Named("api"))}
	if base := c.String("upstream"); base != "" {
		opts = append(opts, handler.WithUpstream(upstream.New(base, 5*time.Second), c.Duration("upstream-ttl")))
	}
	h := handler.New(s, info.Collect(backend), opts...)

	srv := &http.Server{
		Addr:    c.String("bind"),
		Handler: transport.NewHTTPRouter(h, reg, log.Named("http")),
	}

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	cleaner.New(s, c.Duration("sweep-interval"), c.Int("sweep-chunk"), log.Named("cleaner")).Start(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", srv.Addr, "backend", backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-sig:
	}

	log.Info("shutting down")
	stopSweeps()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("shutdown incomplete", "err", err)
	}
	return nil
}
