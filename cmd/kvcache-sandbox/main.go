package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/Ratio1/kvcache_sdk_go/internal/devseed"
	"github.com/Ratio1/kvcache_sdk_go/internal/logging"
)

type config struct {
	addr     string
	seed     string
	failWith string
}

func main() {
	var cfg config
	flag.StringVar(&cfg.addr, "addr", "127.0.0.1:6379", "listen address")
	flag.StringVar(&cfg.seed, "seed", "", "path to YAML/JSON seed file")
	flag.StringVar(&cfg.failWith, "fail-with", "", "reply to every command with this error (e.g. \"ERR injected\")")
	verbose := flag.Bool("v", false, "enable verbose logging")
	flag.Parse()

	logger, err := logging.New(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, logger); err != nil {
		logger.Fatal("sandbox failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, out io.Writer, logger *zap.Logger) error {
	srv, err := start(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	logger.Info("kvcache-sandbox listening", zap.String("addr", srv.Addr()), zap.Int("keys", len(srv.Keys())))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "export KVCACHE_RUNTIME_MODE=redis")
	fmt.Fprintf(out, "export REDIS_URL=redis://%s\n", srv.Addr())
	fmt.Fprintln(out)

	<-ctx.Done()
	logger.Info("kvcache-sandbox shutting down")
	return nil
}

func start(cfg config) (*miniredis.Miniredis, error) {
	srv := miniredis.NewMiniRedis()
	if err := srv.StartAddr(cfg.addr); err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.addr, err)
	}
	if path := strings.TrimSpace(cfg.seed); path != "" {
		entries, err := devseed.Load(path)
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("load seed: %w", err)
		}
		if err := apply(srv, entries); err != nil {
			srv.Close()
			return nil, fmt.Errorf("apply seed: %w", err)
		}
	}
	if cfg.failWith != "" {
		srv.SetError(cfg.failWith)
	}
	return srv, nil
}

func apply(srv *miniredis.Miniredis, entries []devseed.Entry) error {
	for _, e := range entries {
		if err := srv.Set(e.Key, string(e.Value)); err != nil {
			return fmt.Errorf("set %q: %w", e.Key, err)
		}
		if e.TTL > 0 {
			srv.SetTTL(e.Key, e.TTL)
		}
	}
	return nil
}
