package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ratio1/kvcache_sdk_go/internal/logging"
	"github.com/Ratio1/kvcache_sdk_go/pkg/kvcache"
)

type app struct {
	redisURL    string
	verbose     bool
	timeout     time.Duration
	concurrency int

	logger *zap.Logger
	client *kvcache.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "kvcache-cli",
		Short: "Inspect and populate a JSON read-through cache",
		Long: `kvcache-cli talks to the Redis instance named by --url or REDIS_URL.
Without either it falls back to an in-memory store (KVCACHE_RUNTIME_MODE=mock),
optionally seeded from KVCACHE_MOCK_SEED.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.shutdown()
		},
	}

	root.PersistentFlags().StringVar(&a.redisURL, "url", "", "Redis URL (overrides REDIS_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 5*time.Second, "Operation timeout")

	getCmd := &cobra.Command{
		Use:   "get <key>...",
		Short: "Fetch keys and decode them as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  a.runGet,
	}
	getCmd.Flags().IntVar(&a.concurrency, "concurrency", 8, "Maximum parallel lookups")

	var ttl time.Duration
	setCmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSet(cmd, args, ttl)
		},
	}
	setCmd.Flags().DurationVar(&ttl, "ttl", 0, "Expire the key after this duration")

	root.AddCommand(
		getCmd,
		setCmd,
		&cobra.Command{
			Use:   "del <key>...",
			Short: "Delete keys",
			Args:  cobra.MinimumNArgs(1),
			RunE:  a.runDel,
		},
		&cobra.Command{
			Use:   "ttl <key>",
			Short: "Show the remaining lifetime of a key",
			Args:  cobra.ExactArgs(1),
			RunE:  a.runTTL,
		},
		&cobra.Command{
			Use:   "expire <key> <duration>",
			Short: "Set a TTL on an existing key",
			Args:  cobra.ExactArgs(2),
			RunE:  a.runExpire,
		},
		&cobra.Command{
			Use:   "ping",
			Short: "Check connectivity",
			Args:  cobra.NoArgs,
			RunE:  a.runPing,
		},
	)
	return root
}

func (a *app) init(ctx context.Context) error {
	logger, err := logging.New(a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if a.redisURL != "" {
		a.client, err = kvcache.New(ctx, a.redisURL, kvcache.WithLogger(logger))
		if err != nil {
			return err
		}
		logger.Debug("Connected", zap.String("mode", kvcache.ModeRedis))
		return nil
	}

	client, mode, err := kvcache.NewFromEnv(ctx, kvcache.WithLogger(logger))
	if err != nil {
		return err
	}
	a.client = client
	logger.Debug("Connected", zap.String("mode", mode))
	return nil
}

func (a *app) shutdown() {
	if a.client != nil {
		if err := a.client.Close(); err != nil && a.logger != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *app) runGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range kvcache.LookupMany[json.RawMessage](ctx, a.client, args, a.concurrency) {
		switch res.Status {
		case kvcache.StatusHit:
			fmt.Fprintf(out, "%s\t%s\t%s\n", res.Key, res.Status, res.Value)
		case kvcache.StatusUnavailable:
			failed++
			fmt.Fprintf(out, "%s\t%s\t%v\n", res.Key, res.Status, res.Err)
		default:
			fmt.Fprintf(out, "%s\t%s\n", res.Key, res.Status)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, len(args))
	}
	return nil
}

func (a *app) runSet(cmd *cobra.Command, args []string, ttl time.Duration) error {
	key, payload := args[0], []byte(args[1])
	if !json.Valid(payload) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	if err := a.client.Set(ctx, key, payload, &kvcache.SetOptions{TTL: ttl}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func (a *app) runDel(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	n, err := a.client.Delete(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}

func (a *app) runTTL(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	ttl, err := a.client.TTL(ctx, args[0])
	switch {
	case errors.Is(err, kvcache.ErrNotFound):
		fmt.Fprintln(cmd.OutOrStdout(), "missing")
		return nil
	case err != nil:
		return err
	case ttl == kvcache.NoExpiry:
		fmt.Fprintln(cmd.OutOrStdout(), "no expiry")
	default:
		fmt.Fprintln(cmd.OutOrStdout(), ttl)
	}
	return nil
}

func (a *app) runExpire(cmd *cobra.Command, args []string) error {
	ttl, err := time.ParseDuration(args[1])
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", args[1], err)
	}
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	ok, err := a.client.Expire(ctx, args[0], ttl)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "missing")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}

func (a *app) runPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := a.withTimeout(cmd.Context())
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "PONG")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
