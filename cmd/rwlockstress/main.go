// Command rwlockstress runs the reentrant read/write lock stress test.
//
//	rwlockstress [contenders trials variant] [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thetarby/rrwlock/internal/config"
	"github.com/thetarby/rrwlock/internal/stress"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var (
		metricsAddr string
		procs       int
		dev         bool
	)

	cmd := &cobra.Command{
		Use:   "rwlockstress [contenders trials variant]",
		Short: "Stress a reentrant read/write lock with concurrent readers and writers",
		Long: `rwlockstress starts the given number of reader and writer goroutines per
trial against one lock, joins them, and fails as soon as any of them observes
a broken mutual exclusion or a trial does not finish in time.

The positional form mirrors the flags --contenders, --trials and --variant.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 3 {
				return fmt.Errorf("accepts 0 or 3 args, received %d", len(args))
			}
			return nil
		},
		SilenceUsage: true,
	}
	flags := config.Register(cmd.Flags())
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().IntVar(&procs, "procs", 0, "GOMAXPROCS for the run, 0 keeps the default")
	cmd.Flags().BoolVar(&dev, "dev", false, "human readable development logging")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		for i, name := range []string{"contenders", "trials", "variant"} {
			if i < len(args) {
				if err := cmd.Flags().Set(name, args[i]); err != nil {
					return fmt.Errorf("argument %s: %w", name, err)
				}
			}
		}
		cfg, err := flags.Resolve(cmd.Flags())
		if err != nil {
			return err
		}

		log, err := newLogger(dev)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if procs > 0 {
			defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(procs))
		}
		return run(cmd.Context(), cfg, metricsAddr, log)
	}
	return cmd
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg stress.Config, metricsAddr string, log *zap.Logger) error {
	lock, err := stress.NewLock(cfg.Variant)
	if err != nil {
		return err
	}
	defer lock.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := stress.NewMetrics(reg)

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:    metricsAddr,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		log.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	log.Info("starting",
		zap.String("variant", cfg.Variant),
		zap.Int("contenders", cfg.Contenders),
		zap.Int("trials", cfg.Trials),
		zap.Int("depth", cfg.Depth),
		zap.Bool("upgrades", cfg.Upgrades),
	)
	h := stress.New(lock, cfg, stress.WithLogger(log), stress.WithMetrics(metrics))
	if _, err := h.Run(ctx); err != nil {
		log.Error("stress failed", zap.String("variant", cfg.Variant), zap.Error(err))
		return err
	}
	return nil
}
