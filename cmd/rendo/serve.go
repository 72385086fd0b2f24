package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nyiyui.ca/hato/rendo/config"
	"nyiyui.ca/hato/rendo/conn"
	"nyiyui.ca/hato/rendo/ctl"
	"nyiyui.ca/hato/rendo/journal"
	"nyiyui.ca/hato/rendo/kujo"
	"nyiyui.ca/hato/rendo/watch"
)

func newServeCmd() *cobra.Command {
	var configPath string
	var console bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("log-level") && !flags.Changed("log-format") {
				if err := setupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
					return err
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			var in io.Reader
			if console {
				in = cmd.InOrStdin()
			}
			return serve(ctx, cfg, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	cmd.Flags().BoolVar(&console, "console", true, "read operator input from stdin")
	return cmd
}

func openChannel(cfg config.Config) (conn.Channel, error) {
	if cfg.Serial.Path == "" {
		zap.S().Warnw("no serial port configured, commands go nowhere")
		return conn.NewVirtual(), nil
	}
	return conn.OpenSerial(cfg.Serial.Path, cfg.Serial.Baud)
}

func serve(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error {
	ch, err := openChannel(cfg)
	if err != nil {
		return err
	}
	defer ch.Close()
	j, err := journal.Open(cfg.Journal.Path, time.Duration(cfg.Journal.TTL))
	if err != nil {
		return err
	}
	defer j.Close()
	conf := ctl.Conf{
		Station:   cfg.Station,
		Channel:   ch,
		Journal:   j,
		Reconcile: cfg.Reconcile,
	}
	if cfg.LockReleaseDelay != nil {
		d := time.Duration(*cfg.LockReleaseDelay)
		conf.LockReleaseDelay = &d
	}
	c, err := ctl.New(conf)
	if err != nil {
		return err
	}

	var w *watch.Watcher
	if cfg.Watch.Enabled && len(cfg.Station) > 0 {
		w, err = watch.New(cfg.Station, time.Duration(cfg.Watch.Debounce), func(ctx context.Context) error {
			_, err := c.Reload(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	// every goroutine in g has returned before the deferred closes run
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(c.Run(gctx)) })
	if w != nil {
		g.Go(func() error { return ignoreCanceled(w.Run(gctx)) })
	}

	if cfg.Listen != "" {
		k := kujo.NewServer(c, j)
		defer k.Close()
		srv := &http.Server{Addr: cfg.Listen, Handler: k}
		g.Go(func() error {
			zap.S().Infow("listening", "addr", cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("kujo: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if in != nil {
		go runConsole(gctx, c, in, out)
	}

	<-gctx.Done()
	zap.S().Infow("shutting down")
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runConsole feeds stdin to the controller a line at a time and prints the feedback.
func runConsole(ctx context.Context, c *ctl.Controller, in io.Reader, out io.Writer) {
	s := bufio.NewScanner(in)
	for s.Scan() {
		fb, err := c.Input(ctx, s.Text())
		if err != nil {
			zap.S().Warnw("console", "err", err)
			return
		}
		for _, f := range fb {
			fmt.Fprintln(out, f)
		}
	}
	if err := s.Err(); err != nil {
		zap.S().Warnw("console", "err", err)
	}
}
