package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"jobspool/internal/api"
	"jobspool/internal/config"
	"jobspool/internal/events"
	"jobspool/internal/history"
	"jobspool/internal/launcher"
	"jobspool/internal/scheduler"
	"jobspool/internal/store"
	logx "jobspool/pkg/logx"
)

const defaultAPIAddr = "127.0.0.1:8640"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./jobspool.yaml", "path to config file (yaml or json)")
	flag.Parse()

	// Modes:
	//   run   - submit the config's one-shot jobs, drain, exit
	//   serve - long-running: HTTP API + recurring submissions until signal
	mode := flag.Arg(0)
	if mode == "" {
		mode = "run"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()
	mgr.SetLogger(log)
	mgr.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	svc, runFor, err := build(cfg, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	// Config-declared jobs: one-shots submit now, scheduled ones recur in
	// serve mode.
	var recurring []scheduler.Template
	for _, j := range cfg.Jobs {
		if j.Every != "" {
			recurring = append(recurring, scheduler.Template{
				Name:     j.Name,
				Command:  j.Command,
				Priority: j.Priority,
				Schedule: j.Every,
			})
			continue
		}
		if err := svc.Submit(ctx, j.Name, j.Command, j.Priority); err != nil {
			log.Warn("startup submission failed", logx.String("job", j.Name), logx.Err(err))
		}
	}

	switch mode {
	case "run":
		if len(recurring) > 0 {
			log.Warn("recurring jobs are ignored in run mode", logx.Int("count", len(recurring)))
		}
		err = svc.Run(ctx, runFor)
	case "serve":
		err = serve(ctx, cfg, mgr, logSvc, svc, recurring, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (want run or serve)\n", mode)
		os.Exit(2)
	}
	if err != nil && err != context.Canceled {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

// build assembles the scheduler service and its collaborators from config.
func build(cfg *config.Config, log logx.Logger) (*scheduler.Service, time.Duration, error) {
	pollInterval, err := config.ParseDurationOrDefault("scheduler.poll_interval", cfg.Scheduler.PollInterval, time.Second)
	if err != nil {
		return nil, 0, err
	}
	runFor, err := config.ParseDurationField("scheduler.run_for", cfg.Scheduler.RunFor)
	if err != nil {
		return nil, 0, err
	}

	st := store.New(cfg.Scheduler.HistorySize)
	l := launcher.New(cfg.Scheduler.LogDir, log.With(logx.String("component", "launcher")))
	svc := scheduler.New(scheduler.Config{
		MaxConcurrent:    cfg.Scheduler.MaxConcurrent,
		PollInterval:     pollInterval,
		HistorySize:      cfg.Scheduler.HistorySize,
		HistoryTail:      cfg.Scheduler.HistoryTail,
		LaunchRatePerSec: cfg.Scheduler.LaunchRatePerSec,
	}, st, l, log.With(logx.String("component", "scheduler")))

	if cfg.History != nil {
		busy, err := config.ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout)
		if err != nil {
			return nil, 0, err
		}
		sink, err := history.Open(history.Config{
			Driver:      cfg.History.Driver,
			Path:        cfg.History.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("component", "history")))
		if err != nil {
			return nil, 0, err
		}
		if sink != nil {
			svc.SetHistorySink(sink)
		}
	}

	if cfg.Events.NatsURL != "" {
		pub, err := events.Connect(cfg.Events.NatsURL, log.With(logx.String("component", "events")))
		if err != nil {
			return nil, 0, err
		}
		svc.SetPublisher(pub)
	}

	return svc, runFor, nil
}

func serve(ctx context.Context, cfg *config.Config, mgr *config.Manager, logSvc *logx.Service, svc *scheduler.Service, recurring []scheduler.Template, log logx.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return svc.Serve(ctx) })

	if len(recurring) > 0 {
		stop, err := svc.StartRecurring(ctx, recurring)
		if err != nil {
			return err
		}
		defer stop()
	}

	if cfg.API.Enabled {
		addr := cfg.API.Addr
		if addr == "" {
			addr = defaultAPIAddr
		}
		srv := &http.Server{
			Addr:        addr,
			Handler:     api.NewRouter(svc, log.With(logx.String("component", "api"))),
			ReadTimeout: 10 * time.Second,
			IdleTimeout: time.Minute,
		}
		g.Go(func() error {
			log.Info("api listening", logx.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shCtx)
		})
	}

	// Watch the config file; hot-apply logging changes.
	g.Go(func() error { return mgr.Watch(ctx) })
	updates := mgr.Subscribe(4)
	defer mgr.Unsubscribe(updates)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case c, ok := <-updates:
				if !ok {
					return nil
				}
				logSvc.Apply(logx.Config{
					Level:   c.Logging.Level,
					Console: c.Logging.Console,
					File: logx.FileConfig{
						Enabled: c.Logging.File.Enabled,
						Path:    c.Logging.File.Path,
					},
				})
				log.Info("logging config reloaded", logx.String("level", c.Logging.Level))
			}
		}
	})

	return g.Wait()
}
