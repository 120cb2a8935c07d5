package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"dunswatch/internal/config"
	"dunswatch/internal/notify"
	"dunswatch/internal/runtime/supervisor"
	"dunswatch/internal/scheduler"
	"dunswatch/internal/scrape"
	"dunswatch/internal/storage"
	"dunswatch/internal/store/supabase"
	"dunswatch/internal/watch"
	logx "dunswatch/pkg/logx"
)

// App wires the daemon together: config, logging, the storefront
// fetcher, the Supabase backend, the Telegram broadcaster, the local
// store and the trigger scheduler.
type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	fetcher *scrape.Fetcher
	backend *supabase.Client
	store   storage.Store
	bot     *notify.Bot
	alerts  *notify.Service
	runner  *watch.Runner
	sched   *scheduler.Service

	watchJobID string
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	scCfg, err := mapScrapeConfig(cfg)
	if err != nil {
		return nil, err
	}
	fetcher, err := scrape.New(scCfg, log.With(logx.String("comp", "scrape")))
	if err != nil {
		return nil, err
	}

	sbCfg, err := mapSupabaseConfig(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := supabase.New(sbCfg, log.With(logx.String("comp", "supabase")))
	if err != nil {
		return nil, err
	}

	stCfg, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(stCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("local store enabled", logx.String("driver", stCfg.Driver))
	}

	botCfg, err := mapBotConfig(cfg)
	if err != nil {
		return nil, err
	}
	bot, err := notify.NewBot(botCfg, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	alerts := notify.NewService(mapNotifyConfig(cfg), bot, log.With(logx.String("comp", "notify")))

	runner := watch.NewRunner(watch.Config{BaseURL: cfg.Scrape.BaseURL},
		fetcher, backend, alerts, notify.FormatNewProducts, store,
		log.With(logx.String("comp", "watch")))

	sched := scheduler.New(mapSchedulerConfig(cfg), log.With(logx.String("comp", "scheduler")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		fetcher: fetcher,
		backend: backend,
		store:   store,
		bot:     bot,
		alerts:  alerts,
		runner:  runner,
		sched:   sched,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal
// error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// RunOnce executes a single watch cycle and returns its error. Used by
// the -once flag; the scheduler never starts in that mode.
func (a *App) RunOnce(ctx context.Context) error {
	cfg := a.cfgm.Get()
	_, timeout, err := mapSchedule(cfg)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.runner.Run(runCtx)
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		if _, _, err := mapSchedule(cfg); err != nil {
			return err
		}
		return nil
	})

	cfg := a.cfgm.Get()

	if a.sched.Enabled() {
		a.sched.Start(a.sup.Context())
		spec, timeout, err := mapSchedule(cfg)
		if err != nil {
			return err
		}
		id, err := a.sched.Add("watch.cycle", spec, timeout, a.runner.TryRun)
		if err != nil {
			return fmt.Errorf("scheduler.spec: %w", err)
		}
		a.watchJobID = id
		a.log.Info("watch schedule registered", logx.String("spec", spec), logx.Duration("run_timeout", timeout))

		a.sup.Go0("cycle.summary", func(c context.Context) {
			t := time.NewTicker(time.Hour)
			defer t.Stop()
			since := time.Now()
			for {
				select {
				case <-c.Done():
					return
				case <-t.C:
					runs, failed := summarizeHistory(a.sched.History(), since)
					since = time.Now()
					a.log.Info("cycle summary",
						logx.Int("runs", runs),
						logx.Int("failed", failed),
						logx.Int64("skipped_total", int64(a.runner.Skips())))
				}
			}
		})
	} else {
		a.log.Warn("scheduler disabled; no watch cycles will run")
	}

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := cfg
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	// The fsnotify loop self-heals internally; GoRestart covers the
	// case where it gives up entirely (e.g. inotify exhaustion), so a
	// broken watcher degrades hot reload instead of cancelling the app.
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	}, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	a.startSdNotify()

	a.log.Info("app started")
	return nil
}

// applyConfig propagates a validated config to every live component.
// In-flight watch cycles keep the settings they started with.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	a.logs.Apply(mapLoggingConfig(next))

	if scCfg, err := mapScrapeConfig(next); err != nil {
		a.log.Warn("invalid scrape config; keeping previous", logx.Err(err))
	} else if err := a.fetcher.Apply(scCfg); err != nil {
		a.log.Warn("scrape config rejected; keeping previous", logx.Err(err))
	}

	if sbCfg, err := mapSupabaseConfig(next); err != nil {
		a.log.Warn("invalid supabase config; keeping previous", logx.Err(err))
	} else if err := a.backend.Apply(sbCfg); err != nil {
		a.log.Warn("supabase config rejected; keeping previous", logx.Err(err))
	}

	a.alerts.Apply(mapNotifyConfig(next))
	a.runner.Apply(watch.Config{BaseURL: next.Scrape.BaseURL})

	if prev.Telegram.Token != next.Telegram.Token {
		a.log.Warn("telegram token changed; restart required for changes to take effect")
	}
	if prev.Storage != next.Storage && (prev.Storage == nil || next.Storage == nil || *prev.Storage != *next.Storage) {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	prevEnabled := a.sched.Enabled()
	a.sched.Apply(mapSchedulerConfig(next))
	nextEnabled := next.Scheduler.Enabled

	if prevEnabled && !nextEnabled {
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
		return
	}
	if !prevEnabled && nextEnabled {
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
	}

	if !nextEnabled {
		return
	}

	spec, timeout, err := mapSchedule(next)
	if err != nil {
		a.log.Warn("invalid schedule; keeping previous", logx.Err(err))
		return
	}
	if a.watchJobID == "" {
		id, err := a.sched.Add("watch.cycle", spec, timeout, a.runner.TryRun)
		if err != nil {
			a.log.Warn("schedule registration failed", logx.Err(err))
			return
		}
		a.watchJobID = id
		a.log.Info("watch schedule registered", logx.String("spec", spec), logx.Duration("run_timeout", timeout))
		return
	}
	prevSpec, prevTimeout, perr := mapSchedule(prev)
	if perr == nil && prevSpec == spec && prevTimeout == timeout {
		return
	}
	if err := a.sched.Reschedule(a.watchJobID, spec, timeout); err != nil {
		a.log.Warn("reschedule failed; keeping previous", logx.Err(err))
		return
	}
	a.log.Info("watch schedule updated", logx.String("spec", spec), logx.Duration("run_timeout", timeout))
}

// summarizeHistory counts the cycles (and failures) that started after
// the given time.
func summarizeHistory(items []scheduler.HistoryItem, since time.Time) (runs, failed int) {
	for _, it := range items {
		if !it.Started.After(since) {
			continue
		}
		runs++
		if it.Error != "" {
			failed++
		}
	}
	return runs, failed
}

// startSdNotify reports readiness to systemd and feeds its watchdog
// when one is configured. Both are no-ops outside a systemd unit.
func (a *App) startSdNotify() {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					a.log.Debug("sd_notify watchdog failed", logx.Err(err))
				}
			}
		}
	})
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.sup.Cancel()

	// Bounded shutdown steps; one stalled component must not hold the
	// whole stop hostage.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("scheduler", 2*time.Second, func(c context.Context) error {
		a.sched.Stop(c)
		return nil
	})
	step("supervisor", 3*time.Second, func(c context.Context) error {
		return a.sup.Wait(c)
	})
	if a.store != nil {
		step("storage", 2*time.Second, func(context.Context) error {
			return a.store.Close()
		})
	}
	a.log.Info("stopped")
	step("logging", time.Second, func(context.Context) error {
		return a.logs.Close()
	})
	return nil
}
