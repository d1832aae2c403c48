// Package app wires the reminder core together: config, logging,
// storage, scheduling, detection, dispatch, the push channel, and the
// local API.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"medassist/internal/config"
	"medassist/internal/detector"
	"medassist/internal/dispatch"
	"medassist/internal/eventbus"
	"medassist/internal/httpapi"
	"medassist/internal/reminder"
	"medassist/internal/sched"
	"medassist/internal/schedule"
	"medassist/internal/session"
	"medassist/internal/store"
	"medassist/internal/transport"
	"medassist/internal/transport/telegram"
	"medassist/internal/ui"
	"medassist/pkg/logx"
)

const pruneTask = "confirmations-prune"

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	hub  *ui.Hub

	db   store.Store
	repo *schedule.Repository

	tasks *sched.Service
	sess  *session.Manager

	tracker *reminder.Tracker
	records *reminder.Records
	rem     *reminder.Service

	adapter *telegram.Adapter // nil when push is not configured
	queue   *dispatch.PushQueue
	disp    *dispatch.Service
	det     *detector.Service
	api     *httpapi.Service

	retentionDays int
	updates       chan transport.Update

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	hub := ui.NewHub(bus)

	var sink logx.LineSink
	if cfg.Logging.UI.Enabled {
		sink = hub
	}
	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		UI: logx.UIConfig{
			Enabled:    cfg.Logging.UI.Enabled,
			MinLevel:   cfg.Logging.UI.MinLevel,
			RatePerSec: cfg.Logging.UI.RatePerSec,
		},
	}, sink)
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	// Storage: sqlite when configured, otherwise a process-local store
	// (reminders fire, nothing survives a restart).
	var db store.Store
	if cfg.Storage != nil {
		sc, err := mapStorageConfig(cfg.Storage)
		if err != nil {
			return nil, err
		}
		db, err = store.Open(sc, log.With(logx.String("comp", "store")))
		if err != nil {
			if !errors.Is(err, store.ErrDisabled) {
				return nil, err
			}
			db = nil
		} else {
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}
	persistent := db != nil
	if db == nil {
		db = store.NewMemory()
		log.Warn("no storage configured; schedule and history are in-memory only")
	}

	repo := schedule.NewRepository(db, log.With(logx.String("comp", "schedule")), bus)

	tasks := sched.New(sched.Config{
		Workers:  cfg.Scheduler.Workers,
		Timezone: cfg.Scheduler.Timezone,
	}, log.With(logx.String("comp", "sched")))

	sess := session.NewManager(bus)

	tracker := reminder.NewTracker()
	records := reminder.NewRecords(db, log.With(logx.String("comp", "records")))
	rem := reminder.NewService(tracker, records, hub, tasks, log.With(logx.String("comp", "reminder")))
	rem.SetDefaultSnooze(cfg.Reminders.SnoozeMinutes)

	// Push channel (optional).
	var (
		adapter *telegram.Adapter
		queue   *dispatch.PushQueue
	)
	if cfg.Push != nil && cfg.Push.Enabled {
		pollTimeout, err := config.ParseDurationOrDefault("push.poll_timeout", cfg.Push.PollTimeout, 10*time.Second)
		if err != nil {
			return nil, err
		}
		adapter, err = telegram.New(telegram.Config{
			Token:       cfg.Push.TelegramToken,
			PollTimeout: pollTimeout,
		}, log.With(logx.String("comp", "push")))
		if err != nil {
			return nil, fmt.Errorf("push transport: %w", err)
		}
		pc, err := mapPushConfig(cfg.Push)
		if err != nil {
			return nil, err
		}
		queue = dispatch.NewPushQueue(pc, adapter, log.With(logx.String("comp", "push")), bus)
	}

	var links dispatch.LinkSource
	if persistent || adapter != nil {
		links = db
	}
	var osn dispatch.OSNotifier
	if cmd := strings.TrimSpace(cfg.Reminders.OSNotifyCommand); cmd != "none" {
		if n := dispatch.NewCommandNotifier(cmd, log.With(logx.String("comp", "osnotify"))); n.Granted() {
			osn = n
		}
	}
	disp := dispatch.NewService(records, tracker, hub, osn, queue, links, log.With(logx.String("comp", "dispatch")))
	rem.BindRedeliver(disp.Redeliver)

	pollInterval, err := config.ParseDurationOrDefault("detector.poll_interval", cfg.Detector.PollInterval, 10*time.Second)
	if err != nil {
		return nil, err
	}
	det := detector.NewService(repo, sess, tasks, disp, log.With(logx.String("comp", "detector")), bus, pollInterval)

	apiCfg, err := mapHTTPConfig(&cfg.HTTP)
	if err != nil {
		return nil, err
	}
	periods := schedule.DefaultPeriodTimes()
	if p := cfg.Reminders.Periods; p != nil {
		if strings.TrimSpace(p.Morning) != "" {
			periods.Morning = p.Morning
		}
		if strings.TrimSpace(p.Afternoon) != "" {
			periods.Afternoon = p.Afternoon
		}
		if strings.TrimSpace(p.Night) != "" {
			periods.Night = p.Night
		}
	}
	api := httpapi.New(apiCfg, repo, rem, sess, hub, bus, db, periods, log.With(logx.String("comp", "api")))

	cfgm.SetValidator(func(ctx context.Context, c *config.Config) error {
		return validate(c)
	})

	return &App{
		cfgPath:       cfgPath,
		cfgm:          cfgm,
		log:           log,
		logs:          logs,
		bus:           bus,
		hub:           hub,
		db:            db,
		repo:          repo,
		tasks:         tasks,
		sess:          sess,
		tracker:       tracker,
		records:       records,
		rem:           rem,
		adapter:       adapter,
		queue:         queue,
		disp:          disp,
		det:           det,
		api:           api,
		retentionDays: retentionDays(cfg.Reminders),
		updates:       make(chan transport.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.tasks.Start(runCtx)
	a.repo.Refresh(runCtx)

	a.rem.RearmSnoozed(runCtx)

	if a.retentionDays > 0 {
		days := a.retentionDays
		err := a.tasks.AddCron(pruneTask, "30 3 * * *", func(c context.Context) error {
			n, err := a.records.Prune(c, time.Now(), days)
			if err != nil {
				return err
			}
			if n > 0 {
				a.log.Info("old confirmations pruned", logx.Int64("count", n))
			}
			return nil
		})
		if err != nil {
			a.log.Warn("prune job register failed", logx.Err(err))
		}
	}

	if a.queue != nil {
		a.queue.Start(runCtx)
	}
	if a.adapter != nil {
		if err := a.adapter.Start(runCtx, a.updates); err != nil {
			cancel()
			return err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pumpUpdates(runCtx)
		}()
		a.initPushStatus(runCtx)
	} else {
		a.hub.SetPushStatus("Push notifications not configured")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watchPushResults(runCtx)
	}()

	a.det.Start(runCtx)

	if err := a.api.Start(runCtx); err != nil {
		cancel()
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(runCtx, sub)
	}()

	a.notifySystemd(runCtx)

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.runCancel == nil {
		return nil
	}
	a.log.Info("stopping")
	a.runCancel()
	a.runCancel = nil

	step := func(name string, max time.Duration, fn func(context.Context)) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer func() {
				if r := recover(); r != nil {
					a.log.Warn("panic in stop step", logx.String("name", name), logx.Any("panic", r))
				}
			}()
			fn(stepCtx)
		}()
		select {
		case <-done:
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name))
		}
	}

	step("api", 2*time.Second, func(c context.Context) { a.api.Stop(c) })
	step("detector", time.Second, func(c context.Context) { a.det.Stop() })
	if a.queue != nil {
		step("push.queue", 2*time.Second, func(c context.Context) { a.queue.Stop(c) })
	}
	if a.adapter != nil {
		step("push.transport", 2*time.Second, func(c context.Context) { _ = a.adapter.Stop(c) })
	}
	step("sched", 2*time.Second, func(c context.Context) { a.tasks.Stop(c) })
	step("store", time.Second, func(c context.Context) { _ = a.db.Close() })

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}

// pumpUpdates routes inbound push-channel traffic: the /start link
// handshake and the confirm/snooze button callbacks.
func (a *App) pumpUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-a.updates:
			if !ok {
				return
			}
			switch up.Kind {
			case transport.UpdateMessage:
				a.handleMessage(ctx, up.Message)
			case transport.UpdateCallback:
				a.handleCallback(ctx, up.Callback)
			}
		}
	}
}

func (a *App) handleMessage(ctx context.Context, m *transport.Message) {
	if m == nil {
		return
	}
	if !strings.HasPrefix(strings.TrimSpace(m.Text), telegram.LinkCommand) {
		return
	}
	if err := a.db.SavePushLink(ctx, store.PushLink{ChatID: m.ChatID, LinkedAt: time.Now()}); err != nil {
		a.log.Error("push link save failed", logx.Err(err))
		return
	}
	a.hub.SetPushStatus("Push notifications active ✅")
	a.log.Info("push target linked", logx.Int64("chat_id", m.ChatID))
	_ = a.adapter.SendText(ctx, transport.Target{ChatID: m.ChatID},
		"✅ You're all set. Medication reminders will arrive here.")
}

func (a *App) handleCallback(ctx context.Context, cb *transport.Callback) {
	if cb == nil {
		return
	}
	var ack string
	switch cb.Action {
	case transport.ActionConfirm:
		if err := a.rem.Confirm(ctx, cb.PayloadID); err != nil {
			ack = "Already handled."
		} else {
			ack = "Marked as taken ✅"
		}
	case transport.ActionSnooze:
		if err := a.rem.Snooze(ctx, cb.PayloadID, 0); err != nil {
			ack = "Already handled."
		} else {
			ack = fmt.Sprintf("Snoozed for %d minutes ⏳", a.rem.DefaultSnooze())
		}
	default:
		return
	}
	if err := a.adapter.AnswerCallback(ctx, cb.ID, ack); err != nil {
		a.log.Debug("callback answer failed", logx.Err(err))
	}
}

func (a *App) initPushStatus(ctx context.Context) {
	_, linked, err := a.db.GetPushLink(ctx)
	switch {
	case err != nil:
		a.hub.SetPushStatus("Push status unknown")
	case linked:
		a.hub.SetPushStatus("Push notifications active ✅")
	default:
		a.hub.SetPushStatus("Send /start to the bot to enable push")
	}
}

// watchPushResults reflects push delivery outcomes into the UI status
// line.
func (a *App) watchPushResults(ctx context.Context) {
	ch, unsub := a.bus.Subscribe(32)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Type {
			case eventbus.TypePushSent:
				a.hub.SetPushStatus("Push notifications active ✅")
			case eventbus.TypePushFailed:
				a.hub.SetPushStatus("Push delivery failing ⚠️")
			}
		}
	}
}

// reloadLoop applies hot-reloadable config (logging). Structural
// sections require a restart and are only reported.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
				UI: logx.UIConfig{
					Enabled:    cfg.Logging.UI.Enabled,
					MinLevel:   cfg.Logging.UI.MinLevel,
					RatePerSec: cfg.Logging.UI.RatePerSec,
				},
			})
			a.log.Info("config reloaded")
			a.log.Warn("storage/push/http changes take effect on restart")
		}
	}
}

// notifySystemd reports readiness and services the watchdog when the
// process runs as a systemd unit. No-op elsewhere.
func (a *App) notifySystemd(ctx context.Context) {
	if ok, _ := daemon.SdNotify(false, daemon.SdNotifyReady); !ok {
		return
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}
