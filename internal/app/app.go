// Package app assembles the bot: config, logging, storage, the Telegram
// notifier, the delivery pipeline, the reminder engine, and maintenance jobs.
package app

import (
	"context"
	"errors"

	"sleepbot/internal/config"
	"sleepbot/internal/delivery"
	"sleepbot/internal/eventbus"
	"sleepbot/internal/maintenance"
	"sleepbot/internal/reminder"
	rtsup "sleepbot/internal/runtime/supervisor"
	"sleepbot/internal/storage"
	"sleepbot/internal/transport/telegram"
	logx "sleepbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	pipeline *delivery.Pipeline
	engine   *reminder.Service
	maint    *maintenance.Service

	policyUnsub func()
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}
	notifier, err := telegram.New(telegram.Config{Token: token},
		log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()

	dc, err := mapDeliveryConfig(cfg)
	if err != nil {
		return nil, err
	}
	pipeline := delivery.New(dc, notifier, store, bus,
		log.With(logx.String("comp", "delivery")))

	engine := reminder.New(mapReminderConfig(cfg), store, pipeline,
		log.With(logx.String("comp", "reminder")))

	maint := maintenance.New(mapMaintenanceConfig(cfg), store,
		log.With(logx.String("comp", "maintenance")))

	return &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		pipeline: pipeline,
		engine:   engine,
		maint:    maint,
	}, nil
}

// RunPassNow triggers one reminder pass outside the schedule. It works on an
// app that was never started, which is what the run-pass CLI command relies on.
func (a *App) RunPassNow(ctx context.Context) bool { return a.engine.RunPassNow(ctx) }

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validateConfig)
	a.cfgm.OnChange(a.applyConfig)
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	if a.cfgm.Get().Reminders.DisableOnUnreachable {
		a.policyUnsub = a.watchUnreachable()
	}

	a.engine.Start(a.sup.Context())
	if err := a.maint.Start(a.sup.Context()); err != nil {
		return err
	}

	a.log.Info("started")
	return nil
}

// applyConfig pushes a committed reload into the running services. Storage
// driver and telegram token changes require a restart; everything else is hot.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))
	a.engine.Apply(mapReminderConfig(cfg))
	a.log.Info("config applied")
}

func (a *App) Stop(ctx context.Context) error {
	if a.policyUnsub != nil {
		a.policyUnsub()
	}
	var first error
	if a.engine != nil {
		if err := a.engine.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	if a.maint != nil {
		if err := a.maint.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	if a.sup != nil {
		a.sup.Cancel()
		if err := a.sup.Wait(ctx); err != nil && first == nil && !errors.Is(err, context.Canceled) {
			first = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return first
}
