package commands

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"

	"github.com/arnold/habitgrid-api/internal/config"
	"github.com/arnold/habitgrid-api/internal/database"
	"github.com/arnold/habitgrid-api/internal/docstore"
	"github.com/arnold/habitgrid-api/internal/habits"
	"github.com/arnold/habitgrid-api/internal/locale"
	"github.com/arnold/habitgrid-api/internal/logger"
	"github.com/arnold/habitgrid-api/internal/notify"
	"github.com/arnold/habitgrid-api/internal/services"
)

// runtime is everything both commands need: storage, scheduler and the
// habit service wired to them.
type runtime struct {
	cfg       *config.Config
	log       *logger.Logger
	store     docstore.Store
	scheduler *services.CronScheduler
	habits    *habits.Service
	closers   []func() error
}

func bootstrap(ctx context.Context, cfg *config.Config) (*runtime, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	rt := &runtime{cfg: cfg, log: log}

	if lang := locale.NormalizeLanguage(cfg.DefaultLanguage); lang != "" {
		locale.Default = lang
	}

	if err := database.Connect(cfg); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var app *firebase.App
	if cfg.FCMServiceAccount != "" || cfg.DocStore == "firestore" {
		app, err = services.InitFirebase(ctx, cfg.FCMServiceAccount, cfg.FirestoreProject)
		if err != nil {
			if cfg.DocStore == "firestore" {
				return nil, err
			}
			log.Warn("firebase unavailable", "error", err)
		}
	}
	push := services.InitPush(ctx, app, database.DB, log)

	if rt.store, err = rt.openStore(ctx, app); err != nil {
		rt.Close()
		return nil, err
	}

	loc := cfg.Location()
	rt.scheduler = services.NewCronScheduler(database.DB, push, loc, log)
	rt.habits = habits.New(rt.store, notify.NewManager(rt.scheduler, log), log, habits.WithLocation(loc))
	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context, app *firebase.App) (docstore.Store, error) {
	switch rt.cfg.DocStore {
	case "firestore":
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		rt.log.Info("using firestore document store", "project", rt.cfg.FirestoreProject)
		return docstore.NewFirestore(client, rt.log), nil
	case "memory":
		rt.log.Warn("using in-memory document store, data is lost on exit")
		return docstore.NewMemory(), nil
	}

	store := docstore.NewSQL(database.DB, rt.log)
	if rt.cfg.RedisAddr != "" {
		bus, err := docstore.NewRedisBus(rt.log, rt.cfg.RedisAddr, rt.cfg.RedisChannel)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		if err := store.AttachBus(ctx, bus); err != nil {
			bus.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		rt.closers = append(rt.closers, bus.Close)
	}
	return store, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.log.Warn("close failed", "error", err)
		}
	}
	rt.closers = nil
	rt.log.Sync()
}
