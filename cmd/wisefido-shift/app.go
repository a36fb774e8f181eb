package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-shift/internal/clock"
	"wisefido-shift/internal/config"
	"wisefido-shift/internal/domain"
	"wisefido-shift/internal/events"
	"wisefido-shift/internal/notifier"
	"wisefido-shift/internal/reminder"
	"wisefido-shift/internal/repository"
	"wisefido-shift/internal/service"
	"wisefido-shift/internal/store"
	"wisefido-shift/owl-common/database"
	"wisefido-shift/owl-common/logger"
	"wisefido-shift/owl-common/mqtt"
	rediscommon "wisefido-shift/owl-common/redis"
)

// app explicitly constructed collaborators shared by the commands
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	loc    *time.Location

	db    *sql.DB
	redis *redis.Client
	mqtt  *mqtt.Client

	storeKind string
	shifts    repository.ShiftStore
	contacts  repository.ContactDirectory
	events    events.Publisher
	history   *store.HistoryCache
	notifier  notifier.Notifier
	clock     clock.Clock
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-shift")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, loc: loc, clock: clock.Real{}, events: events.Nop{}}

	if err := a.initStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.initRedis(ctx)
	if err := a.initNotifier(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// initStores uses Postgres when enabled and reachable, in-memory stores otherwise.
func (a *app) initStores(ctx context.Context) error {
	if a.cfg.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &a.cfg.Database)
		if err == nil {
			repo := repository.NewPostgresShiftRepository(db, a.loc, a.logger)
			if err := repo.EnsureSchema(ctx); err != nil {
				_ = db.Close()
				return fmt.Errorf("ensure schema: %w", err)
			}
			a.db = db
			a.shifts = repo
			a.contacts = repository.NewPostgresContactDirectory(db)
			a.storeKind = "postgres"
			a.logger.Info("DB enabled for wisefido-shift")
			return nil
		}
		a.logger.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
	}

	a.shifts = repository.NewMemoryShiftRepository()
	a.contacts = repository.NewMemoryContactDirectory(a.demoContacts()...)
	a.storeKind = "memory"
	a.logger.Info("Running on in-memory stores", zap.Int("contacts", len(a.cfg.Reminder.Contacts)))
	return nil
}

// demoContacts reminder recipients configured for memory mode
func (a *app) demoContacts() []domain.Contact {
	out := make([]domain.Contact, 0, len(a.cfg.Reminder.Contacts))
	for _, c := range a.cfg.Reminder.Contacts {
		out = append(out, domain.Contact{OwnerID: c.OwnerID, Username: c.Name, Email: c.Email})
	}
	return out
}

// initRedis wires event publishing and the history cache; both are optional.
func (a *app) initRedis(ctx context.Context) {
	if !a.cfg.RedisEnabled {
		return
	}
	client := rediscommon.NewRedisClient(&a.cfg.Redis)
	if err := rediscommon.Ping(ctx, client); err != nil {
		a.logger.Warn("Redis unavailable, events and history cache disabled", zap.Error(err))
		_ = client.Close()
		return
	}
	a.redis = client
	a.history = store.NewHistoryCache(store.NewRedisKV(client), a.cfg.HistoryCacheTTL, a.logger)
	if a.cfg.Events.Enabled {
		a.events = events.NewStreamPublisher(client, a.cfg.Events.Stream, a.cfg.Events.MaxLen, a.loc, a.logger)
	}
}

func (a *app) initNotifier() error {
	rc := a.cfg.Reminder
	switch rc.Notifier {
	case "smtp":
		a.notifier = notifier.NewSMTPNotifier(a.cfg.SMTP, a.logger)
	case "webhook":
		a.notifier = notifier.NewWebhookNotifier(rc.WebhookURL, rc.WebhookToken, rc.NotifierTimeout, a.logger)
	case "mqtt":
		client, err := mqtt.NewClient(&a.cfg.MQTT, rc.NotifierTimeout)
		if err != nil {
			return fmt.Errorf("connect mqtt notifier: %w", err)
		}
		a.mqtt = client
		a.notifier = notifier.NewMQTTNotifier(client, rc.MQTTTopic, a.logger)
	case "log":
		a.notifier = notifier.NewLogNotifier(a.logger)
	default:
		return fmt.Errorf("unsupported notifier driver: %s", rc.Notifier)
	}
	return nil
}

func (a *app) shiftService() *service.ShiftService {
	return service.NewShiftService(a.shifts, a.clock, a.logger, service.ShiftOptions{
		Location:     a.loc,
		Events:       a.events,
		MaxRetries:   a.cfg.Shift.MaxRetries,
		StoreTimeout: a.cfg.Shift.StoreTimeout,
	})
}

func (a *app) sweeper() *reminder.Sweeper {
	return reminder.NewSweeper(a.shifts, a.contacts, a.notifier, a.clock, a.logger, reminder.Options{
		Interval:        a.cfg.Reminder.Interval,
		Cooldown:        a.cfg.Reminder.Cooldown,
		NotifierTimeout: a.cfg.Reminder.NotifierTimeout,
		StoreTimeout:    a.cfg.Shift.StoreTimeout,
		MaxRetries:      a.cfg.Shift.MaxRetries,
		Events:          a.events,
	})
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	_ = rediscommon.Close(a.redis)
	_ = database.Close(a.db)
	_ = a.logger.Sync()
}
