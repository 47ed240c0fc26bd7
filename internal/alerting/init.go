package alerting

import (
	"context"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/notification"
	"github.com/edupresencia/fichai/internal/validation"
	"github.com/go-redis/redis/v8"
)

// Dependencies are the collaborators the alerting subsystem is built on.
type Dependencies struct {
	Rules          repository.AlertRuleRepository
	Communications repository.CommunicationRepository
	Employees      repository.EmployeeRepository
	// Email is the outbound transport; nil disables email delivery.
	Email notification.EmailSender
	// Redis backs the dedup window when alerting.dedup is "redis".
	Redis *redis.Client
}

// Runtime holds the running alerting subsystem.
type Runtime struct {
	Engine     *Engine
	Store      *RuleStore
	Bus        *AlertEventBus
	Dispatcher *Dispatcher
	Scheduler  *Scheduler
	log        logger.Logger
}

// Initialize builds the alerting subsystem from settings, loads the enabled
// rules and starts the event bus, the scheduler and the history cleanup.
// Callers must Stop the returned runtime.
func Initialize(ctx context.Context, settings *conf.Settings, deps Dependencies, log logger.Logger) (*Runtime, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.Module("alerting")
	cfg := settings.Alerting

	var cooldowns CooldownStore
	switch cfg.Dedup {
	case "redis":
		if deps.Redis == nil {
			return nil, errors.Newf("alerting.dedup is redis but no redis client is configured").
				Category(errors.CategoryValidation).
				Component("alerting").
				Build()
		}
		cooldowns = NewRedisCooldownStore(deps.Redis)
	default:
		cooldowns = NewMemoryCooldownStore()
	}

	dispatcher := NewDispatcher(
		DispatcherConfig{Email: settings.Email, Language: cfg.Language},
		deps.Email,
		deps.Employees,
		deps.Communications,
		log,
	)
	scheduler := NewScheduler(cfg.SchedulerTick.Std(), cfg.MaxRepeats, log)
	engine := NewEngine(deps.Rules, dispatcher, log,
		WithScheduler(scheduler),
		WithCooldownStore(cooldowns),
	)

	if err := engine.RefreshRules(ctx); err != nil {
		return nil, err
	}

	store := NewRuleStore(deps.Rules, validation.New(), log)
	store.OnChange(func(ctx context.Context) {
		if err := engine.RefreshRules(ctx); err != nil {
			log.Warn("failed to refresh alert rules", logger.Error(err))
		}
	})

	if err := engine.StartHistoryCleanup(cfg.HistoryCleanupSchedule, cfg.HistoryRetention.Std()); err != nil {
		return nil, err
	}

	bus := NewAlertEventBus(cfg.EventBufferSize, log)
	bus.Subscribe(func(event *TriggerEvent) {
		engine.HandleEvent(context.WithoutCancel(ctx), event)
	})
	scheduler.Start(context.WithoutCancel(ctx))

	log.Info("alerting engine initialized",
		logger.Int("rules_loaded", engine.RuleCount()),
		logger.String("dedup", cfg.Dedup),
		logger.Bool("email", deps.Email != nil && settings.Email.Enabled))

	return &Runtime{
		Engine:     engine,
		Store:      store,
		Bus:        bus,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		log:        log,
	}, nil
}

// Stop drains the event bus, then stops the scheduler and the cleanup job.
func (r *Runtime) Stop() {
	r.Bus.Stop()
	r.Engine.Stop()
	r.log.Info("alerting engine stopped")
}
