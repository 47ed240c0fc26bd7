package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edupresencia/fichai/internal/alerting"
	"github.com/edupresencia/fichai/internal/api"
	apiv2 "github.com/edupresencia/fichai/internal/api/v2"
	"github.com/edupresencia/fichai/internal/auth"
	"github.com/edupresencia/fichai/internal/datastore"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/notification"
	"github.com/edupresencia/fichai/internal/observability/metrics"
	"github.com/edupresencia/fichai/internal/telemetry"
	"github.com/edupresencia/fichai/internal/trigger"
	"github.com/edupresencia/fichai/internal/validation"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const redisPingTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the alert engine, the MQTT subscriber and the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	settings, log := a.settings, a.log
	defer func() { _ = log.Sync() }()

	reporter, err := telemetry.New(settings.Telemetry, version, log)
	if err != nil {
		return err
	}
	reporter.Install()
	defer reporter.Close()

	db, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = datastore.Close(db) }()

	email, err := notification.NewEmailSender(ctx, settings.Email, log)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if settings.Alerting.Dedup == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// Cooldown checks fail open, so the service can start without redis.
			log.Warn("redis is not reachable", logger.String("addr", settings.Redis.Addr), logger.Error(err))
		}
	}

	rules := repository.NewAlertRuleRepository(db)
	comms := repository.NewCommunicationRepository(db)
	employees := repository.NewEmployeeRepository(db)

	runtime, err := alerting.Initialize(ctx, settings, alerting.Dependencies{
		Rules:          rules,
		Communications: comms,
		Employees:      employees,
		Email:          email,
		Redis:          rdb,
	}, log)
	if err != nil {
		return err
	}
	defer runtime.Stop()

	m := metrics.New()
	m.RegisterEventBus(runtime.Bus)
	m.RegisterEngine(runtime.Engine)
	runtime.Engine.Subscribe(m.ObserveOutcome)

	if settings.MQTT.Enabled {
		sub := trigger.NewSubscriber(settings.MQTT, trigger.NewParser(validation.New()), runtime.Bus, m.ObserveTrigger, log)
		if err := sub.Start(ctx); err != nil {
			return err
		}
		defer sub.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	streamCtx, cancelStreams := context.WithCancel(gctx)
	defer cancelStreams()

	server := api.New(streamCtx, apiv2.Dependencies{
		Settings:       settings,
		Alerting:       runtime,
		History:        rules,
		Communications: comms,
		Employees:      employees,
		Email:          email,
		Sessions:       auth.NewSessionStore(settings.Auth),
		Observe:        m.ObserveTrigger,
	}, m, log)

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		cancelStreams()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout.Std())
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
