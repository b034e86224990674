package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"universes/internal/bot"
	"universes/internal/config"
	"universes/internal/logger"
	"universes/internal/repository"
	"universes/internal/server"
	"universes/internal/service"
)

// jobTimeout bounds a single scheduled job run.
const jobTimeout = 30 * time.Second

// coreModule provides configuration, logging, storage and services.
func coreModule(cfg config.Config) fx.Option {
	return fx.Module("core",
		fx.Supply(cfg),
		fx.Provide(
			logger.New,
			newDB,
			repository.NewTaskRepository,
			repository.NewUniverseRepository,
			repository.NewRecurringTaskRepository,
			repository.NewMembershipRepository,
			repository.NewLogRepository,
			repository.NewIdeaRepository,
			repository.NewSubscriberRepository,
			service.NewLogService,
			service.NewTaskService,
			service.NewUniverseService,
			service.NewIdeaService,
			service.NewRecurringTaskService,
			service.NewReminderService,
			service.NewMaintenanceService,
		),
	)
}

// serveModule adds the HTTP server, the scheduler and the optional bot.
func serveModule() fx.Option {
	return fx.Module("serve",
		fx.Provide(
			fx.Annotate(
				func(cfg config.Config) string { return cfg.CSRFToken },
				fx.ResultTags(`name:"csrf_token"`),
			),
			server.New,
			newScheduler,
			newBot,
		),
		fx.Invoke(
			httpLifecycle,
			jobsLifecycle,
			botLifecycle,
		),
	)
}

func fxLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
}

func newDB(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return db, nil
}

func newScheduler(log *zap.Logger) *service.SchedulerService {
	return service.NewSchedulerService(time.Local, log)
}

// newBot returns nil when no Telegram token is configured.
func newBot(cfg config.Config, log *zap.Logger, tasks *service.TaskService, universes *service.UniverseService,
	reminders *service.ReminderService, subs *repository.SubscriberRepository) (*bot.Bot, error) {
	if cfg.TelegramToken == "" {
		log.Info("telegram token not set, bot disabled")
		return nil, nil
	}
	return bot.New(cfg.TelegramToken, bot.Deps{
		Tasks:       tasks,
		Universes:   universes,
		Reminders:   reminders,
		Subscribers: subs,
		Logger:      log,
	})
}

func httpLifecycle(lc fx.Lifecycle, cfg config.Config, srv *server.Server, log *zap.Logger) {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}

func jobsLifecycle(lc fx.Lifecycle, cfg config.Config, sched *service.SchedulerService, maintenance *service.MaintenanceService, b *bot.Bot, log *zap.Logger) error {
	if _, err := sched.ScheduleInterval("prune-logs", cfg.PruneInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := maintenance.PruneOrphanLogs(ctx); err != nil {
			log.Error("prune orphan logs", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	if b != nil {
		if _, err := sched.ScheduleDaily("digest", cfg.ReportTime, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := b.SendDailyDigest(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("daily digest", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			sched.Stop()
			return nil
		},
	})
	return nil
}

func botLifecycle(lc fx.Lifecycle, b *bot.Bot, log *zap.Logger) {
	if b == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("bot stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
