package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/automation"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memory"
	"github.com/spec-kit/support-desk/internal/scheduler"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/sla"
)

// repos groups every repository behind its interface so the wiring below
// stays the same whether rows live in postgres or memory.
type repos struct {
	tickets       repository.TicketRepository
	comments      repository.TicketCommentRepository
	activities    repository.TicketActivityRepository
	users         repository.UserRepository
	categories    repository.CategoryRepository
	tags          repository.TagRepository
	rules         repository.AutomationRuleRepository
	logs          repository.RuleExecutionLogRepository
	policies      repository.SLAPolicyRepository
	breaches      repository.SLABreachRepository
	notifications repository.NotificationRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var r repos
	if pool != nil {
		r = repos{
			tickets:       repository.NewTicketRepository(pool),
			comments:      repository.NewTicketCommentRepository(pool),
			activities:    repository.NewTicketActivityRepository(pool),
			users:         repository.NewUserRepository(pool),
			categories:    repository.NewCategoryRepository(pool),
			tags:          repository.NewTagRepository(pool),
			rules:         repository.NewAutomationRuleRepository(pool),
			logs:          repository.NewRuleExecutionLogRepository(pool),
			policies:      repository.NewSLAPolicyRepository(pool),
			breaches:      repository.NewSLABreachRepository(pool),
			notifications: repository.NewNotificationRepository(pool),
		}
	} else {
		store := memory.NewStore()
		r = repos{
			tickets:       store.Tickets(),
			comments:      store.Comments(),
			activities:    store.Activities(),
			users:         store.Users(),
			categories:    store.Categories(),
			tags:          store.Tags(),
			rules:         store.Rules(),
			logs:          store.ExecutionLogs(),
			policies:      store.Policies(),
			breaches:      store.Breaches(),
			notifications: store.Notifications(),
		}
	}

	metrics := observability.NewMetrics()

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: r.notifications,
		Redis:            redis,
		Config:           cfg.Notification,
		Logger:           logger,
	})

	resolver := sla.NewResolver(r.policies, r.tickets, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   r.tickets,
		CommentRepo:  r.comments,
		ActivityRepo: r.activities,
		UserRepo:     r.users,
		CategoryRepo: r.categories,
		Resolver:     resolver,
		Notifier:     notificationService,
		Logger:       logger,
	})

	engine := automation.NewEngine(automation.EngineDependencies{
		Rules:   r.rules,
		Logs:    r.logs,
		Actions: automation.NewActionSet(ticketService, r.users, r.tags, notificationService, logger),
		Metrics: metrics,
		Logger:  logger,
	})
	ticketService.SetAutomation(engine)

	detector := sla.NewDetector(sla.DetectorDependencies{
		Tickets:  r.tickets,
		Breaches: r.breaches,
		Users:    r.users,
		Notifier: notificationService,
		Trigger:  engine,
		Metrics:  metrics,
		Logger:   logger,
		Batch:    cfg.Scheduler.ScanBatchLimit,
	})
	scanner := automation.NewIdleScanner(
		r.tickets, r.rules, engine,
		cfg.Scheduler.IdleThreshold(), cfg.Scheduler.ScanBatchLimit, logger,
	)

	sched := scheduler.New(detector, scanner, cfg.Scheduler, logger)
	sched.Start()

	automationService := service.NewAutomationService(service.AutomationDependencies{
		RuleRepo: r.rules,
		LogRepo:  r.logs,
		Logger:   logger,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		PolicyRepo: r.policies,
		BreachRepo: r.breaches,
		TicketRepo: r.tickets,
		Detector:   detector,
		Resolver:   resolver,
		BatchLimit: cfg.Scheduler.ScanBatchLimit,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(r.users, tokens)
	authMiddleware := auth.NewAuthMiddleware(tokens, r.users)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, notificationService),
		Automation:     handlers.NewAutomationHandler(automationService),
		SLA:            handlers.NewSLAHandler(slaService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	sched.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
