package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mookor/rentbot/internal/audit"
	"github.com/mookor/rentbot/internal/config"
	"github.com/mookor/rentbot/internal/db"
	"github.com/mookor/rentbot/internal/kafka"
	"github.com/mookor/rentbot/internal/lots"
	"github.com/mookor/rentbot/internal/marketplace"
	"github.com/mookor/rentbot/internal/models"
	"github.com/mookor/rentbot/internal/ops"
	"github.com/mookor/rentbot/internal/provision"
	"github.com/mookor/rentbot/internal/rent"
	"github.com/mookor/rentbot/internal/retry"
	"github.com/mookor/rentbot/internal/scheduler"
	"github.com/mookor/rentbot/internal/steamauth"
	"github.com/mookor/rentbot/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("загрузка конфигурации", "error", err)
		os.Exit(1)
	}

	database, err := db.NewDB(cfg.DSN, cfg.MigrationsDir)
	if err != nil {
		logger.Error("подключение к базе", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rentals := store.NewRentalRepository(database)
	accounts := store.NewAccountRepository(database)
	tasks := store.NewPostgresTaskRepository(database)

	limiter := retry.NewLimiter()
	caller := retry.NewCaller(limiter, logger)
	market := marketplace.NewHTTPClient(cfg.MarketBaseURL, cfg.MarketToken, cfg.MarketUserAgent,
		cfg.EventPollInterval, logger)

	categories := map[models.GameType]int64{
		models.GameDota:     cfg.CategoryDota,
		models.GameValorant: cfg.CategoryValorant,
		models.GameLol:      cfg.CategoryLol,
	}
	gameByCategory := make(map[int64]models.GameType, len(categories))
	for gt, id := range categories {
		if id != 0 {
			gameByCategory[id] = gt
		}
	}

	lm := lots.NewManager(market, caller, categories)
	steam := steamauth.NewClient(cfg.SteamHelperURL)
	rank := provision.NewRankClient(cfg.OpenDotaURL)

	registry := provision.NewRegistry(
		provision.NewDota(lm, accounts, steam, rank, cfg.DefaultMinHours, logger),
		provision.NewRiot(models.GameValorant, lm, accounts, cfg.DefaultMinHours, logger),
		provision.NewRiot(models.GameLol, lm, accounts, cfg.DefaultMinHours, logger),
	)

	producer, err := kafka.NewProducer(cfg.Brokers())
	if err != nil {
		logger.Error("подключение к kafka", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	recorder := audit.NewRecorder(audit.PoolConfig{}, logger,
		audit.NewDBProcessor(database),
		audit.NewOutboxProcessor(tasks),
	)
	recorder.Start(ctx, 2)
	publisher := audit.NewPublisher(tasks, producer, cfg.KafkaTopic, 5*time.Second, logger)

	orch := rent.NewOrchestrator(rentals, accounts, market, caller, lm, registry, recorder,
		rent.Settings{
			WarnWindow:      cfg.WarnWindow,
			BanGrace:        cfg.BanGrace,
			FeedbackBonus:   cfg.FeedbackBonus,
			DefaultMinHours: cfg.DefaultMinHours,
			BotID:           cfg.BotID,
			AdminName:       cfg.AdminName,
			GameByCategory:  gameByCategory,
		}, logger)
	router := rent.NewRouter(orch, cfg.BotID, logger)
	events := rent.NewEventLoop(market, orch, router, logger)

	cronSched := scheduler.New(limiter, logger)
	for _, p := range registry.All() {
		p := p
		name := string(p.GameType())
		if err := cronSched.AddJob(cfg.ReconcileSchedule, "reconcile-"+name, p.ReconcileListings); err != nil {
			logger.Error("регистрация задачи сверки", "game", name, "error", err)
			os.Exit(1)
		}
		if err := cronSched.AddJob(cfg.RankSchedule, "ranks-"+name, p.RefreshRanks); err != nil {
			logger.Error("регистрация задачи рангов", "game", name, "error", err)
			os.Exit(1)
		}
	}
	cronSched.Start()
	defer cronSched.Stop()

	opsServer := &http.Server{Addr: cfg.OpsAddr, Handler: ops.NewRouter(database)}

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			logger.Info("цикл остановлен", "loop", name)
		}()
	}

	run("events", func() { events.Run(ctx) })
	run("expiry", func() {
		rent.NewSweep("expiry", cfg.SweepInterval, limiter, orch.ExpireDue, logger).Run(ctx)
	})
	run("notify", func() {
		rent.NewSweep("notify", cfg.SweepInterval, limiter, orch.NotifyExpiring, logger).Run(ctx)
	})
	run("audit-publisher", func() { publisher.Start(ctx) })
	run("ops", func() {
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops-сервер", "error", err)
		}
	})

	logger.Info("rentbot запущен", "ops", cfg.OpsAddr)
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("остановка ops-сервера", "error", err)
	}
	wg.Wait()
	recorder.Wait()
	logger.Info("rentbot остановлен")
}
