// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
//
// With DATABASE_URL unset the process runs fully in memory, which is how the
// local dev loop and most tests exercise the stack. Redis and Kafka are
// likewise optional: absent Redis the scheduler dedupes in process, absent
// Kafka notices go to the in-memory publisher.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	clientstore "assura/internal/client/store"
	commissionhandler "assura/internal/commission/handler"
	commissionmetrics "assura/internal/commission/metrics"
	commissionservice "assura/internal/commission/service"
	ledgerstore "assura/internal/commission/store/ledger"
	"assura/internal/notify"
	"assura/internal/platform/config"
	"assura/internal/platform/httpserver"
	"assura/internal/platform/logger"
	"assura/internal/platform/middleware"
	"assura/internal/platform/postgres"
	platformredis "assura/internal/platform/redis"
	policyhandler "assura/internal/policy/handler"
	policymetrics "assura/internal/policy/metrics"
	policyservice "assura/internal/policy/service"
	policystore "assura/internal/policy/store/policy"
	"assura/internal/scheduler"
	schedulermetrics "assura/internal/scheduler/metrics"
	tenantstore "assura/internal/tenant/store"
	httptransport "assura/internal/transport/http"
	"assura/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	var (
		policies policyservice.PolicyStore
		ledger   commissionservice.LedgerStore
		clients  policyservice.ClientDirectory
		tenants  scheduler.TenantLister
		runner   tx.Runner = tx.NoopRunner{}
	)
	if db != nil {
		defer db.Close()
		policies = policystore.NewPostgres(db)
		ledger = ledgerstore.NewPostgres(db)
		clients = clientstore.NewPostgresStore(db)
		tenants = tenantstore.NewPostgresStore(db)
		runner = &tx.SQLRunner{DB: db}
		log.Info("using postgres storage")
	} else {
		policies = policystore.NewInMemory()
		ledger = ledgerstore.NewInMemory()
		clients = clientstore.NewInMemory()
		tenants = tenantstore.NewInMemory()
		log.Info("using in-memory storage")
	}

	commissionSvc := commissionservice.New(ledger, log,
		commissionservice.WithMetrics(commissionmetrics.New()),
	)
	policySvc := policyservice.New(policies, clients, commissionSvc, log,
		policyservice.WithMetrics(policymetrics.New()),
		policyservice.WithTxRunner(runner),
	)

	// Notification pipeline: scheduler -> channel -> worker -> publisher.
	inbox := make(chan notify.Notice, 256)
	var publisher notify.Notifier = notify.NewMemoryPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := notify.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub
		log.Info("publishing notices to kafka", "topic", cfg.KafkaTopic)
	}
	noticeWorker := notify.NewWorker(publisher, inbox, log)

	var dedupe scheduler.Deduper = scheduler.NewMemoryDeduper()
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		dedupe = scheduler.NewRedisDeduper(redisClient.Client, "assura:sched:")
		log.Info("using redis scheduler dedupe")
	}

	schedWorker := scheduler.New(
		scheduler.Config{
			Interval:  cfg.SchedulerInterval,
			DaysAhead: cfg.RenewalDaysAhead,
		},
		tenants, policySvc, commissionSvc,
		notify.NewChannelPublisher(inbox), dedupe, log,
		scheduler.WithMetrics(schedulermetrics.New()),
	)

	validator := middleware.NewHMACValidator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(log, validator,
		policyhandler.New(policySvc, log),
		commissionhandler.New(commissionSvc, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting assura", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := noticeWorker.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := schedWorker.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
