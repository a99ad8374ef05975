package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/afteryou/delivery/internal/api"
	"github.com/afteryou/delivery/internal/cache"
	"github.com/afteryou/delivery/internal/config"
	"github.com/afteryou/delivery/internal/engine"
	"github.com/afteryou/delivery/internal/mail"
	"github.com/afteryou/delivery/internal/queue"
	"github.com/afteryou/delivery/internal/render"
	"github.com/afteryou/delivery/internal/repo"
	"github.com/afteryou/delivery/internal/scheduler"
	"github.com/afteryou/delivery/internal/sweep"
)

// lateDeliverer lets the in-process queue be constructed before the engine
// that serves its jobs. Bind must be called before the first job fires.
type lateDeliverer struct {
	target queue.Deliverer
}

func (d *lateDeliverer) Bind(target queue.Deliverer) { d.target = target }

func (d *lateDeliverer) Deliver(ctx context.Context, messageID uuid.UUID) error {
	if d.target == nil {
		return errors.New("deliverer not bound")
	}
	return d.target.Deliver(ctx, messageID)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func main() {
	if err := run(); err != nil {
		slog.Error("deliveryd exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	messages := repo.NewPostgresMessageRepo(db)
	accounts := repo.NewPostgresAccountRepo(db)
	mailer := mail.NewProviderClient(cfg.Mail.ProviderURL, cfg.Mail.FromAddress)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	var (
		eng   *engine.Engine
		stats api.QueueStats
		late  *lateDeliverer
	)

	switch cfg.Queue.Mode {
	case config.QueueModeRedis:
		rq := queue.NewRedisQueue(rdb, cfg.Queue.Key)
		eng = engine.New(messages, mailer, render.New(), rq)

		worker := queue.NewWorker(rq, eng, cfg.Queue.BatchSize, cfg.Queue.Concurrency)
		poller, err := scheduler.New("queue-poll", cfg.Queue.PollInterval, worker.Poll)
		if err != nil {
			return err
		}
		poller.Start()
		defer poller.Stop()

		stats = rq
	case config.QueueModeInProc:
		late = &lateDeliverer{}
		ipq := queue.NewInProcessQueue(late)
		defer ipq.Stop()

		eng = engine.New(messages, mailer, render.New(), ipq)
		late.Bind(eng)

		stats = ipq
	}

	if cfg.Redis.Enabled {
		eng.WithReceipts(cache.NewRedisCache(rdb, cfg.Redis.ReceiptTTL))
	}

	sweeper := sweep.New(messages, eng, cfg.Sweep.RetryWindow, cfg.Sweep.CleanupAge)
	sweepSched, err := scheduler.New("sweep", cfg.Scheduler.SweepInterval, sweeper.Run)
	if err != nil {
		return err
	}
	sweepSched.Start()
	defer sweepSched.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(api.NewHandler(eng, sweeper, sweepSched, stats, accounts))),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("deliveryd listening",
			"addr", cfg.Server.Address,
			"queue_mode", cfg.Queue.Mode,
			"sweep_interval", cfg.Scheduler.SweepInterval.String(),
			"redis", cfg.Redis.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
