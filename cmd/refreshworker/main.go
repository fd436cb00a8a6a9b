// Command refreshworker runs the Collaborative Recommender's periodic
// model refresh (§4.4) as an asynq consumer: a scheduler enqueues a
// refresh task on a fixed interval, and this process's worker pool
// rebuilds the interaction matrix from the Postgres interaction store and
// publishes it to Redis via recommender.StoreMatrix, where the serving
// processes load it from.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	adapterspostgres "github.com/podwise/hrap/internal/adapters/postgres"
	"github.com/podwise/hrap/internal/config"
	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/recommender"
)

const refreshTaskType = "recommender:refresh_matrix"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf(ctx, "refreshworker: config load failed: %v", err)
		os.Exit(1)
	}

	db, err := gorm.Open(gormpostgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		logger.Errorf(ctx, "refreshworker: postgres connect failed: %v", err)
		os.Exit(1)
	}
	store := adapterspostgres.NewInteractionStore(db)
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.WebSearch.RedisAddr})

	redisOpt := asynq.RedisClientOpt{Addr: cfg.WebSearch.RedisAddr}

	handler := &refreshHandler{store: store, redis: redisClient, halfLifeDays: cfg.Recommender.HalfLifeDays}

	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 1})
	mux := asynq.NewServeMux()
	mux.HandleFunc(refreshTaskType, handler.Handle)

	scheduler := asynq.NewScheduler(redisOpt, nil)
	interval := cfg.Recommender.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	if _, err := scheduler.Register(cronSpecFor(interval), asynq.NewTask(refreshTaskType, nil)); err != nil {
		logger.Errorf(ctx, "refreshworker: schedule registration failed: %v", err)
		os.Exit(1)
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Errorf(ctx, "refreshworker: scheduler stopped: %v", err)
		}
	}()

	logger.Infof(ctx, "refreshworker: starting, interval=%s", interval)
	if err := srv.Run(mux); err != nil {
		logger.Errorf(ctx, "refreshworker: server stopped: %v", err)
		os.Exit(1)
	}
}

// cronSpecFor renders a fixed-interval duration as an "@every" spec, which
// asynq's scheduler accepts alongside standard cron expressions.
func cronSpecFor(d time.Duration) string {
	return "@every " + d.String()
}

type refreshHandler struct {
	store        *adapterspostgres.InteractionStore
	redis        *redis.Client
	halfLifeDays float64
}

// Handle loads every interaction row, rebuilds the model, and publishes it
// to the shared cache every query-serving replica reads from. It does not
// attempt incremental updates: a full rebuild keeps the popularity ranking
// and per-user means consistent, and the interaction volume this system
// targets (podcast episodes, not e-commerce SKUs) keeps a full scan cheap
// enough to run hourly.
func (h *refreshHandler) Handle(ctx context.Context, t *asynq.Task) error {
	rows, err := h.store.ListInteractionsSince(ctx, 0)
	if err != nil {
		return err
	}
	now := time.Now()
	matrix := recommender.BuildInteractionMatrix(rows, h.halfLifeDays, now, now.Format(time.RFC3339))
	if err := recommender.StoreMatrix(ctx, h.redis, matrix); err != nil {
		return err
	}
	logger.Infof(ctx, "refreshworker: published model built from %d interactions", len(rows))
	return nil
}
