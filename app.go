package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"pixelweave-server/modules/common/auth"
	"pixelweave-server/modules/common/config"
	"pixelweave-server/modules/common/credit"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/model"
	redisClient "pixelweave-server/modules/common/redis"
	"pixelweave-server/modules/common/storage"
	"pixelweave-server/modules/common/utils"
	"pixelweave-server/modules/generation"
	"pixelweave-server/modules/job"
	"pixelweave-server/modules/notification"
)

// app - 명령들이 공유하는 의존성
type app struct {
	cfg    *config.Config
	db     *database.Client
	rdb    *redis.Client
	store  storage.Storage
	ledger *credit.Ledger
	queue  *job.RedisQueue
	jobs   *job.Service
	tokens *auth.TokenManager
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := redisClient.Connect(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	store, err := storage.New(cfg)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		db:     db,
		rdb:    rdb,
		store:  store,
		ledger: credit.NewLedger(db.DB()),
		queue:  job.NewRedisQueue(rdb),
		tokens: auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTokenTTL),
	}
	a.jobs = job.NewService(db, a.ledger, store, a.queue, a.costs())
	return a, nil
}

func (a *app) costs() job.Costs {
	return job.Costs{
		model.KindWardrobe: a.cfg.WardrobeCost,
		model.KindStudio:   a.cfg.StudioCost,
	}
}

// newProcessor - 게이트웨이 연결 후 Processor 생성
func (a *app) newProcessor(ctx context.Context, publisher notification.Publisher) (*job.Processor, error) {
	gateway, err := generation.NewGemini(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image gateway: %w", err)
	}

	pcfg := job.ProcessorConfig{GatewayTimeout: a.cfg.GatewayTimeout}
	if a.cfg.ConvertWebP {
		pcfg.Convert = utils.WebPConverter(a.cfg.WebPQuality)
	}
	return job.NewProcessor(a.db, a.ledger, a.store, gateway, publisher, a.costs(), pcfg), nil
}

func (a *app) close() {
	if err := a.rdb.Close(); err != nil {
		log.Warnf("⚠️  Redis close: %v", err)
	}
	if err := a.db.Close(); err != nil {
		log.Warnf("⚠️  Database close: %v", err)
	}
}
