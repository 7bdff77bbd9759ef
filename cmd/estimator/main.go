package main

import (
	"context"
	"database/sql"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"solar_price/internal/adapters/observability"
	"solar_price/internal/adapters/osm"
	redisad "solar_price/internal/adapters/redis"
	"solar_price/internal/app"
	"solar_price/internal/domain"
	"solar_price/internal/pricing"
	"solar_price/internal/shared"
	mysqlrepo "solar_price/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	logger, closeLog := observability.NewLogger(cfg.AppEnv, cfg.LogFile)
	log.Logger = logger
	defer func() { _ = closeLog() }()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	engine, err := shared.BuildEngine(ctx, cfg, repo, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("engine setup failed")
	}

	var src domain.BuildingSource = repo
	if cfg.EstimatorSource == "osm" {
		src = osm.New(cfg.OverpassURL, engine.Registry(), 90*time.Second)
	}
	refresh := app.NewRefreshService(src, engine, repo, cache)

	regions := cfg.EstimatorRegions
	if len(regions) == 0 {
		for _, r := range engine.Registry().Regions() {
			regions = append(regions, r.ID)
		}
	}

	log.Info().
		Str("source", cfg.EstimatorSource).
		Strs("regions", regions).
		Int("workers", cfg.EstimatorWorkers).
		Int("limit", cfg.EstimatorLimit).
		Msg("estimator starting")

	sem := semaphore.NewWeighted(int64(max(cfg.EstimatorWorkers, 1)))
	var wg sync.WaitGroup
	var stored, failed atomic.Int64
	start := time.Now()

	for _, id := range regions {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("estimator interrupted")
			break
		}

		wg.Add(1)
		go func(regionID string) {
			defer wg.Done()
			defer sem.Release(1)

			st, err := refresh.RefreshRegion(ctx, regionID, cfg.EstimatorLimit)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("region", regionID).Err(err).Msg("refresh failed")
				return
			}
			stored.Add(int64(st.Stored))
			ev := log.Info().Str("region", pricing.NormalizeRegionID(regionID)).
				Int("buildings", st.Buildings).
				Int("stored", st.Stored)
			for m, n := range st.ByMethod {
				ev = ev.Int(string(m), n)
			}
			ev.Msg("refresh ok")
		}(id)
	}
	wg.Wait()

	if n, err := repo.PurgeExpired(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("purge expired estimates failed")
	} else if n > 0 {
		log.Info().Int64("rows", n).Msg("expired estimates purged")
	}

	log.Info().
		Int64("stored", stored.Load()).
		Int64("failed_regions", failed.Load()).
		Dur("took", time.Since(start)).
		Msg("estimation completed")
}
