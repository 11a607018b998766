package app

import (
	"errors"
	"fmt"

	"catalog-service/internal/cache"
	"catalog-service/internal/dynamic"
	"catalog-service/internal/model"
	"catalog-service/internal/search"
	"catalog-service/pkg/config"
	"catalog-service/pkg/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the engine components shared by the HTTP server and the CLI
type App struct {
	DB      *gorm.DB
	Cluster *search.OpenSearchCluster
	Index   *search.IndexBackend
	Health  *search.HealthMonitor
	Router  *search.Router
	Cache   *cache.BadgerStore
	Dynamic *dynamic.Service
}

// New connects to PostgreSQL and assembles the engine
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.InitDB(&cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateModels(db, model.AllModels()...); err != nil {
		return nil, err
	}
	return Assemble(cfg, db, log)
}

// Assemble wires the search and dynamic data engines over an open database
func Assemble(cfg *config.Config, db *gorm.DB, log *zap.Logger) (*App, error) {
	cluster, err := search.NewOpenSearchCluster(search.OpenSearchConfig{
		Addresses: cfg.Search.Addresses,
		Username:  cfg.Search.Username,
		Password:  cfg.Search.Password,
	})
	if err != nil {
		return nil, err
	}

	health, err := search.NewHealthMonitor(cluster,
		search.WithHealthTTL(cfg.Search.HealthTTL),
		search.WithProbeTimeout(cfg.Search.ProbeTimeout),
		search.WithHealthLogger(log))
	if err != nil {
		return nil, err
	}

	index, err := search.NewIndexBackend(cluster,
		search.WithIndex(cfg.Search.Index),
		search.WithQueryTimeout(cfg.Search.QueryTimeout),
		search.WithIndexLogger(log))
	if err != nil {
		return nil, err
	}

	relational, err := search.NewRelationalBackend(db, search.WithRelationalLogger(log))
	if err != nil {
		return nil, err
	}

	router, err := search.NewRouter(relational,
		search.WithIndexBackend(index),
		search.WithHealthMonitor(health),
		search.WithLogger(log))
	if err != nil {
		return nil, err
	}

	store, err := dynamic.NewGormStore(db)
	if err != nil {
		return nil, err
	}

	badger, err := cache.OpenBadger(cfg.Cache.Dir, log)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		_ = badger.Close()
		return nil, fmt.Errorf("invalid delivery timezone: %w", err)
	}

	svc, err := dynamic.NewService(store, badger,
		dynamic.WithTTL(cfg.Cache.TTL),
		dynamic.WithMaxBatch(cfg.Dynamic.MaxBatch),
		dynamic.WithLocation(loc),
		dynamic.WithLogger(log))
	if err != nil {
		_ = badger.Close()
		return nil, err
	}

	return &App{
		DB:      db,
		Cluster: cluster,
		Index:   index,
		Health:  health,
		Router:  router,
		Cache:   badger,
		Dynamic: svc,
	}, nil
}

// Close releases the cache and the database pool
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
