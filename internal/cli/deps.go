package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"kb-diagnosis-service/internal/app"
	"kb-diagnosis-service/internal/config"
	"kb-diagnosis-service/internal/infra/memory"
	pgloader "kb-diagnosis-service/internal/infra/postgres"
	rediscache "kb-diagnosis-service/internal/infra/redis"
	"kb-diagnosis-service/internal/infra/sqlstore"
	"kb-diagnosis-service/internal/logger"
	"kb-diagnosis-service/internal/metrics"
)

// deps is everything a command needs, built from config.
type deps struct {
	cfg       config.Config
	log       *logger.Logger
	db        *bun.DB
	pool      *pgxpool.Pool
	redis     *redis.Client
	store     *sqlstore.Store
	recorder  *metrics.Recorder
	diagnoses *app.DiagnosisService
	analytics *app.AnalyticsService
}

func loadDeps(ctx context.Context, configPath string) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, log: log}

	d.db, err = openDB(cfg)
	if err != nil {
		d.close()
		return nil, err
	}
	d.store = sqlstore.NewStore(d.db)

	var loader memory.GoalMapLoader = d.store
	if cfg.Database.Driver == config.DriverPostgres {
		d.pool, err = pgxpool.Connect(ctx, cfg.Database.URL)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("connect postgres pool: %w", err)
		}
		loader = pgloader.NewGoalMapLoader(d.pool)
	}

	ttl := config.TTLDuration(cfg.GoalMap.TTL, 10*time.Minute)
	var goalMaps app.GoalMapRepository
	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		goalMaps = rediscache.NewGoalMapRepository(d.redis, loader, ttl, log)
	} else {
		goalMaps = memory.NewGoalMapRepository(loader, ttl)
	}

	repos := app.Repositories{
		GoalMaps:    goalMaps,
		Assignments: d.store,
		LearnerMaps: d.store,
		Diagnoses:   d.store,
		Users:       d.store,
	}
	d.recorder = metrics.NewRecorder()
	d.diagnoses = app.NewDiagnosisService(repos, log, d.recorder)
	d.analytics = app.NewAnalyticsService(repos, log)
	return d, nil
}

func openDB(cfg config.Config) (*bun.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		return sqlstore.OpenPostgres(cfg.Database.URL), nil
	case config.DriverSQLite:
		return sqlstore.OpenSQLite(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// close flushes metrics and releases connections.
func (d *deps) close() {
	if d.recorder != nil {
		if err := d.recorder.WriteTextfile(d.cfg.Metrics.Textfile); err != nil {
			d.log.Warn("write metrics textfile", "path", d.cfg.Metrics.Textfile, "error", err)
		}
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
	d.log.Sync()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
