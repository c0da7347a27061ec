package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"kb-diagnosis-service/internal/domain"
	"kb-diagnosis-service/internal/logger"
)

// GoalMapLoader fetches goal maps from a backing store.
type GoalMapLoader interface {
	LoadGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error)
}

// GoalMapRepository caches goal maps in Redis and falls back to a loader on cache miss.
// Goal maps are stored as JSON: SET goalmap:{goalMapID} {json} EX ttl
type GoalMapRepository struct {
	client *redis.Client
	loader GoalMapLoader
	ttl    time.Duration
	log    *logger.Logger
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewGoalMapRepository(client *redis.Client, loader GoalMapLoader, ttl time.Duration, log *logger.Logger) *GoalMapRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &GoalMapRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With("repo", "RedisGoalMapRepository"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *GoalMapRepository) GetGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error) {
	if gm, ok := r.fromCache(ctx, goalMapID); ok {
		return gm, nil
	}

	result, err, _ := r.sf.Do(goalMapID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if gm, ok := r.fromCache(ctx, goalMapID); ok {
			return gm, nil
		}

		gm, err := r.loader.LoadGoalMap(ctx, goalMapID)
		if err != nil {
			return domain.GoalMap{}, err
		}

		data, err := json.Marshal(gm)
		if err != nil {
			return domain.GoalMap{}, err
		}
		// best-effort fill; a failed write only costs another load
		if err := r.client.Set(ctx, r.key(goalMapID), data, r.ttlWithJitter()).Err(); err != nil {
			r.log.Warn("goal map cache write failed", "goalMapId", goalMapID, "error", err)
		}
		return gm, nil
	})
	if err != nil {
		return domain.GoalMap{}, err
	}
	return result.(domain.GoalMap), nil
}

// Invalidate drops a cached goal map, e.g. after a teacher edit.
func (r *GoalMapRepository) Invalidate(ctx context.Context, goalMapID string) error {
	return r.client.Del(ctx, r.key(goalMapID)).Err()
}

func (r *GoalMapRepository) fromCache(ctx context.Context, goalMapID string) (domain.GoalMap, bool) {
	data, err := r.client.Get(ctx, r.key(goalMapID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("goal map cache read failed", "goalMapId", goalMapID, "error", err)
		}
		return domain.GoalMap{}, false
	}
	var gm domain.GoalMap
	if err := json.Unmarshal(data, &gm); err != nil {
		r.log.Warn("goal map cache entry corrupt", "goalMapId", goalMapID, "error", err)
		return domain.GoalMap{}, false
	}
	return gm, true
}

func (r *GoalMapRepository) key(goalMapID string) string {
	return "goalmap:" + goalMapID
}

func (r *GoalMapRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
