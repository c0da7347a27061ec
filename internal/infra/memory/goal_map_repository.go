package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"kb-diagnosis-service/internal/domain"
)

// GoalMapLoader fetches goal maps from a backing store.
type GoalMapLoader interface {
	LoadGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error)
}

// GoalMapRepository caches goal maps with TTL to avoid repeated DB hits.
// Goal maps are immutable to students, so a stale entry only lags teacher edits.
type GoalMapRepository struct {
	loader GoalMapLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedGoalMap
}

type cachedGoalMap struct {
	goalMap   domain.GoalMap
	expiresAt time.Time
}

func NewGoalMapRepository(loader GoalMapLoader, ttl time.Duration) *GoalMapRepository {
	return &GoalMapRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedGoalMap),
	}
}

func (r *GoalMapRepository) GetGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error) {
	if gm, ok := r.cached(goalMapID); ok {
		return gm, nil
	}

	result, err, _ := r.sf.Do(goalMapID, func() (interface{}, error) {
		if gm, ok := r.cached(goalMapID); ok {
			return gm, nil
		}

		gm, err := r.loader.LoadGoalMap(ctx, goalMapID)
		if err != nil {
			return domain.GoalMap{}, err
		}

		r.mu.Lock()
		r.cache[goalMapID] = cachedGoalMap{
			goalMap:   gm,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return gm, nil
	})
	if err != nil {
		return domain.GoalMap{}, err
	}
	return result.(domain.GoalMap), nil
}

// Invalidate drops a cached goal map, e.g. after a teacher edit.
func (r *GoalMapRepository) Invalidate(goalMapID string) {
	r.mu.Lock()
	delete(r.cache, goalMapID)
	r.mu.Unlock()
}

func (r *GoalMapRepository) cached(goalMapID string) (domain.GoalMap, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[goalMapID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.GoalMap{}, false
	}
	return entry.goalMap, true
}

func (r *GoalMapRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticGoalMapLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticGoalMapLoader struct {
	goalMaps map[string]domain.GoalMap
}

func NewStaticGoalMapLoader(goalMaps map[string]domain.GoalMap) *StaticGoalMapLoader {
	return &StaticGoalMapLoader{goalMaps: goalMaps}
}

func (l *StaticGoalMapLoader) LoadGoalMap(_ context.Context, goalMapID string) (domain.GoalMap, error) {
	if gm, ok := l.goalMaps[goalMapID]; ok {
		return gm, nil
	}
	return domain.GoalMap{}, domain.ErrGoalMapNotFound
}
