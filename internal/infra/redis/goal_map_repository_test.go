package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"kb-diagnosis-service/internal/domain"
	"kb-diagnosis-service/internal/infra/memory"
)

func TestGoalMapRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		GoalMapLoader: memory.NewStaticGoalMapLoader(map[string]domain.GoalMap{
			"gm-1": sampleGoalMap(),
		}),
	}
	repo := NewGoalMapRepository(client, loader, time.Minute, nil)

	gm, err := repo.GetGoalMap(context.Background(), "gm-1")
	if err != nil {
		t.Fatalf("get goal map: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("goalmap:gm-1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("goalmap:gm-1"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetGoalMap(context.Background(), "gm-1")
	if err != nil {
		t.Fatalf("get cached goal map: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached.Edges) != len(gm.Edges) || cached.Edges[1].Target != "c2" || cached.Direction != domain.DirectionUni {
		t.Fatalf("cached goal map differs: %+v", cached)
	}
}

func TestGoalMapRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{
		GoalMapLoader: memory.NewStaticGoalMapLoader(map[string]domain.GoalMap{"gm-1": sampleGoalMap()}),
	}
	repo := NewGoalMapRepository(newClient(mr), loader, time.Minute, nil)

	_, _ = repo.GetGoalMap(context.Background(), "gm-1")
	if err := repo.Invalidate(context.Background(), "gm-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("goalmap:gm-1") {
		t.Fatalf("expected redis key to be removed")
	}
	_, _ = repo.GetGoalMap(context.Background(), "gm-1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestGoalMapRepositoryMissDoesNotCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewGoalMapRepository(newClient(mr), memory.NewStaticGoalMapLoader(nil), time.Minute, nil)
	_, err = repo.GetGoalMap(context.Background(), "gm-x")
	if !errors.Is(err, domain.ErrGoalMapNotFound) {
		t.Fatalf("expected goal map not found, got %v", err)
	}
	if mr.Exists("goalmap:gm-x") {
		t.Fatalf("missing goal map must not be cached")
	}
}

type countingLoader struct {
	memory.GoalMapLoader
	calls int
}

func (l *countingLoader) LoadGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error) {
	l.calls++
	return l.GoalMapLoader.LoadGoalMap(ctx, goalMapID)
}

func sampleGoalMap() domain.GoalMap {
	return domain.GoalMap{
		ID:        "gm-1",
		Title:     "Photosynthesis",
		Direction: domain.DirectionUni,
		Nodes:     []domain.Node{{ID: "c1"}, {ID: "link1"}, {ID: "c2"}},
		Edges: []domain.Edge{
			{ID: "g1", Source: "c1", Target: "link1"},
			{ID: "g2", Source: "link1", Target: "c2"},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
