package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"kb-diagnosis-service/internal/app"
	"kb-diagnosis-service/internal/domain"
	"kb-diagnosis-service/internal/export"
	pgloader "kb-diagnosis-service/internal/infra/postgres"
	infraredis "kb-diagnosis-service/internal/infra/redis"
	"kb-diagnosis-service/internal/infra/sqlstore"
	"kb-diagnosis-service/internal/infra/sqlstore/migrations"
	"kb-diagnosis-service/internal/metrics"
)

func TestSubmitAndAnalyticsEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := sqlstore.OpenPostgres(pgURL)
	defer db.Close()
	if _, err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := sqlstore.NewStore(db)
	seed(t, ctx, store)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	repos := app.Repositories{
		GoalMaps:    infraredis.NewGoalMapRepository(redisClient, pgloader.NewGoalMapLoader(pool), 5*time.Minute, nil),
		Assignments: store,
		LearnerMaps: store,
		Diagnoses:   store,
		Users:       store,
	}
	recorder := metrics.NewRecorder()
	diagnoses := app.NewDiagnosisService(repos, nil, recorder)
	analytics := app.NewAnalyticsService(repos, nil)

	if _, err := diagnoses.SaveDraft(ctx, "u1", "a-1", nil, []domain.Edge{
		{ID: "l1", Source: "c1", Target: "link1"},
		{ID: "l2", Source: "x", Target: "c1"},
	}); err != nil {
		t.Fatalf("save draft u1: %v", err)
	}
	if _, err := diagnoses.SaveDraft(ctx, "u2", "a-1", nil, []domain.Edge{
		{ID: "l1", Source: "c1", Target: "link1"},
		{ID: "l2", Source: "link1", Target: "c2"},
	}); err != nil {
		t.Fatalf("save draft u2: %v", err)
	}

	// Racing submissions of one draft leave exactly one diagnosis.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := diagnoses.Submit(ctx, "u1", "a-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, domain.ErrAlreadySubmitted):
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful submit, got %d", succeeded)
	}

	res, err := diagnoses.Submit(ctx, "u2", "a-1")
	if err != nil {
		t.Fatalf("submit u2: %v", err)
	}
	if res.Result.Score != 1 {
		t.Fatalf("expected full score for u2, got %v", res.Result.Score)
	}
	if n, err := redisClient.Exists(ctx, "goalmap:gm-1").Result(); err != nil || n != 1 {
		t.Fatalf("expected goal map cached in redis, n=%d err=%v", n, err)
	}

	report, err := analytics.AssignmentAnalytics(ctx, "t1", "a-1")
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if len(report.Learners) != 2 || report.Learners[0].UserName != "Alice" || report.Learners[1].UserName != "Bob" {
		t.Fatalf("unexpected learner rows %+v", report.Learners)
	}
	if report.Summary.SubmittedCount != 2 || report.Summary.AvgScore == nil || *report.Summary.AvgScore != 0.75 {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}

	peers, err := analytics.PeerStats(ctx, "u1", "a-1")
	if err != nil {
		t.Fatalf("peer stats: %v", err)
	}
	if peers.Count != 1 || peers.UserPercentile == nil || *peers.UserPercentile != 0 {
		t.Fatalf("unexpected peer stats %+v", peers)
	}

	file, err := export.Export(report, export.FormatStructured, time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if file.Name != "KB-Analytics-2026-10-16T0930.json" {
		t.Fatalf("unexpected export name %q", file.Name)
	}

	reopened, err := diagnoses.StartNewAttempt(ctx, "u1", "a-1")
	if err != nil {
		t.Fatalf("new attempt: %v", err)
	}
	if reopened.Attempt != 2 || reopened.Status != domain.StatusDraft {
		t.Fatalf("unexpected reopened map %+v", reopened)
	}
	history, err := diagnoses.History(ctx, "u1", "a-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Attempt != 1 {
		t.Fatalf("unexpected history %+v", history)
	}
}

func seed(t *testing.T, ctx context.Context, store *sqlstore.Store) {
	t.Helper()
	gm := domain.GoalMap{
		ID:        "gm-1",
		Title:     "Photosynthesis",
		Direction: domain.DirectionUni,
		Nodes:     []domain.Node{{ID: "c1"}, {ID: "link1"}, {ID: "c2"}},
		Edges: []domain.Edge{
			{ID: "g1", Source: "c1", Target: "link1"},
			{ID: "g2", Source: "link1", Target: "c2"},
		},
	}
	if err := store.PutGoalMap(ctx, gm); err != nil {
		t.Fatalf("seed goal map: %v", err)
	}
	if err := store.PutAssignment(ctx, domain.Assignment{ID: "a-1", Title: "Week 1", GoalMapID: "gm-1", CreatedBy: "t1"}); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	for _, u := range []domain.User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}} {
		if err := store.PutUser(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "kitbuild", "POSTGRES_PASSWORD": "kitbuildpass", "POSTGRES_DB": "kitbuild"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://kitbuild:kitbuildpass@%s:%s/kitbuild?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
