package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"kb-diagnosis-service/internal/domain"
)

// GoalMapLoader loads goal maps (nodes/edges JSONB) from Postgres.
type GoalMapLoader struct {
	pool *pgxpool.Pool
}

func NewGoalMapLoader(pool *pgxpool.Pool) *GoalMapLoader {
	return &GoalMapLoader{pool: pool}
}

func (l *GoalMapLoader) LoadGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error) {
	var (
		gm           domain.GoalMap
		direction    string
		nodes, edges []byte
	)
	err := l.pool.QueryRow(ctx,
		`SELECT id, title, direction, nodes, edges FROM goal_maps WHERE id=$1`, goalMapID,
	).Scan(&gm.ID, &gm.Title, &direction, &nodes, &edges)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GoalMap{}, fmt.Errorf("load goal map %s: %w", goalMapID, domain.ErrGoalMapNotFound)
	}
	if err != nil {
		return domain.GoalMap{}, fmt.Errorf("load goal map: %w", err)
	}
	gm.Direction = domain.Direction(direction)
	if err := json.Unmarshal(nodes, &gm.Nodes); err != nil {
		return domain.GoalMap{}, fmt.Errorf("unmarshal goal map nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &gm.Edges); err != nil {
		return domain.GoalMap{}, fmt.Errorf("unmarshal goal map edges: %w", err)
	}
	return gm, nil
}
