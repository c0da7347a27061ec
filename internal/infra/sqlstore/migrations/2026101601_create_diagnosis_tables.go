package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// The DDL is kept to types both Postgres and SQLite accept.
var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS goal_maps (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT 'uni',
		nodes JSONB,
		edges JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		goal_map_id TEXT NOT NULL,
		created_by TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS learner_maps (
		id TEXT PRIMARY KEY,
		assignment_id TEXT NOT NULL,
		goal_map_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		nodes JSONB,
		edges JSONB,
		control_text TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'draft',
		attempt INTEGER NOT NULL DEFAULT 1,
		submitted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (assignment_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS diagnoses (
		id TEXT PRIMARY KEY,
		goal_map_id TEXT NOT NULL,
		learner_map_id TEXT NOT NULL REFERENCES learner_maps (id) ON DELETE CASCADE,
		attempt INTEGER NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		correct JSONB,
		missing JSONB,
		excessive JSONB,
		total_goal_edges INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (learner_map_id, attempt)
	)`,
}

var dropTables = []string{"diagnoses", "learner_maps", "assignments", "goal_maps", "users"}

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			for _, stmt := range createStatements {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, table := range dropTables {
				if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
					return err
				}
			}
			return nil
		},
	)
}

// Apply creates the migration tables if needed and runs pending migrations.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, err
	}
	return migrator.Migrate(ctx)
}
