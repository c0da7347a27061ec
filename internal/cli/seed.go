package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kb-diagnosis-service/internal/domain"
	"kb-diagnosis-service/internal/infra/sqlstore"
)

// Fixture is the YAML seed document.
type Fixture struct {
	Users       []domain.User       `yaml:"users"`
	GoalMaps    []domain.GoalMap    `yaml:"goalMaps"`
	Assignments []domain.Assignment `yaml:"assignments"`
}

// NewSeedCmd upserts users, goal maps and assignments from a YAML fixture.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, goal maps and assignments from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := readFixture(file)
			if err != nil {
				return err
			}
			d, err := loadDeps(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer d.close()
			if err := applyFixture(cmd.Context(), d.store, fx); err != nil {
				return err
			}
			d.log.Info("fixture loaded",
				"file", file,
				"users", len(fx.Users),
				"goalMaps", len(fx.GoalMaps),
				"assignments", len(fx.Assignments))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/seed.yaml", "path to YAML fixture")
	return cmd
}

func readFixture(path string) (Fixture, error) {
	var fx Fixture
	err := readYAML(path, &fx)
	return fx, err
}

func readYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyFixture(ctx context.Context, store *sqlstore.Store, fx Fixture) error {
	for _, u := range fx.Users {
		if err := store.PutUser(ctx, u); err != nil {
			return err
		}
	}
	for _, gm := range fx.GoalMaps {
		if err := store.PutGoalMap(ctx, gm); err != nil {
			return err
		}
	}
	for _, a := range fx.Assignments {
		if err := store.PutAssignment(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
