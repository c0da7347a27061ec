package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"kb-diagnosis-service/internal/domain"
)

// Store implements the app repositories on a bun DB. Status transitions are
// conditional updates inside a transaction, so a lost race changes nothing.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) PutGoalMap(ctx context.Context, gm domain.GoalMap) error {
	row := goalMapRow{
		ID:        gm.ID,
		Title:     gm.Title,
		Direction: string(gm.Direction),
		Nodes:     nonNil(gm.Nodes),
		Edges:     nonNil(gm.Edges),
	}
	if row.Direction == "" {
		row.Direction = string(domain.DirectionUni)
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("direction = EXCLUDED.direction").
		Set("nodes = EXCLUDED.nodes").
		Set("edges = EXCLUDED.edges").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put goal map %s: %w", gm.ID, err)
	}
	return nil
}

func (s *Store) PutAssignment(ctx context.Context, a domain.Assignment) error {
	row := assignmentRow{ID: a.ID, Title: a.Title, GoalMapID: a.GoalMapID, CreatedBy: a.CreatedBy}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("goal_map_id = EXCLUDED.goal_map_id").
		Set("created_by = EXCLUDED.created_by").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put assignment %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) PutUser(ctx context.Context, u domain.User) error {
	row := userRow{ID: u.ID, Name: u.Name}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}

// LoadGoalMap lets the store back a goal map cache.
func (s *Store) LoadGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error) {
	var row goalMapRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", goalMapID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GoalMap{}, fmt.Errorf("load goal map %s: %w", goalMapID, domain.ErrGoalMapNotFound)
	}
	if err != nil {
		return domain.GoalMap{}, fmt.Errorf("load goal map: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetGoalMap(ctx context.Context, goalMapID string) (domain.GoalMap, error) {
	return s.LoadGoalMap(ctx, goalMapID)
}

func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	var row assignmentRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", assignmentID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Assignment{}, fmt.Errorf("get assignment %s: %w", assignmentID, domain.ErrAssignmentNotFound)
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return domain.Assignment{ID: row.ID, Title: row.Title, GoalMapID: row.GoalMapID, CreatedBy: row.CreatedBy}, nil
}

func (s *Store) GetLearnerMap(ctx context.Context, assignmentID, userID string) (domain.LearnerMap, error) {
	row, err := selectLearnerMap(ctx, s.db, assignmentID, userID)
	if err != nil {
		return domain.LearnerMap{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) SaveLearnerMap(ctx context.Context, lm domain.LearnerMap) (domain.LearnerMap, error) {
	var saved domain.LearnerMap
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := selectLearnerMap(ctx, tx, lm.AssignmentID, lm.UserID)
		if errors.Is(err, domain.ErrLearnerMapNotFound) {
			row := newLearnerMapRow(lm)
			if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
				return fmt.Errorf("insert learner map: %w", err)
			}
			saved = row.toDomain()
			return nil
		}
		if err != nil {
			return err
		}
		if existing.Status != string(domain.StatusDraft) {
			return domain.ErrAlreadySubmitted
		}

		existing.Nodes = nonNil(lm.Nodes)
		existing.Edges = nonNil(lm.Edges)
		existing.ControlText = lm.ControlText
		existing.UpdatedAt = lm.UpdatedAt
		res, err := tx.NewUpdate().Model(&existing).
			Column("nodes", "edges", "control_text", "updated_at").
			WherePK().
			Where("status = ?", string(domain.StatusDraft)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update learner map: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrAlreadySubmitted
		}
		saved = existing.toDomain()
		return nil
	})
	if err != nil {
		return domain.LearnerMap{}, err
	}
	return saved, nil
}

func (s *Store) SubmitLearnerMap(ctx context.Context, learnerMapID string, attempt int, at time.Time, diag *domain.Diagnosis) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*learnerMapRow)(nil)).
			Set("status = ?", string(domain.StatusSubmitted)).
			Set("submitted_at = ?", at).
			Set("updated_at = ?", at).
			Where("id = ?", learnerMapID).
			Where("status = ?", string(domain.StatusDraft)).
			Where("attempt = ?", attempt).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("submit learner map: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			exists, err := learnerMapExists(ctx, tx, learnerMapID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrLearnerMapNotFound
			}
			return domain.ErrAlreadySubmitted
		}
		if diag == nil {
			return nil
		}
		row := newDiagnosisRow(*diag)
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert diagnosis: %w", err)
		}
		return nil
	})
}

func (s *Store) StartNewAttempt(ctx context.Context, learnerMapID string, attempt int, at time.Time) (domain.LearnerMap, error) {
	var reopened learnerMapRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*learnerMapRow)(nil)).
			Set("status = ?", string(domain.StatusDraft)).
			Set("attempt = attempt + 1").
			Set("submitted_at = NULL").
			Set("updated_at = ?", at).
			Where("id = ?", learnerMapID).
			Where("status = ?", string(domain.StatusSubmitted)).
			Where("attempt = ?", attempt).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("start new attempt: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			exists, err := learnerMapExists(ctx, tx, learnerMapID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrNoPreviousAttempt
			}
			return domain.ErrPreviousAttemptNotSubmitted
		}
		return tx.NewSelect().Model(&reopened).Where("id = ?", learnerMapID).Scan(ctx)
	})
	if err != nil {
		return domain.LearnerMap{}, err
	}
	return reopened.toDomain(), nil
}

func (s *Store) ListLearnerMaps(ctx context.Context, assignmentID string) ([]domain.LearnerMap, error) {
	return s.listLearnerMaps(ctx, assignmentID, nil)
}

func (s *Store) ListSubmittedLearnerMaps(ctx context.Context, assignmentID string) ([]domain.LearnerMap, error) {
	return s.listLearnerMaps(ctx, assignmentID, []string{string(domain.StatusSubmitted), string(domain.StatusGraded)})
}

func (s *Store) ListDiagnoses(ctx context.Context, assignmentID string) ([]domain.Diagnosis, error) {
	ids := s.db.NewSelect().Model((*learnerMapRow)(nil)).
		Column("id").
		Where("assignment_id = ?", assignmentID)

	var rows []diagnosisRow
	err := s.db.NewSelect().Model(&rows).
		Where("learner_map_id IN (?)", ids).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	return diagnosesToDomain(rows), nil
}

func (s *Store) ListLearnerMapDiagnoses(ctx context.Context, learnerMapID string) ([]domain.Diagnosis, error) {
	var rows []diagnosisRow
	err := s.db.NewSelect().Model(&rows).
		Where("learner_map_id = ?", learnerMapID).
		Order("attempt ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list learner map diagnoses: %w", err)
	}
	return diagnosesToDomain(rows), nil
}

func (s *Store) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(userIDs)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("display names: %w", err)
	}
	for _, r := range rows {
		names[r.ID] = r.Name
	}
	return names, nil
}

func (s *Store) listLearnerMaps(ctx context.Context, assignmentID string, statuses []string) ([]domain.LearnerMap, error) {
	var rows []learnerMapRow
	q := s.db.NewSelect().Model(&rows).Where("assignment_id = ?", assignmentID)
	if len(statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if err := q.Order("user_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list learner maps: %w", err)
	}
	out := make([]domain.LearnerMap, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func selectLearnerMap(ctx context.Context, db bun.IDB, assignmentID, userID string) (learnerMapRow, error) {
	var row learnerMapRow
	err := db.NewSelect().Model(&row).
		Where("assignment_id = ?", assignmentID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return learnerMapRow{}, domain.ErrLearnerMapNotFound
	}
	if err != nil {
		return learnerMapRow{}, fmt.Errorf("get learner map: %w", err)
	}
	return row, nil
}

func learnerMapExists(ctx context.Context, db bun.IDB, learnerMapID string) (bool, error) {
	exists, err := db.NewSelect().Model((*learnerMapRow)(nil)).Where("id = ?", learnerMapID).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check learner map: %w", err)
	}
	return exists, nil
}

func diagnosesToDomain(rows []diagnosisRow) []domain.Diagnosis {
	out := make([]domain.Diagnosis, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
