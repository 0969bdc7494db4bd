package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiranshivaraju/repograder/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Submissions ---

func (s *PostgresStore) GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	err := s.pool.QueryRow(ctx,
		`SELECT s.id, s.project_id, p.name, s.repo_url, s.status, s.created_at, s.updated_at
		 FROM submissions s JOIN projects p ON p.id = s.project_id
		 WHERE s.id = $1`, id,
	).Scan(&sub.ID, &sub.ProjectID, &sub.ProjectName, &sub.RepoURL, &sub.Status, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// UpdateSubmissionStatus moves a submission to status. Setting the status it
// already has is a no-op; any other move must be allowed by models.CanTransition.
func (s *PostgresStore) UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, status string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("update submission status: %w: %w", ErrPersistence, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM submissions WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get submission status: %w: %w", ErrPersistence, err)
	}
	if current == status {
		return nil
	}
	if !models.CanTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, s.now().UTC()); err != nil {
		return fmt.Errorf("update submission status: %w: %w", ErrPersistence, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit submission status: %w: %w", ErrPersistence, err)
	}
	return nil
}

// --- Projects ---

func (s *PostgresStore) GetProjectWithCriteria(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_number, name, description, expected_timeline_days, tech_stack, created_at, updated_at
		 FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.ProjectNumber, &p.Name, &p.Description, &p.ExpectedTimelineDays, &p.TechStack,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, criterion_name, category, weight, what_to_check,
		        rubric_1, rubric_2, rubric_3, rubric_4, display_order
		 FROM project_criteria WHERE project_id = $1
		 ORDER BY display_order ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list project criteria: %w", err)
	}
	defer rows.Close()

	p.Criteria = []models.Criterion{}
	for rows.Next() {
		var c models.Criterion
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.CriterionName, &c.Category, &c.Weight, &c.WhatToCheck,
			&c.Rubric1, &c.Rubric2, &c.Rubric3, &c.Rubric4, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		p.Criteria = append(p.Criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list project criteria: %w", err)
	}
	return &p, nil
}

// --- Evaluations ---

func (s *PostgresStore) SaveEvaluation(ctx context.Context, ev *models.Evaluation, scores []models.CriterionScore) error {
	now := s.now().UTC()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.EvaluationType == "" {
		ev.EvaluationType = models.EvaluationTypeAIGenerated
	}
	if ev.WhatWorkedWell == nil {
		ev.WhatWorkedWell = []string{}
	}
	if ev.OpportunitiesForImprovement == nil {
		ev.OpportunitiesForImprovement = []models.Improvement{}
	}
	ev.CreatedAt = now
	ev.IsCurrent = true

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save evaluation: %w: %w", ErrPersistence, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE evaluations SET is_current = FALSE WHERE submission_id = $1 AND is_current`,
		ev.SubmissionID); err != nil {
		return fmt.Errorf("demote current evaluation: %w: %w", ErrPersistence, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO evaluations (id, submission_id, evaluation_type, overall_score, what_worked_well,
		   opportunities_for_improvement, development_observations, ai_model_used, is_current, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9)`,
		ev.ID, ev.SubmissionID, ev.EvaluationType, ev.OverallScore, ev.WhatWorkedWell,
		ev.OpportunitiesForImprovement, ev.DevelopmentObservations, ev.AIModelUsed, now)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("save evaluation: %w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("insert evaluation: %w: %w", ErrPersistence, err)
	}

	for i := range scores {
		sc := &scores[i]
		if sc.ID == uuid.Nil {
			sc.ID = uuid.New()
		}
		if sc.CodeReferences == nil {
			sc.CodeReferences = []models.CodeReference{}
		}
		sc.EvaluationID = ev.ID
		sc.CreatedAt = now
		if _, err := tx.Exec(ctx,
			`INSERT INTO criterion_scores (id, evaluation_id, criterion_id, score, reasoning, code_references, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sc.ID, sc.EvaluationID, sc.CriterionID, sc.Score, sc.Reasoning, sc.CodeReferences, now); err != nil {
			return fmt.Errorf("insert criterion score %s: %w: %w", sc.CriterionID, ErrPersistence, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit evaluation: %w: %w", ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) GetCurrentEvaluation(ctx context.Context, submissionID uuid.UUID) (*models.Evaluation, error) {
	var ev models.Evaluation
	err := s.pool.QueryRow(ctx,
		`SELECT id, submission_id, evaluation_type, overall_score, what_worked_well,
		        opportunities_for_improvement, development_observations, ai_model_used, is_current, created_at
		 FROM evaluations WHERE submission_id = $1 AND is_current
		 ORDER BY created_at DESC LIMIT 1`, submissionID,
	).Scan(&ev.ID, &ev.SubmissionID, &ev.EvaluationType, &ev.OverallScore, &ev.WhatWorkedWell,
		&ev.OpportunitiesForImprovement, &ev.DevelopmentObservations, &ev.AIModelUsed, &ev.IsCurrent, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current evaluation: %w", err)
	}
	return &ev, nil
}

// ListCriterionScores returns the scores of an evaluation in rubric display order.
func (s *PostgresStore) ListCriterionScores(ctx context.Context, evaluationID uuid.UUID) ([]*models.CriterionScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cs.id, cs.evaluation_id, cs.criterion_id, cs.score, cs.reasoning, cs.code_references, cs.created_at
		 FROM criterion_scores cs JOIN project_criteria pc ON pc.id = cs.criterion_id
		 WHERE cs.evaluation_id = $1
		 ORDER BY pc.display_order ASC, cs.id ASC`, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("list criterion scores: %w", err)
	}
	defer rows.Close()

	scores := []*models.CriterionScore{}
	for rows.Next() {
		var sc models.CriterionScore
		if err := rows.Scan(&sc.ID, &sc.EvaluationID, &sc.CriterionID, &sc.Score, &sc.Reasoning,
			&sc.CodeReferences, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan criterion score: %w", err)
		}
		scores = append(scores, &sc)
	}
	return scores, rows.Err()
}

// isForeignKeyError checks if a pgx error is a foreign key violation.
func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
