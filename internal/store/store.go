package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/repograder/pkg/models"
)

var (
	ErrNotFound = errors.New("resource not found")

	// ErrPersistence wraps any database failure while writing pipeline results.
	ErrPersistence = errors.New("PERSISTENCE_FAILURE")

	ErrInvalidTransition = errors.New("invalid submission status transition")
)

// Store is the data access interface used by the evaluation pipeline and the API.
type Store interface {
	Ping(ctx context.Context) error

	GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, status string) error

	GetProjectWithCriteria(ctx context.Context, id uuid.UUID) (*models.Project, error)

	// SaveEvaluation inserts ev as the current evaluation of its submission together
	// with its scores, demoting any previous current evaluation.
	SaveEvaluation(ctx context.Context, ev *models.Evaluation, scores []models.CriterionScore) error
	GetCurrentEvaluation(ctx context.Context, submissionID uuid.UUID) (*models.Evaluation, error)
	ListCriterionScores(ctx context.Context, evaluationID uuid.UUID) ([]*models.CriterionScore, error)
}
