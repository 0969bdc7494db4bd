package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/repograder/internal/api/response"
	"github.com/kiranshivaraju/repograder/internal/queue"
	"github.com/kiranshivaraju/repograder/internal/store"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

const (
	hintInProgress = "Evaluation is still in progress"
	hintFailed     = "Evaluation may have failed; re-queue the submission to retry"
)

// EvaluationReader reads stored evaluation results.
type EvaluationReader interface {
	SubmissionGetter
	GetCurrentEvaluation(ctx context.Context, submissionID uuid.UUID) (*models.Evaluation, error)
	ListCriterionScores(ctx context.Context, evaluationID uuid.UUID) ([]*models.CriterionScore, error)
}

// StatusCache is the read side of the submission status mirror.
type StatusCache interface {
	GetSubmissionStatus(ctx context.Context, submissionID uuid.UUID) (string, bool, error)
}

// JobLookup finds the queued job of a submission.
type JobLookup interface {
	Get(submissionID uuid.UUID) (queue.Job, bool)
}

type evaluationResponse struct {
	Evaluation      *models.Evaluation       `json:"evaluation"`
	CriterionScores []*models.CriterionScore `json:"criterion_scores"`
}

type statusResponse struct {
	SubmissionID uuid.UUID  `json:"submission_id"`
	Status       string     `json:"status"`
	Source       string     `json:"source"`
	Job          *queue.Job `json:"job,omitempty"`
}

// NewGetEvaluationHandler returns GET /api/v1/submissions/{submissionID}/evaluation.
func NewGetEvaluationHandler(st EvaluationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := submissionID(w, r)
		if !ok {
			return
		}

		sub, err := st.GetSubmission(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "SUBMISSION_NOT_FOUND",
					"Submission not found", nil)
				return
			}
			slog.Error("get evaluation: loading submission", "submission_id", id, "error", err)
			internalError(w)
			return
		}

		ev, err := st.GetCurrentEvaluation(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				hint := hintFailed
				if models.EvaluationInProgress(sub.Status) {
					hint = hintInProgress
				}
				response.Error(w, http.StatusNotFound, "EVALUATION_NOT_FOUND",
					"No evaluation exists for this submission",
					map[string]string{"submission_status": sub.Status, "hint": hint})
				return
			}
			slog.Error("get evaluation: loading evaluation", "submission_id", id, "error", err)
			internalError(w)
			return
		}

		scores, err := st.ListCriterionScores(r.Context(), ev.ID)
		if err != nil {
			slog.Error("get evaluation: loading scores", "evaluation_id", ev.ID, "error", err)
			internalError(w)
			return
		}

		response.JSON(w, evaluationResponse{Evaluation: ev, CriterionScores: scores})
	}
}

// NewStatusHandler returns GET /api/v1/submissions/{submissionID}/status. The
// cache mirror written by the worker is consulted first; c may be nil.
func NewStatusHandler(subs SubmissionGetter, c StatusCache, jobs JobLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := submissionID(w, r)
		if !ok {
			return
		}

		res := statusResponse{SubmissionID: id}
		if job, ok := jobs.Get(id); ok {
			res.Job = &job
		}

		if c != nil {
			status, hit, err := c.GetSubmissionStatus(r.Context(), id)
			if err != nil {
				slog.Warn("status cache read failed", "submission_id", id, "error", err)
			}
			if hit {
				res.Status, res.Source = status, "cache"
				response.JSON(w, res)
				return
			}
		}

		sub, err := subs.GetSubmission(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "SUBMISSION_NOT_FOUND",
					"Submission not found", nil)
				return
			}
			slog.Error("get status: loading submission", "submission_id", id, "error", err)
			internalError(w)
			return
		}
		res.Status, res.Source = sub.Status, "store"
		response.JSON(w, res)
	}
}
