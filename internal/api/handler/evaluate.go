package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/repograder/internal/api/response"
	"github.com/kiranshivaraju/repograder/internal/queue"
	"github.com/kiranshivaraju/repograder/internal/store"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// Enqueuer is the part of the job queue the API writes to.
type Enqueuer interface {
	TryEnqueue(submissionID uuid.UUID) (queue.Job, bool)
	Status() queue.Status
}

type enqueueResponse struct {
	Job         queue.Job    `json:"job"`
	QueueStatus queue.Status `json:"queue_status"`
}

// NewEnqueueHandler returns POST /api/v1/submissions/{submissionID}/evaluate.
func NewEnqueueHandler(subs SubmissionGetter, q Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := submissionID(w, r)
		if !ok {
			return
		}

		sub, err := subs.GetSubmission(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "SUBMISSION_NOT_FOUND",
					"Submission not found", nil)
				return
			}
			slog.Error("enqueue: loading submission", "submission_id", id, "error", err)
			internalError(w)
			return
		}

		if sub.Status != models.SubmissionStatusEvaluating &&
			!models.CanTransition(sub.Status, models.SubmissionStatusEvaluating) {
			response.Error(w, http.StatusConflict, "INVALID_STATUS",
				"Submission cannot be evaluated in its current status",
				map[string]string{"submission_status": sub.Status})
			return
		}

		job, added := q.TryEnqueue(id)
		if !added {
			response.Error(w, http.StatusConflict, "ALREADY_QUEUED",
				"Submission is already queued for evaluation", enqueueResponse{Job: job, QueueStatus: q.Status()})
			return
		}

		slog.Info("submission queued for evaluation", "submission_id", id, "project_id", sub.ProjectID)
		response.Accepted(w, enqueueResponse{Job: job, QueueStatus: q.Status()})
	}
}

// NewQueueStatusHandler returns GET /api/v1/queue.
func NewQueueStatusHandler(q Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, q.Status())
	}
}
