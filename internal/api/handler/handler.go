// Package handler implements the HTTP endpoints of the evaluation service.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kiranshivaraju/repograder/internal/api/response"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// Pinger is anything with a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SubmissionGetter loads a single submission.
type SubmissionGetter interface {
	GetSubmission(ctx context.Context, id uuid.UUID) (*models.Submission, error)
}

// submissionID parses the {submissionID} path parameter, writing a 400 on failure.
func submissionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "submissionID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_SUBMISSION_ID",
			"submissionID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func internalError(w http.ResponseWriter) {
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"An unexpected error occurred", nil)
}
