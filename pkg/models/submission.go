package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubmissionStatusPending          = "pending"
	SubmissionStatusEvaluating       = "evaluating"
	SubmissionStatusAIComplete       = "ai_complete"
	SubmissionStatusEvaluationFailed = "evaluation_failed"
	SubmissionStatusStaffReviewing   = "staff_reviewing"
	SubmissionStatusStaffApproved    = "staff_approved"
	SubmissionStatusReadyToShare     = "ready_to_share"
)

// Submission is a participant's claim that a repository implements a project.
// The evaluation pipeline only drives pending → evaluating → {ai_complete, evaluation_failed};
// the remaining states belong to the staff review workflow.
type Submission struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	ProjectID   uuid.UUID `db:"project_id"   json:"project_id"`
	ProjectName string    `db:"project_name" json:"project_name"`
	RepoURL     string    `db:"repo_url"     json:"repo_url"`
	Status      string    `db:"status"       json:"status"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

var submissionTransitions = map[string][]string{
	SubmissionStatusPending:          {SubmissionStatusEvaluating, SubmissionStatusEvaluationFailed},
	SubmissionStatusEvaluating:       {SubmissionStatusAIComplete, SubmissionStatusEvaluationFailed},
	SubmissionStatusEvaluationFailed: {SubmissionStatusEvaluating, SubmissionStatusEvaluationFailed},
	SubmissionStatusAIComplete:       {SubmissionStatusEvaluating, SubmissionStatusStaffReviewing},
	SubmissionStatusStaffReviewing:   {SubmissionStatusStaffApproved, SubmissionStatusEvaluating},
	SubmissionStatusStaffApproved:    {SubmissionStatusReadyToShare, SubmissionStatusStaffReviewing},
}

// CanTransition reports whether a submission may move from one status to another.
// A retried job flips evaluation_failed back to evaluating, so that edge is allowed.
func CanTransition(from, to string) bool {
	for _, s := range submissionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EvaluationInProgress reports whether an evaluation may still appear for the status.
func EvaluationInProgress(status string) bool {
	return status == SubmissionStatusPending || status == SubmissionStatusEvaluating
}
