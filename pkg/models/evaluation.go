package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EvaluationTypeAIGenerated = "ai_generated"

	// FallbackModelSuffix marks the model string of evaluations produced by the fallback path.
	FallbackModelSuffix = " (fallback)"
)

// Evaluation is one scored, narrative result for a submission. At most one
// evaluation per submission is current; re-evaluation demotes the previous one.
type Evaluation struct {
	ID                          uuid.UUID               `db:"id"                            json:"id"`
	SubmissionID                uuid.UUID               `db:"submission_id"                 json:"submission_id"`
	EvaluationType              string                  `db:"evaluation_type"               json:"evaluation_type"`
	OverallScore                float64                 `db:"overall_score"                 json:"overall_score"`
	WhatWorkedWell              []string                `db:"what_worked_well"              json:"what_worked_well"`
	OpportunitiesForImprovement []Improvement           `db:"opportunities_for_improvement" json:"opportunities_for_improvement"`
	DevelopmentObservations     DevelopmentObservations `db:"development_observations"      json:"development_observations"`
	AIModelUsed                 string                  `db:"ai_model_used"                 json:"ai_model_used"`
	IsCurrent                   bool                    `db:"is_current"                    json:"is_current"`
	CreatedAt                   time.Time               `db:"created_at"                    json:"created_at"`
}

// CriterionScore is a persisted score for one canonical criterion.
// Score is 1..4, or 0 when produced by the fallback evaluation.
type CriterionScore struct {
	ID             uuid.UUID       `db:"id"              json:"id"`
	EvaluationID   uuid.UUID       `db:"evaluation_id"   json:"evaluation_id"`
	CriterionID    uuid.UUID       `db:"criterion_id"    json:"criterion_id"`
	Score          float64         `db:"score"           json:"score"`
	Reasoning      string          `db:"reasoning"       json:"reasoning"`
	CodeReferences []CodeReference `db:"code_references" json:"code_references"`
	CreatedAt      time.Time       `db:"created_at"      json:"created_at"`
}

// DevelopmentObservations is the free-form context stored next to an evaluation:
// redacted git statistics, the sanitization audit, and the fallback flag.
type DevelopmentObservations struct {
	CommitActivity  CommitActivity     `json:"commits"`
	CommitQuality   CommitQuality      `json:"commit_quality"`
	Branches        BranchSummary      `json:"branches"`
	Sanitization    *SanitizationAudit `json:"sanitization,omitempty"`
	EvaluationError bool               `json:"evaluation_error"`
	ErrorMessage    string             `json:"error_message,omitempty"`
}

type CommitActivity struct {
	Total         int          `json:"total"`
	Timeline      Timeline     `json:"timeline"`
	ActiveDays    int          `json:"active_days"`
	CommitsPerDay float64      `json:"commits_per_day"`
	Commits       []CommitInfo `json:"commit_messages"`
}

type Timeline struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Days  int        `json:"days"`
}

// CommitInfo is a commit with author identity removed.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

type CommitQuality struct {
	AverageMessageLength         float64 `json:"average_message_length"`
	ConventionalCommits          int     `json:"conventional_commits"`
	ConventionalCommitPercentage float64 `json:"conventional_commit_percentage"`
}

type BranchSummary struct {
	Current         string   `json:"current"`
	Total           int      `json:"total"`
	FeatureBranches int      `json:"feature_branches"`
	BranchNames     []string `json:"branch_names"`
}

// SanitizationAudit records what the sanitizer removed before AI exposure.
type SanitizationAudit struct {
	EmailsRemoved int       `json:"emails_removed"`
	PhonesRemoved int       `json:"phones_removed"`
	SSNsRemoved   int       `json:"ssns_removed"`
	NamesRemoved  int       `json:"names_removed"`
	ExcludedFiles []string  `json:"excluded_files"`
	DroppedFiles  []string  `json:"dropped_files"`
	Timestamp     time.Time `json:"timestamp"`
}
