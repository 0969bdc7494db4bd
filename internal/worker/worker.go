// Package worker drives queued submissions through the evaluation pipeline:
// clone and analyze, sanitize, evaluate with the model, resolve criteria, persist.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kiranshivaraju/repograder/internal/ai"
	"github.com/kiranshivaraju/repograder/internal/cache"
	"github.com/kiranshivaraju/repograder/internal/criteria"
	"github.com/kiranshivaraju/repograder/internal/observability"
	"github.com/kiranshivaraju/repograder/internal/queue"
	"github.com/kiranshivaraju/repograder/internal/repo"
	"github.com/kiranshivaraju/repograder/internal/sanitize"
	"github.com/kiranshivaraju/repograder/internal/store"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultMaxFiles     = 50
	DefaultStatusTTL    = 24 * time.Hour

	failureWriteTimeout = 10 * time.Second
)

// JobQueue is the subset of *queue.Queue the worker drives.
type JobQueue interface {
	Dequeue() (queue.Job, bool)
	Complete(submissionID uuid.UUID)
	Fail(submissionID uuid.UUID, cause error) (attempts int, removed bool)
}

// RepositoryAnalyzer is the subset of *repo.Analyzer the worker needs.
type RepositoryAnalyzer interface {
	Analyze(ctx context.Context, rawURL string, submissionID uuid.UUID) (*repo.Analysis, error)
	ReadFiles(an *repo.Analysis, limit int) []repo.File
	Cleanup(path string) error
}

// Evaluator produces an evaluation or the fallback; it never fails.
type Evaluator interface {
	Evaluate(ctx context.Context, project *models.Project, payload *sanitize.Payload) ai.Result
}

// Config holds worker settings. Zero values select the defaults.
type Config struct {
	PollInterval time.Duration
	MaxFiles     int
	StatusTTL    time.Duration
}

// Deps are the collaborators of a Worker. Cache may be nil.
type Deps struct {
	Queue     JobQueue
	Store     store.Store
	Cache     cache.Cache
	Analyzer  RepositoryAnalyzer
	Sanitizer *sanitize.Sanitizer
	Evaluator Evaluator
}

// Worker processes at most one job per tick. It is not safe to call Tick
// from more than one goroutine.
type Worker struct {
	cfg    Config
	deps   Deps
	tracer trace.Tracer
}

func New(cfg Config, deps Deps) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = DefaultStatusTTL
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.New(0)
	}
	return &Worker{cfg: cfg, deps: deps, tracer: otel.Tracer(observability.TracerName)}
}

// Run ticks once immediately and then every PollInterval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("evaluation worker started", "poll_interval", w.cfg.PollInterval.String())
	w.Tick(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("evaluation worker stopped")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick dequeues one job and runs it to completion. It reports whether a job
// was processed.
func (w *Worker) Tick(ctx context.Context) bool {
	job, ok := w.deps.Queue.Dequeue()
	if !ok {
		return false
	}

	start := time.Now()
	id := job.SubmissionID
	slog.Info("processing submission", "submission_id", id, "attempt", job.Attempts+1)

	if err := w.safeProcess(ctx, job); err != nil {
		attempts, removed := w.deps.Queue.Fail(id, err)
		slog.Error("evaluation failed",
			"submission_id", id,
			"code", ErrorCode(err),
			"attempt", attempts,
			"abandoned", removed,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		w.markFailed(ctx, id)
		return true
	}

	w.deps.Queue.Complete(id)
	slog.Info("evaluation complete", "submission_id", id, "duration_ms", time.Since(start).Milliseconds())
	return true
}

// safeProcess runs process and turns a panic into an error.
func (w *Worker) safeProcess(ctx context.Context, job queue.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in evaluation", "submission_id", job.SubmissionID, "error", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.process(ctx, job)
}

func (w *Worker) process(ctx context.Context, job queue.Job) (err error) {
	id := job.SubmissionID
	ctx, span := w.tracer.Start(ctx, "worker.tick", trace.WithAttributes(
		attribute.String("submission.id", id.String()),
		attribute.Int("job.attempt", job.Attempts+1),
	))
	defer func() { endSpan(span, err) }()

	if err := w.setStatus(ctx, id, models.SubmissionStatusEvaluating); err != nil {
		return fmt.Errorf("marking submission evaluating: %w", err)
	}

	sub, err := w.deps.Store.GetSubmission(ctx, id)
	if err != nil {
		return fmt.Errorf("loading submission: %w", err)
	}
	project, err := w.deps.Store.GetProjectWithCriteria(ctx, sub.ProjectID)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", sub.ProjectID, err)
	}

	if err := w.evaluate(ctx, sub, project); err != nil {
		return err
	}

	if err := w.setStatus(ctx, id, models.SubmissionStatusAIComplete); err != nil {
		return fmt.Errorf("marking submission complete: %w", err)
	}
	return nil
}

// evaluate owns the clone for its whole lifetime: it is removed on every
// return path, panics included.
func (w *Worker) evaluate(ctx context.Context, sub *models.Submission, project *models.Project) error {
	an, err := w.analyze(ctx, sub)
	if err != nil {
		return err
	}
	defer w.cleanup(an)

	payload := w.sanitize(ctx, an)
	res := w.runAI(ctx, project, payload)
	ev, scores := w.buildEvaluation(sub, project, payload, res)
	return w.persist(ctx, ev, scores)
}

func (w *Worker) analyze(ctx context.Context, sub *models.Submission) (an *repo.Analysis, err error) {
	ctx, span := w.tracer.Start(ctx, "worker.analyze", trace.WithAttributes(attribute.String("repo.url", sub.RepoURL)))
	defer func() { endSpan(span, err) }()

	an, err = w.deps.Analyzer.Analyze(ctx, sub.RepoURL, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("analyzing repository: %w", err)
	}
	span.SetAttributes(
		attribute.Int("repo.commits", an.Commits.TotalCommits),
		attribute.Int("repo.files", len(an.Files)),
	)
	return an, nil
}

func (w *Worker) sanitize(ctx context.Context, an *repo.Analysis) *sanitize.Payload {
	_, span := w.tracer.Start(ctx, "worker.sanitize")
	defer span.End()

	files := w.deps.Analyzer.ReadFiles(an, w.cfg.MaxFiles)
	payload := w.deps.Sanitizer.SanitizeRepository(an, files)
	span.SetAttributes(
		attribute.Int("files.kept", len(payload.Files)),
		attribute.Int("files.excluded", len(payload.ExcludedFiles)),
		attribute.Int("files.dropped", len(payload.DroppedFiles)),
	)
	return payload
}

func (w *Worker) runAI(ctx context.Context, project *models.Project, payload *sanitize.Payload) ai.Result {
	ctx, span := w.tracer.Start(ctx, "worker.ai")
	defer span.End()

	res := w.deps.Evaluator.Evaluate(ctx, project, payload)
	span.SetAttributes(
		attribute.String("ai.model", res.Model),
		attribute.Bool("ai.fallback", res.Fallback),
	)
	if res.Fallback {
		span.RecordError(res.Cause)
	}
	return res
}

func (w *Worker) persist(ctx context.Context, ev *models.Evaluation, scores []models.CriterionScore) (err error) {
	ctx, span := w.tracer.Start(ctx, "worker.persist", trace.WithAttributes(attribute.Int("scores", len(scores))))
	defer func() { endSpan(span, err) }()

	if err := w.deps.Store.SaveEvaluation(ctx, ev, scores); err != nil {
		return fmt.Errorf("saving evaluation: %w", err)
	}
	slog.Info("evaluation saved",
		"submission_id", ev.SubmissionID,
		"evaluation_id", ev.ID,
		"overall_score", ev.OverallScore,
		"scores", len(scores),
		"fallback", ev.DevelopmentObservations.EvaluationError,
	)
	return nil
}

// buildEvaluation converts the AI result into the rows to persist. Scores whose
// criterion cannot be resolved are dropped; a second score for an already
// scored criterion is ignored.
func (w *Worker) buildEvaluation(sub *models.Submission, project *models.Project, payload *sanitize.Payload, res ai.Result) (*models.Evaluation, []models.CriterionScore) {
	resolver := criteria.NewResolver(project.Criteria)
	seen := make(map[uuid.UUID]bool, len(res.Evaluation.CriterionScores))
	scores := make([]models.CriterionScore, 0, len(res.Evaluation.CriterionScores))

	for _, s := range res.Evaluation.CriterionScores {
		match, err := resolver.Resolve(string(s.CriterionID), string(s.CriterionName))
		if err != nil {
			slog.Warn("dropping criterion score",
				"submission_id", sub.ID,
				"code", ErrorCode(err),
				"criterion_id", string(s.CriterionID),
				"criterion_name", string(s.CriterionName),
			)
			continue
		}
		if seen[match.CriterionID] {
			slog.Warn("duplicate criterion score ignored", "submission_id", sub.ID, "criterion_id", match.CriterionID)
			continue
		}
		seen[match.CriterionID] = true
		scores = append(scores, models.CriterionScore{
			CriterionID:    match.CriterionID,
			Score:          clampScore(float64(s.Score)),
			Reasoning:      s.Reasoning,
			CodeReferences: s.CodeReferences,
		})
	}

	obs := models.DevelopmentObservations{
		CommitActivity:  payload.GitStats.CommitActivity,
		CommitQuality:   payload.GitStats.CommitQuality,
		Branches:        payload.GitStats.Branches,
		Sanitization:    w.deps.Sanitizer.Report(payload),
		EvaluationError: res.Fallback,
	}
	if res.Fallback {
		obs.ErrorMessage = ai.FallbackErrorDetail
	}

	ev := &models.Evaluation{
		SubmissionID:                sub.ID,
		EvaluationType:              models.EvaluationTypeAIGenerated,
		OverallScore:                clampScore(math.Round(res.Evaluation.Float()*100) / 100),
		WhatWorkedWell:              res.Evaluation.WhatWorkedWell,
		OpportunitiesForImprovement: res.Evaluation.OpportunitiesForImprovement,
		DevelopmentObservations:     obs,
		AIModelUsed:                 res.Model,
	}
	return ev, scores
}

func (w *Worker) cleanup(an *repo.Analysis) {
	if err := w.deps.Analyzer.Cleanup(an.LocalPath); err != nil {
		slog.Error("removing clone", "submission_id", an.SubmissionID, "path", an.LocalPath, "error", err)
	}
}

// setStatus writes the submission status and mirrors it into the cache.
func (w *Worker) setStatus(ctx context.Context, id uuid.UUID, status string) error {
	if err := w.deps.Store.UpdateSubmissionStatus(ctx, id, status); err != nil {
		return err
	}
	if w.deps.Cache != nil {
		if err := w.deps.Cache.SetSubmissionStatus(ctx, id, status, w.cfg.StatusTTL); err != nil {
			slog.Warn("caching submission status", "submission_id", id, "status", status, "error", err)
		}
	}
	return nil
}

// markFailed records evaluation_failed even if ctx was cancelled mid-run.
func (w *Worker) markFailed(ctx context.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	if err := w.setStatus(ctx, id, models.SubmissionStatusEvaluationFailed); err != nil {
		slog.Error("marking submission failed", "submission_id", id, "error", err)
	}
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(4, v))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
	}
	span.End()
}

// ErrorCode maps an error onto the pipeline's error taxonomy.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, repo.ErrInvalidURL):
		return "INVALID_URL"
	case errors.Is(err, repo.ErrCloneFailure):
		return "CLONE_FAILURE"
	case errors.Is(err, repo.ErrAccessDenied):
		return "ACCESS_DENIED"
	case errors.Is(err, repo.ErrAnalysis):
		return "ANALYSIS_FAILURE"
	case errors.Is(err, ai.ErrParseFailure):
		return "PARSE_FAILURE"
	case errors.Is(err, ai.ErrServiceFailure):
		return "AI_SERVICE_FAILURE"
	case errors.Is(err, criteria.ErrUnresolved):
		return "CRITERION_UNRESOLVED"
	case errors.Is(err, store.ErrPersistence):
		return "PERSISTENCE_FAILURE"
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, store.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	default:
		return "INTERNAL_ERROR"
	}
}
