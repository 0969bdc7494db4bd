package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/kiranshivaraju/repograder/internal/prompt"
	"github.com/kiranshivaraju/repograder/internal/sanitize"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

const (
	FallbackReasoning   = "Automatic evaluation failed. Manual review required."
	FallbackStrength    = "Automatic evaluation unavailable - requires manual review"
	FallbackErrorDetail = "AI evaluation service failed, fallback evaluation used"
)

// Result is the outcome of the AI stage. Exactly one of two shapes:
// a parsed model evaluation (Fallback false, Cause nil) or the deterministic
// fallback (Fallback true, Cause set).
type Result struct {
	Evaluation *models.AIEvaluation
	Model      string
	Fallback   bool
	Cause      error
}

// Client turns a project and a sanitized payload into an evaluation.
type Client struct {
	provider      models.AIProvider
	builder       *prompt.Builder
	timeout       time.Duration
	transcriptDir string
	now           func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTranscriptDir writes every prompt and raw reply under dir.
func WithTranscriptDir(dir string) Option {
	return func(c *Client) { c.transcriptDir = dir }
}

// NewClient creates a Client. timeout bounds a single model call.
func NewClient(provider models.AIProvider, builder *prompt.Builder, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		builder:  builder,
		timeout:  timeout,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the model identifier recorded on generated evaluations.
func (c *Client) Model() string {
	return c.provider.Model()
}

// Generate renders the prompt, calls the model and parses its reply. Errors
// wrap ErrServiceFailure or ErrParseFailure.
func (c *Client) Generate(ctx context.Context, project *models.Project, payload *sanitize.Payload) (*models.AIEvaluation, error) {
	text, err := c.builder.Build(project, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceFailure, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stamp := c.now().UTC().Format("20060102T150405.000000000Z")
	c.writeTranscript("prompt_"+stamp+".txt", text)

	start := time.Now()
	slog.Info("requesting evaluation",
		"provider", c.provider.Name(),
		"model", c.provider.Model(),
		"prompt_chars", len(text),
		"files", len(payload.Files),
		"criteria", len(project.Criteria),
	)
	reply, err := c.provider.Generate(callCtx, text)
	if err != nil {
		return nil, classifyError(callCtx, err)
	}
	slog.Info("evaluation received",
		"provider", c.provider.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
		"response_chars", len(reply),
	)
	c.writeTranscript("response_"+stamp+".txt", reply)

	return ParseResponse(reply)
}

// Fallback builds the deterministic placeholder evaluation: every criterion
// scored zero with a manual-review note. It never fails.
func (c *Client) Fallback(project *models.Project) *models.AIEvaluation {
	return Fallback(project)
}

// Fallback is the package-level form of Client.Fallback.
func Fallback(project *models.Project) *models.AIEvaluation {
	scores := make([]models.AICriterionScore, 0, len(project.Criteria))
	for _, cr := range project.Criteria {
		scores = append(scores, models.AICriterionScore{
			CriterionID:    models.FlexString(cr.ID.String()),
			CriterionName:  models.FlexString(cr.CriterionName),
			Score:          0,
			Reasoning:      FallbackReasoning,
			CodeReferences: []models.CodeReference{},
		})
	}
	zero := models.FlexFloat(0)
	return &models.AIEvaluation{
		CriterionScores: scores,
		WhatWorkedWell:  []string{FallbackStrength},
		OpportunitiesForImprovement: []models.Improvement{{
			ScoreArea:  "System Error",
			Score:      0,
			Why:        "AI evaluation service encountered an error",
			Where:      "N/A",
			Suggestion: "Staff should perform manual code review",
		}},
		OverallScore: &zero,
	}
}

// Evaluate is Generate with the failure branch folded into the fallback.
// It is the only place an AI or parse error is absorbed.
func (c *Client) Evaluate(ctx context.Context, project *models.Project, payload *sanitize.Payload) Result {
	ev, err := c.Generate(ctx, project, payload)
	if err != nil {
		slog.Warn("ai evaluation failed, using fallback",
			"provider", c.provider.Name(),
			"project_id", project.ID,
			"error", err,
		)
		return Result{
			Evaluation: c.Fallback(project),
			Model:      c.provider.Model() + models.FallbackModelSuffix,
			Fallback:   true,
			Cause:      err,
		}
	}
	return Result{Evaluation: ev, Model: c.provider.Model()}
}

func (c *Client) writeTranscript(name, body string) {
	if c.transcriptDir == "" {
		return
	}
	if err := os.MkdirAll(c.transcriptDir, 0o755); err != nil {
		slog.Warn("creating transcript dir", "dir", c.transcriptDir, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.transcriptDir, name), []byte(body), 0o600); err != nil {
		slog.Warn("writing transcript", "file", name, "error", err)
	}
}

// classifyError maps a provider error onto the AI error taxonomy.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, ErrServiceFailure) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrServiceFailure, err)
}
