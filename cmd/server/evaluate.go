package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/repograder/internal/config"
	"github.com/kiranshivaraju/repograder/internal/observability"
	"github.com/kiranshivaraju/repograder/internal/store"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <submission-id>",
	Short: "Evaluate one submission synchronously",
	Long: "Queues the submission, runs a single worker tick in the foreground and prints " +
		"the resulting evaluation as JSON. Exits non-zero when the evaluation failed.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid submission id %q: %w", args[0], err)
		}
		return runEvaluate(cmd.Context(), id, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

type evaluateOutput struct {
	SubmissionID    uuid.UUID                `json:"submission_id"`
	Status          string                   `json:"status"`
	Evaluation      *models.Evaluation       `json:"evaluation"`
	CriterionScores []*models.CriterionScore `json:"criterion_scores"`
}

func runEvaluate(ctx context.Context, id uuid.UUID, out io.Writer) error {
	cfg, err := config.LoadPipeline()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Telemetry, cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.store.GetSubmission(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("submission %s not found", id)
		}
		return fmt.Errorf("load submission: %w", err)
	}

	a.queue.Enqueue(id)
	a.worker.Tick(ctx)

	sub, err := a.store.GetSubmission(ctx, id)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}
	if sub.Status != models.SubmissionStatusAIComplete {
		job, _ := a.queue.Get(id)
		return fmt.Errorf("evaluation of %s ended in status %s: %s", id, sub.Status, job.LastError)
	}

	ev, err := a.store.GetCurrentEvaluation(ctx, id)
	if err != nil {
		return fmt.Errorf("load evaluation: %w", err)
	}
	scores, err := a.store.ListCriterionScores(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("load criterion scores: %w", err)
	}

	return writeJSON(out, evaluateOutput{
		SubmissionID:    id,
		Status:          sub.Status,
		Evaluation:      ev,
		CriterionScores: scores,
	})
}

func writeJSON(out io.Writer, v any) error {
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
