// Package models contains shared data models used across the repograder codebase.
package models

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// AIProvider is the core interface that all generative model integrations must implement.
// Callers depend on this interface, never on a concrete provider.
type AIProvider interface {
	// Generate sends a single prompt and returns the model's free-form text reply.
	Generate(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string
	// Model returns the model identifier used for generation.
	Model() string
}

// AIEvaluation is the structured evaluation parsed out of a model reply,
// or produced offline as a fallback.
type AIEvaluation struct {
	CriterionScores             []AICriterionScore `json:"criterionScores"`
	WhatWorkedWell              []string           `json:"whatWorkedWell"`
	OpportunitiesForImprovement []Improvement      `json:"opportunitiesForImprovement"`
	OverallScore                *FlexFloat         `json:"overallScore,omitempty"`
}

// AICriterionScore is one criterion entry as returned by the model. CriterionID is
// free text and must go through criterion resolution before it can be stored.
type AICriterionScore struct {
	CriterionID    FlexString      `json:"criterionId"`
	CriterionName  FlexString      `json:"criterionName"`
	Score          FlexFloat       `json:"score"`
	Reasoning      string          `json:"reasoning"`
	CodeReferences []CodeReference `json:"codeReferences"`
}

// CodeReference points at a location in the submitted repository.
type CodeReference struct {
	File        string     `json:"file"`
	Lines       FlexString `json:"lines,omitempty"`
	Observation string     `json:"observation,omitempty"`
}

// Improvement is one "opportunity for improvement" entry.
type Improvement struct {
	ScoreArea  string    `json:"scoreArea"`
	Score      FlexFloat `json:"score"`
	Why        string    `json:"why"`
	Where      string    `json:"where"`
	Suggestion string    `json:"suggestion"`
}

// UnmarshalJSON accepts either the object form or a bare string, which is
// kept as the suggestion.
func (i *Improvement) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = Improvement{Suggestion: s}
		return nil
	}
	type plain Improvement
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = Improvement(p)
	return nil
}

// FlexFloat decodes a JSON number or a numeric string ("3.5").
// Models are inconsistent about quoting scores.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// FlexString decodes a JSON string or number as a string.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = FlexString(str)
		return nil
	}
	*s = FlexString(raw)
	return nil
}

// Float returns the overall score or 0 when absent.
func (e *AIEvaluation) Float() float64 {
	if e.OverallScore == nil {
		return 0
	}
	return float64(*e.OverallScore)
}
