package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a rubric-bearing assignment that submissions are evaluated against.
type Project struct {
	ID                   uuid.UUID   `db:"id"                     json:"id"`
	ProjectNumber        int         `db:"project_number"         json:"project_number"`
	Name                 string      `db:"name"                   json:"name"`
	Description          string      `db:"description"            json:"description"`
	ExpectedTimelineDays int         `db:"expected_timeline_days" json:"expected_timeline_days"`
	TechStack            []string    `db:"tech_stack"             json:"tech_stack"`
	Criteria             []Criterion `db:"-"                      json:"criteria"`
	CreatedAt            time.Time   `db:"created_at"             json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at"             json:"updated_at"`
}

// Criterion is one named, weighted rubric dimension with four ordinal levels.
// Read-only to the evaluation pipeline.
type Criterion struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	ProjectID     uuid.UUID `db:"project_id"     json:"project_id"`
	CriterionName string    `db:"criterion_name" json:"criterion_name"`
	Category      string    `db:"category"       json:"category"`
	Weight        string    `db:"weight"         json:"weight"`
	WhatToCheck   string    `db:"what_to_check"  json:"what_to_check"`
	Rubric1       string    `db:"rubric_1"       json:"rubric_1"`
	Rubric2       string    `db:"rubric_2"       json:"rubric_2"`
	Rubric3       string    `db:"rubric_3"       json:"rubric_3"`
	Rubric4       string    `db:"rubric_4"       json:"rubric_4"`
	DisplayOrder  int       `db:"display_order"  json:"display_order"`
}
