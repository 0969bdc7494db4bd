package prompt

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/repograder/internal/repo"
	"github.com/kiranshivaraju/repograder/internal/sanitize"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

func testProject() *models.Project {
	return &models.Project{
		ID:                   uuid.New(),
		Name:                 "Todo API",
		Description:          "A REST API for todos",
		ExpectedTimelineDays: 14,
		TechStack:            []string{"Go", "PostgreSQL"},
		Criteria: []models.Criterion{
			{
				ID:            uuid.MustParse("11111111-1111-1111-1111-111111111111"),
				CriterionName: "Error Handling",
				Category:      "Code Quality",
				Weight:        "High",
				WhatToCheck:   "Errors are wrapped and returned",
				Rubric1:       "No error handling",
				Rubric2:       "Some errors ignored",
				Rubric3:       "Mostly handled",
				Rubric4:       "Consistently handled",
			},
		},
	}
}

func testPayload(files ...repo.File) *sanitize.Payload {
	p := &sanitize.Payload{Files: files}
	p.GitStats.CommitActivity = models.CommitActivity{Total: 12, ActiveDays: 5, CommitsPerDay: 1.714, Timeline: models.Timeline{Days: 7}}
	p.GitStats.CommitQuality = models.CommitQuality{ConventionalCommitPercentage: 66.6}
	p.GitStats.Branches = models.BranchSummary{Current: "main", Total: 3, FeatureBranches: 2}
	return p
}

func TestBuild_EmbedsProjectRubricAndStats(t *testing.T) {
	out, err := NewBuilder(0, 0).Build(testProject(), testPayload(repo.File{Path: "main.go", Content: "package main"}))
	require.NoError(t, err)

	for _, want := range []string{
		"PROJECT: Todo API",
		"DESCRIPTION: A REST API for todos",
		"EXPECTED TIMELINE: 14 days",
		"TECH STACK: Go, PostgreSQL",
		"- Total Commits: 12",
		"- Active Days: 5 / 7 days",
		"- Commits per Day: 1.71",
		"- Feature Branches: 2",
		"- Conventional Commits: 67%",
		"1. Error Handling (Code Quality - High)",
		"Criterion ID: 11111111-1111-1111-1111-111111111111",
		"What to check: Errors are wrapped and returned",
		"4 (Strongly Agree): Consistently handled",
		"1 (Strongly Disagree): No error handling",
		"--- main.go ---\npackage main",
		`"criterionScores"`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(0, 0)
	p := testPayload(repo.File{Path: "a.go", Content: "a"}, repo.File{Path: "b.go", Content: "b"})
	first, err := b.Build(testProject(), p)
	require.NoError(t, err)
	second, err := b.Build(testProject(), p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_CapsFilesAndCharacters(t *testing.T) {
	b := NewBuilder(2, 4)
	out, err := b.Build(testProject(), testPayload(
		repo.File{Path: "one.go", Content: "abcdefgh"},
		repo.File{Path: "two.go", Content: "äöüßxyz"},
		repo.File{Path: "three.go", Content: "never shown"},
	))
	require.NoError(t, err)

	assert.Contains(t, out, "--- one.go ---\nabcd\n")
	assert.NotContains(t, out, "abcde")
	assert.Contains(t, out, "--- two.go ---\näöüß\n")
	assert.NotContains(t, out, "three.go")
	assert.Contains(t, out, "first 2 files, up to 4 chars each")
}

func TestBuild_MissingProjectDetails(t *testing.T) {
	p := testProject()
	p.TechStack = nil
	p.ExpectedTimelineDays = 0
	out, err := NewBuilder(0, 0).Build(p, testPayload())
	require.NoError(t, err)
	assert.Contains(t, out, "TECH STACK: Not specified")
	assert.Contains(t, out, "EXPECTED TIMELINE: Not specified")
}

func TestTruncateChars(t *testing.T) {
	assert.Equal(t, "héll", truncateChars("héllo", 4))
	assert.Equal(t, "hi", truncateChars("hi", 4))
	assert.Equal(t, "", truncateChars("abc", 0))
	assert.True(t, strings.HasPrefix("日本語テキスト", truncateChars("日本語テキスト", 3)))
}
