package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/repograder/internal/repo"
	"github.com/kiranshivaraju/repograder/internal/store"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// --- store ---

type memStore struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]*models.Submission
	projects    map[uuid.UUID]*models.Project
	evaluations []*models.Evaluation
	scores      map[uuid.UUID][]models.CriterionScore
	history     map[uuid.UUID][]string
	saveErr     error
}

func newMemStore() *memStore {
	return &memStore{
		submissions: map[uuid.UUID]*models.Submission{},
		projects:    map[uuid.UUID]*models.Project{},
		scores:      map[uuid.UUID][]models.CriterionScore{},
		history:     map[uuid.UUID][]string{},
	}
}

func (s *memStore) Ping(context.Context) error { return nil }

func (s *memStore) GetSubmission(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *memStore) UpdateSubmissionStatus(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return store.ErrNotFound
	}
	if sub.Status == status {
		return nil
	}
	if !models.CanTransition(sub.Status, status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, sub.Status, status)
	}
	sub.Status = status
	s.history[id] = append(s.history[id], status)
	return nil
}

func (s *memStore) GetProjectWithCriteria(_ context.Context, id uuid.UUID) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (s *memStore) SaveEvaluation(_ context.Context, ev *models.Evaluation, scores []models.CriterionScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, prev := range s.evaluations {
		if prev.SubmissionID == ev.SubmissionID {
			prev.IsCurrent = false
		}
	}
	ev.ID = uuid.New()
	ev.IsCurrent = true
	s.evaluations = append(s.evaluations, ev)
	s.scores[ev.ID] = scores
	return nil
}

func (s *memStore) GetCurrentEvaluation(_ context.Context, submissionID uuid.UUID) (*models.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.evaluations {
		if ev.SubmissionID == submissionID && ev.IsCurrent {
			return ev, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) ListCriterionScores(_ context.Context, evaluationID uuid.UUID) ([]*models.CriterionScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.CriterionScore{}
	for i := range s.scores[evaluationID] {
		out = append(out, &s.scores[evaluationID][i])
	}
	return out, nil
}

func (s *memStore) status(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[id].Status
}

// --- analyzer ---

type fakeAnalyzer struct {
	mu        sync.Mutex
	root      string
	files     []repo.File
	err       error
	panicRead bool
	cleaned   []string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, rawURL string, id uuid.UUID) (*repo.Analysis, error) {
	if a.err != nil {
		return nil, a.err
	}
	ref, err := repo.ParseRepoURL(rawURL)
	if err != nil {
		return nil, err
	}
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	paths := make([]string, len(a.files))
	for i, f := range a.files {
		paths[i] = f.Path
	}
	return &repo.Analysis{
		SubmissionID: id,
		Ref:          ref,
		LocalPath:    a.root + "/" + id.String(),
		Commits: repo.CommitStats{
			TotalCommits:                 4,
			Start:                        &start,
			End:                          &end,
			Days:                         2,
			ActiveDays:                   2,
			CommitsPerDay:                2,
			ConventionalCommits:          2,
			ConventionalCommitPercentage: 50,
			Commits: []repo.Commit{
				{Hash: "abcdef1234567", Message: "feat: add api (jane@corp.com)", Author: "Jane Roe", Email: "jane@corp.com", Date: end},
			},
		},
		Branches: repo.BranchStats{CurrentBranch: "main", TotalBranches: 2, FeatureBranches: []string{"feature/api"}, Branches: []string{"feature/api", "main"}},
		Files:    paths,
	}, nil
}

func (a *fakeAnalyzer) ReadFiles(_ *repo.Analysis, limit int) []repo.File {
	if a.panicRead {
		panic("disk on fire")
	}
	if len(a.files) > limit {
		return a.files[:limit]
	}
	return a.files
}

func (a *fakeAnalyzer) Cleanup(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleaned = append(a.cleaned, path)
	return nil
}

func (a *fakeAnalyzer) cleanedPaths() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.cleaned...)
}

// --- cache ---

type statusCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newStatusCache() *statusCache { return &statusCache{statuses: map[uuid.UUID]string{}} }

func (c *statusCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (c *statusCache) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (c *statusCache) Delete(context.Context, string) error                      { return nil }
func (c *statusCache) Ping(context.Context) error                                { return nil }
func (c *statusCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func (c *statusCache) SetSubmissionStatus(_ context.Context, id uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[id] = status
	return nil
}

func (c *statusCache) GetSubmissionStatus(_ context.Context, id uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[id]
	return s, ok, nil
}

var errBoom = errors.New("boom")
