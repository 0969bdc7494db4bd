package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/repograder/internal/ai"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// DefaultReply is a well-formed evaluation with a single criterion.
const DefaultReply = `Here is the evaluation:
{
  "criterionScores": [
    {
      "criterionId": "crit-1",
      "criterionName": "Code Quality",
      "score": 3,
      "reasoning": "Consistent structure with small gaps in error handling.",
      "codeReferences": [{"file": "main.go", "lines": "10-20", "observation": "errors are wrapped"}]
    }
  ],
  "whatWorkedWell": ["Clear package layout"],
  "opportunitiesForImprovement": [
    {"scoreArea": "Testing", "score": 2, "why": "Few tests", "where": "handlers", "suggestion": "Add table tests"}
  ],
  "overallScore": 3
}`

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	Model_       string
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockProvider) Name() string  { return m.Name_ }
func (m *MockProvider) Model() string { return m.Model_ }

func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// Prompts returns every prompt received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// NewMockProvider returns a MockProvider that answers with DefaultReply.
func NewMockProvider() *MockProvider {
	return NewReplyProvider(DefaultReply)
}

// NewReplyProvider returns a MockProvider that always answers with reply.
func NewReplyProvider(reply string) *MockProvider {
	return &MockProvider{
		Name_:  "mock",
		Model_: "mock-v1",
		GenerateFunc: func(_ context.Context, _ string) (string, error) {
			return reply, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_:  "mock-failing",
		Model_: "mock-v1",
		GenerateFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_:  "mock-timeout",
		Model_: "mock-v1",
		GenerateFunc: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ai.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
