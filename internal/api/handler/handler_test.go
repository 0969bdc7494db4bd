package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/repograder/internal/api/handler"
	"github.com/kiranshivaraju/repograder/internal/queue"
	"github.com/kiranshivaraju/repograder/internal/repo"
	"github.com/kiranshivaraju/repograder/internal/store"
	"github.com/kiranshivaraju/repograder/pkg/models"
)

// ─── fixtures ────────────────────────────────────────────────────────────────

var (
	testSubmissionID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	testProjectID    = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	testEvaluationID = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
	errDB            = errors.New("connection refused")
)

// ─── fakes ───────────────────────────────────────────────────────────────────

type fakeStore struct {
	submissions map[uuid.UUID]*models.Submission
	evaluations map[uuid.UUID]*models.Evaluation
	scores      []*models.CriterionScore
	err         error
	scoresErr   error
	pingErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		submissions: map[uuid.UUID]*models.Submission{},
		evaluations: map[uuid.UUID]*models.Evaluation{},
	}
}

func (f *fakeStore) withSubmission(status string) *fakeStore {
	f.submissions[testSubmissionID] = &models.Submission{
		ID:        testSubmissionID,
		ProjectID: testProjectID,
		RepoURL:   "https://github.com/acme/todo",
		Status:    status,
	}
	return f
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetSubmission(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.submissions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetCurrentEvaluation(_ context.Context, id uuid.UUID) (*models.Evaluation, error) {
	ev, ok := f.evaluations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ev, nil
}

func (f *fakeStore) ListCriterionScores(context.Context, uuid.UUID) ([]*models.CriterionScore, error) {
	return f.scores, f.scoresErr
}

type fakeCache struct {
	statuses map[uuid.UUID]string
	err      error
	pingErr  error
}

func (c *fakeCache) Ping(context.Context) error { return c.pingErr }

func (c *fakeCache) GetSubmissionStatus(_ context.Context, id uuid.UUID) (string, bool, error) {
	if c.err != nil {
		return "", false, c.err
	}
	s, ok := c.statuses[id]
	return s, ok, nil
}

type fakeChecker struct {
	res *repo.AccessResult
	err error
	got string
}

func (f *fakeChecker) CheckAccess(_ context.Context, rawURL string) (*repo.AccessResult, error) {
	f.got = rawURL
	return f.res, f.err
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// serve routes a single request through chi so URL params resolve.
func serve(method, pattern, target string, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data envelope: %s", w.Body.String())
	return data
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %s", w.Body.String())
	return e
}

const (
	evaluatePattern   = "/api/v1/submissions/{submissionID}/evaluate"
	evaluationPattern = "/api/v1/submissions/{submissionID}/evaluation"
	statusPattern     = "/api/v1/submissions/{submissionID}/status"
)

func submissionPath(suffix string) string {
	return "/api/v1/submissions/" + testSubmissionID.String() + "/" + suffix
}

// ─── health ──────────────────────────────────────────────────────────────────

func TestHealth_OK(t *testing.T) {
	w := serve("GET", "/health", "/health",
		handler.NewHealthHandler(newFakeStore(), &fakeCache{}), "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "ok", data["database"])
	assert.Equal(t, "ok", data["cache"])
}

func TestHealth_NoCache(t *testing.T) {
	w := serve("GET", "/health", "/health", handler.NewHealthHandler(newFakeStore(), nil), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disabled", dataBody(t, w)["cache"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	st := newFakeStore()
	st.pingErr = errDB
	w := serve("GET", "/health", "/health", handler.NewHealthHandler(st, &fakeCache{}), "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	e := errBody(t, w)
	assert.Equal(t, "SERVICE_UNAVAILABLE", e["code"])
	details := e["details"].(map[string]any)
	assert.Equal(t, "unreachable", details["database"])
	assert.Equal(t, "ok", details["cache"])
}

func TestHealth_CacheDown(t *testing.T) {
	w := serve("GET", "/health", "/health",
		handler.NewHealthHandler(newFakeStore(), &fakeCache{pingErr: errDB}), "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unreachable", errBody(t, w)["details"].(map[string]any)["cache"])
}

// ─── enqueue ─────────────────────────────────────────────────────────────────

func TestEnqueue_Accepted(t *testing.T) {
	q := queue.New()
	st := newFakeStore().withSubmission(models.SubmissionStatusPending)

	w := serve("POST", evaluatePattern, submissionPath("evaluate"), handler.NewEnqueueHandler(st, q), "")

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := dataBody(t, w)
	job := data["job"].(map[string]any)
	assert.Equal(t, testSubmissionID.String(), job["submission_id"])
	assert.Equal(t, queue.JobStatusPending, job["status"])
	qs := data["queue_status"].(map[string]any)
	assert.Equal(t, float64(1), qs["pending"])
	assert.Equal(t, float64(1), qs["total"])
	assert.True(t, q.Contains(testSubmissionID))
}

func TestEnqueue_AlreadyQueued(t *testing.T) {
	q := queue.New()
	q.Enqueue(testSubmissionID)
	st := newFakeStore().withSubmission(models.SubmissionStatusPending)

	w := serve("POST", evaluatePattern, submissionPath("evaluate"), handler.NewEnqueueHandler(st, q), "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_QUEUED", errBody(t, w)["code"])
	assert.Equal(t, 1, q.Status().Total)
}

func TestEnqueue_RetriesFailedSubmission(t *testing.T) {
	q := queue.New()
	st := newFakeStore().withSubmission(models.SubmissionStatusEvaluationFailed)

	w := serve("POST", evaluatePattern, submissionPath("evaluate"), handler.NewEnqueueHandler(st, q), "")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestEnqueue_ReviewWorkflowStatusRejected(t *testing.T) {
	q := queue.New()
	st := newFakeStore().withSubmission(models.SubmissionStatusReadyToShare)

	w := serve("POST", evaluatePattern, submissionPath("evaluate"), handler.NewEnqueueHandler(st, q), "")

	assert.Equal(t, http.StatusConflict, w.Code)
	e := errBody(t, w)
	assert.Equal(t, "INVALID_STATUS", e["code"])
	assert.Equal(t, models.SubmissionStatusReadyToShare, e["details"].(map[string]any)["submission_status"])
	assert.Zero(t, q.Status().Total)
}

func TestEnqueue_SubmissionNotFound(t *testing.T) {
	q := queue.New()
	w := serve("POST", evaluatePattern, submissionPath("evaluate"), handler.NewEnqueueHandler(newFakeStore(), q), "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SUBMISSION_NOT_FOUND", errBody(t, w)["code"])
	assert.Zero(t, q.Status().Total)
}

func TestEnqueue_InvalidID(t *testing.T) {
	w := serve("POST", evaluatePattern, "/api/v1/submissions/not-a-uuid/evaluate",
		handler.NewEnqueueHandler(newFakeStore(), queue.New()), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SUBMISSION_ID", errBody(t, w)["code"])
}

func TestEnqueue_StoreError(t *testing.T) {
	st := newFakeStore()
	st.err = errDB
	w := serve("POST", evaluatePattern, submissionPath("evaluate"), handler.NewEnqueueHandler(st, queue.New()), "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestQueueStatus(t *testing.T) {
	q := queue.New()
	q.Enqueue(uuid.New())
	q.Enqueue(uuid.New())
	_, ok := q.Dequeue()
	require.True(t, ok)

	w := serve("GET", "/api/v1/queue", "/api/v1/queue", handler.NewQueueStatusHandler(q), "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, float64(1), data["pending"])
	assert.Equal(t, float64(1), data["processing"])
	assert.Equal(t, float64(2), data["total"])
}

// ─── evaluation read ─────────────────────────────────────────────────────────

func TestGetEvaluation_OK(t *testing.T) {
	st := newFakeStore().withSubmission(models.SubmissionStatusAIComplete)
	st.evaluations[testSubmissionID] = &models.Evaluation{
		ID:             testEvaluationID,
		SubmissionID:   testSubmissionID,
		EvaluationType: models.EvaluationTypeAIGenerated,
		OverallScore:   3.25,
		WhatWorkedWell: []string{"Clear package layout"},
		AIModelUsed:    "gemini-2.5-flash",
		IsCurrent:      true,
		CreatedAt:      time.Now(),
	}
	st.scores = []*models.CriterionScore{
		{ID: uuid.New(), EvaluationID: testEvaluationID, CriterionID: uuid.New(), Score: 3, Reasoning: "ok"},
		{ID: uuid.New(), EvaluationID: testEvaluationID, CriterionID: uuid.New(), Score: 4, Reasoning: "good"},
	}

	w := serve("GET", evaluationPattern, submissionPath("evaluation"), handler.NewGetEvaluationHandler(st), "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	ev := data["evaluation"].(map[string]any)
	assert.Equal(t, testEvaluationID.String(), ev["id"])
	assert.Equal(t, 3.25, ev["overall_score"])
	assert.Equal(t, "gemini-2.5-flash", ev["ai_model_used"])
	assert.Len(t, data["criterion_scores"], 2)
}

func TestGetEvaluation_SubmissionNotFound(t *testing.T) {
	w := serve("GET", evaluationPattern, submissionPath("evaluation"),
		handler.NewGetEvaluationHandler(newFakeStore()), "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SUBMISSION_NOT_FOUND", errBody(t, w)["code"])
}

func TestGetEvaluation_NotReadyHints(t *testing.T) {
	cases := []struct {
		status string
		hint   string
	}{
		{models.SubmissionStatusPending, "still in progress"},
		{models.SubmissionStatusEvaluating, "still in progress"},
		{models.SubmissionStatusEvaluationFailed, "may have failed"},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			st := newFakeStore().withSubmission(tc.status)
			w := serve("GET", evaluationPattern, submissionPath("evaluation"), handler.NewGetEvaluationHandler(st), "")

			assert.Equal(t, http.StatusNotFound, w.Code)
			e := errBody(t, w)
			assert.Equal(t, "EVALUATION_NOT_FOUND", e["code"])
			details := e["details"].(map[string]any)
			assert.Equal(t, tc.status, details["submission_status"])
			assert.Contains(t, details["hint"], tc.hint)
		})
	}
}

func TestGetEvaluation_ScoresError(t *testing.T) {
	st := newFakeStore().withSubmission(models.SubmissionStatusAIComplete)
	st.evaluations[testSubmissionID] = &models.Evaluation{ID: testEvaluationID, SubmissionID: testSubmissionID}
	st.scoresErr = errDB

	w := serve("GET", evaluationPattern, submissionPath("evaluation"), handler.NewGetEvaluationHandler(st), "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ─── status ──────────────────────────────────────────────────────────────────

func TestStatus_CacheHit(t *testing.T) {
	st := newFakeStore()
	st.err = errDB // the store must not be consulted
	c := &fakeCache{statuses: map[uuid.UUID]string{testSubmissionID: models.SubmissionStatusEvaluating}}

	w := serve("GET", statusPattern, submissionPath("status"), handler.NewStatusHandler(st, c, queue.New()), "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, models.SubmissionStatusEvaluating, data["status"])
	assert.Equal(t, "cache", data["source"])
	_, hasJob := data["job"]
	assert.False(t, hasJob)
}

func TestStatus_CacheMissFallsBackToStore(t *testing.T) {
	st := newFakeStore().withSubmission(models.SubmissionStatusAIComplete)

	w := serve("GET", statusPattern, submissionPath("status"),
		handler.NewStatusHandler(st, &fakeCache{}, queue.New()), "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, models.SubmissionStatusAIComplete, data["status"])
	assert.Equal(t, "store", data["source"])
}

func TestStatus_CacheErrorFallsBackToStore(t *testing.T) {
	st := newFakeStore().withSubmission(models.SubmissionStatusPending)

	w := serve("GET", statusPattern, submissionPath("status"),
		handler.NewStatusHandler(st, &fakeCache{err: errDB}, queue.New()), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "store", dataBody(t, w)["source"])
}

func TestStatus_IncludesQueuedJob(t *testing.T) {
	st := newFakeStore().withSubmission(models.SubmissionStatusPending)
	q := queue.New()
	q.Enqueue(testSubmissionID)

	w := serve("GET", statusPattern, submissionPath("status"), handler.NewStatusHandler(st, nil, q), "")

	assert.Equal(t, http.StatusOK, w.Code)
	job := dataBody(t, w)["job"].(map[string]any)
	assert.Equal(t, queue.JobStatusPending, job["status"])
}

func TestStatus_NotFound(t *testing.T) {
	w := serve("GET", statusPattern, submissionPath("status"),
		handler.NewStatusHandler(newFakeStore(), &fakeCache{}, queue.New()), "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SUBMISSION_NOT_FOUND", errBody(t, w)["code"])
}

// ─── access check ────────────────────────────────────────────────────────────

func TestCheckAccess_OK(t *testing.T) {
	checker := &fakeChecker{res: &repo.AccessResult{
		Accessible: true, Visibility: "public", DefaultBranch: "main", Owner: "acme", Repo: "todo",
	}}

	w := serve("POST", "/api/v1/repos/access", "/api/v1/repos/access",
		handler.NewCheckAccessHandler(checker), `{"repo_url":"  https://github.com/acme/todo  "}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://github.com/acme/todo", checker.got)
	data := dataBody(t, w)
	assert.Equal(t, true, data["accessible"])
	assert.Equal(t, "main", data["default_branch"])
	assert.Equal(t, "acme", data["owner"])
}

func TestCheckAccess_Private(t *testing.T) {
	checker := &fakeChecker{res: &repo.AccessResult{
		IsPrivate: true, Owner: "acme", Repo: "secret", Reason: repo.ReasonNotAccessible,
	}}

	w := serve("POST", "/api/v1/repos/access", "/api/v1/repos/access",
		handler.NewCheckAccessHandler(checker), `{"repo_url":"https://github.com/acme/secret"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataBody(t, w)
	assert.Equal(t, false, data["accessible"])
	assert.Equal(t, repo.ReasonNotAccessible, data["reason"])
}

func TestCheckAccess_InvalidURL(t *testing.T) {
	checker := &fakeChecker{err: repo.ErrInvalidURL}

	w := serve("POST", "/api/v1/repos/access", "/api/v1/repos/access",
		handler.NewCheckAccessHandler(checker), `{"repo_url":"not a url"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_URL", errBody(t, w)["code"])
}

func TestCheckAccess_MissingURL(t *testing.T) {
	w := serve("POST", "/api/v1/repos/access", "/api/v1/repos/access",
		handler.NewCheckAccessHandler(&fakeChecker{}), `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errBody(t, w)["code"])
}

func TestCheckAccess_MalformedBody(t *testing.T) {
	w := serve("POST", "/api/v1/repos/access", "/api/v1/repos/access",
		handler.NewCheckAccessHandler(&fakeChecker{}), `{"repo_url":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckAccess_UpstreamError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("dial tcp: i/o timeout")}

	w := serve("POST", "/api/v1/repos/access", "/api/v1/repos/access",
		handler.NewCheckAccessHandler(checker), `{"repo_url":"https://github.com/acme/todo"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "GITHUB_UNAVAILABLE", errBody(t, w)["code"])
}
