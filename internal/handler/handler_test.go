package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caidan/caidan/internal/cache"
	"github.com/caidan/caidan/internal/planning"
	"github.com/caidan/caidan/internal/repository"
	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

type fakePlanner struct {
	planErr   error
	submitErr error
	entries   map[string]*cache.Entry
	lastCtx   context.Context
}

func (f *fakePlanner) Plan(ctx context.Context, req *planning.PlanRequest) (*planning.PlanResponse, error) {
	f.lastCtx = ctx
	if f.planErr != nil {
		return nil, f.planErr
	}
	return &planning.PlanResponse{RunID: "run-1", Solver: req.Solver, Score: 0}, nil
}

func (f *fakePlanner) Evaluate(_ context.Context, req *planning.PlanRequest) (*planning.PlanResponse, error) {
	if len(req.Initial) == 0 {
		return nil, errors.InvalidInput("initial", "评估需要给定方案")
	}
	return &planning.PlanResponse{Score: 3}, nil
}

func (f *fakePlanner) PlanBatch(_ context.Context, reqs []*planning.PlanRequest) []planning.BatchResult {
	out := make([]planning.BatchResult, len(reqs))
	for i, req := range reqs {
		if req.MainProfileID == 0 {
			out[i].Error = errors.New(errors.CodeValidationFail, "验证失败")
			continue
		}
		out[i].Response = &planning.PlanResponse{RunID: "batch"}
	}
	return out
}

func (f *fakePlanner) Submit(context.Context, *planning.PlanRequest) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "run-async", nil
}

func (f *fakePlanner) Result(_ context.Context, runID string) (*cache.Entry, error) {
	e, ok := f.entries[runID]
	if !ok {
		return nil, errors.NotFound("规划任务", runID)
	}
	return e, nil
}

func newFake() *fakePlanner {
	return &fakePlanner{entries: map[string]*cache.Entry{
		"queued": {RunID: "queued", Status: model.RunQueued},
		"done":   {RunID: "done", Status: model.RunSucceeded, Result: json.RawMessage(`{"score":0}`)},
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestPlanRoutes(t *testing.T) {
	tests := []struct {
		name    string
		planErr error
		body    string
		status  int
		code    string
	}{
		{"规划成功", nil, `{"solver":"naive"}`, http.StatusOK, ""},
		{"请求体无法解析", nil, `{`, http.StatusBadRequest, string(errors.CodeInvalidInput)},
		{"参数验证失败", (&errors.ValidationErrors{Errors: []errors.ValidationError{{Field: "dishes", Message: "必填"}}}).ToAppError(),
			`{}`, http.StatusBadRequest, string(errors.CodeValidationFail)},
		{"定义域为空", errors.EmptyDomain(1, 7, "没有可用食谱"), `{}`, http.StatusUnprocessableEntity, string(errors.CodeEmptyDomain)},
		{"求解超时", context.DeadlineExceeded, `{}`, http.StatusGatewayTimeout, string(errors.CodeTimeout)},
		{"未知错误", assert.AnError, `{}`, http.StatusInternalServerError, string(errors.CodeInternal)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.planErr = tt.planErr
			h := New(fake).Routes()

			rec := do(t, h, http.MethodPost, "/api/v1/plans/", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			if tt.code == "" {
				assert.Equal(t, "run-1", body["run_id"])
				return
			}
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestPlanValidationFields(t *testing.T) {
	fake := newFake()
	fake.planErr = (&errors.ValidationErrors{Errors: []errors.ValidationError{
		{Field: "dishes[0].elements", Message: "至少需要1项"},
	}}).ToAppError()

	rec := do(t, New(fake).Routes(), http.MethodPost, "/api/v1/plans/", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, ok := decodeBody(t, rec)["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "至少需要1项", fields["dishes[0].elements"])
}

func TestPlanTimeout(t *testing.T) {
	fake := newFake()
	h := New(fake, WithTimeout(time.Minute)).Routes()

	rec := do(t, h, http.MethodPost, "/api/v1/plans/", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := fake.lastCtx.Deadline()
	assert.True(t, ok, "同步规划应带超时")
}

func TestSubmit(t *testing.T) {
	t.Run("受理", func(t *testing.T) {
		rec := do(t, New(newFake()).Routes(), http.MethodPost, "/api/v1/plans/async", `{}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "/api/v1/plans/run-async", rec.Header().Get("Location"))
		body := decodeBody(t, rec)
		assert.Equal(t, "run-async", body["run_id"])
		assert.Equal(t, "queued", body["status"])
	})

	t.Run("队列不可用", func(t *testing.T) {
		fake := newFake()
		fake.submitErr = errors.New(errors.CodeQueueFailed, "未配置任务队列")
		rec := do(t, New(fake).Routes(), http.MethodPost, "/api/v1/plans/async", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestResult(t *testing.T) {
	tests := []struct {
		name   string
		runID  string
		status int
	}{
		{"排队中", "queued", http.StatusAccepted},
		{"已完成", "done", http.StatusOK},
		{"不存在", "missing", http.StatusNotFound},
	}
	h := New(newFake()).Routes()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/v1/plans/"+tt.runID, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestEvaluate(t *testing.T) {
	h := New(newFake()).Routes()

	rec := do(t, h, http.MethodPost, "/api/v1/plans/evaluate", `{"initial":[{"dish_id":1,"recipe_ids":[2]}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, decodeBody(t, rec)["score"])

	rec = do(t, h, http.MethodPost, "/api/v1/plans/evaluate", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatch(t *testing.T) {
	h := New(newFake()).Routes()

	rec := do(t, h, http.MethodPost, "/api/v1/plans/batch", `{"requests":[{"main_profile_id":1},{}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	results, ok := decodeBody(t, rec)["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Contains(t, results[0], "response")
	assert.Contains(t, results[1], "error")

	rec = do(t, h, http.MethodPost, "/api/v1/plans/batch", `{"requests":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		check  HealthCheck
		status int
		want   string
	}{
		{"正常", func(context.Context) error { return nil }, http.StatusOK, "ok"},
		{"依赖异常", func(context.Context) error { return assert.AnError }, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(newFake(), WithHealthCheck("redis", tt.check)).Routes()
			rec := do(t, h, http.MethodGet, "/health", "")
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.want, decodeBody(t, rec)["status"])
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	h := New(newFake(), WithMetrics("/metrics")).Routes()
	do(t, h, http.MethodGet, "/health", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	rec = do(t, New(newFake()).Routes(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMaxBodySizeRejected(t *testing.T) {
	h := New(newFake(), WithMaxBodySize(8)).Routes()
	rec := do(t, h, http.MethodPost, "/api/v1/plans/", `{"solver":"naive","seed":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConstraintLibrary(t *testing.T) {
	rec := do(t, New(newFake()).Routes(), http.MethodGet, "/api/v1/constraints/library", "")
	require.Equal(t, http.StatusOK, rec.Code)
	lib, ok := decodeBody(t, rec)["library"].([]interface{})
	require.True(t, ok)
	assert.Len(t, lib, 5)
}

type fakeLister struct {
	got repository.ListFilter
}

func (f *fakeLister) List(_ context.Context, filter repository.ListFilter) ([]*model.PlanRun, int, error) {
	f.got = filter
	return []*model.PlanRun{{Status: model.RunSucceeded, Solver: "darwin"}}, 7, nil
}

func TestListRuns(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		check  func(t *testing.T, f repository.ListFilter)
	}{
		{"默认分页", "", http.StatusOK, func(t *testing.T, f repository.ListFilter) {
			assert.Equal(t, 20, f.Limit)
			assert.Equal(t, 0, f.Offset)
		}},
		{"按状态与求解器", "?status=failed&solver=naive&limit=5&offset=10", http.StatusOK, func(t *testing.T, f repository.ListFilter) {
			assert.Equal(t, model.RunFailed, f.Status)
			assert.Equal(t, "naive", f.Solver)
			assert.Equal(t, 5, f.Limit)
			assert.Equal(t, 10, f.Offset)
		}},
		{"未知状态", "?status=done", http.StatusBadRequest, nil},
		{"limit 过大", "?limit=500", http.StatusBadRequest, nil},
		{"offset 为负", "?offset=-1", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := &fakeLister{}
			h := New(newFake(), WithRunLister(lister)).Routes()
			rec := do(t, h, http.MethodGet, "/api/v1/plans/"+tt.query, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.check == nil {
				return
			}
			tt.check(t, lister.got)
			body := decodeBody(t, rec)
			assert.EqualValues(t, 7, body["total"])
			assert.Len(t, body["runs"], 1)
		})
	}
}

func TestListRunsDisabled(t *testing.T) {
	rec := do(t, New(newFake()).Routes(), http.MethodGet, "/api/v1/plans/", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
