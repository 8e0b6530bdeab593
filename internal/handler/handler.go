// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/caidan/caidan/internal/cache"
	"github.com/caidan/caidan/internal/metrics"
	"github.com/caidan/caidan/internal/middleware"
	"github.com/caidan/caidan/internal/planning"
	"github.com/caidan/caidan/internal/repository"
	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/logger"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/constraint"
)

// Planner 处理器依赖的规划服务
type Planner interface {
	Plan(ctx context.Context, req *planning.PlanRequest) (*planning.PlanResponse, error)
	Evaluate(ctx context.Context, req *planning.PlanRequest) (*planning.PlanResponse, error)
	PlanBatch(ctx context.Context, reqs []*planning.PlanRequest) []planning.BatchResult
	Submit(ctx context.Context, req *planning.PlanRequest) (string, error)
	Result(ctx context.Context, runID string) (*cache.Entry, error)
}

// RunLister 已记录的规划任务查询
type RunLister interface {
	List(ctx context.Context, filter repository.ListFilter) ([]*model.PlanRun, int, error)
}

// HealthCheck 依赖组件的健康检查
type HealthCheck func(ctx context.Context) error

// Handler 规划API处理器
type Handler struct {
	planner     Planner
	timeout     time.Duration
	maxBodySize int64
	metricsPath string
	runs        RunLister
	checks      map[string]HealthCheck
}

// Option 处理器选项
type Option func(*Handler)

// WithTimeout 同步规划请求的最长处理时间，超时返回当时的最优方案
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithMaxBodySize 请求体大小上限
func WithMaxBodySize(n int64) Option {
	return func(h *Handler) { h.maxBodySize = n }
}

// WithMetrics 在 path 上暴露监控指标
func WithMetrics(path string) Option {
	return func(h *Handler) { h.metricsPath = path }
}

// WithRunLister 启用任务列表接口
func WithRunLister(l RunLister) Option {
	return func(h *Handler) { h.runs = l }
}

// WithHealthCheck 添加健康检查项
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

// New 创建处理器
func New(planner Planner, opts ...Option) *Handler {
	h := &Handler{planner: planner, checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes 注册全部路由
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(h.maxBodySize))

	r.Get("/health", h.Health)
	if h.metricsPath != "" {
		r.Method(http.MethodGet, h.metricsPath, metrics.Handler())
	}

	r.Route("/api/v1/plans", func(r chi.Router) {
		r.Post("/", h.Plan)
		r.Post("/async", h.Submit)
		r.Post("/evaluate", h.Evaluate)
		r.Post("/batch", h.Batch)
		r.Get("/{runID}", h.Result)
		if h.runs != nil {
			r.Get("/", h.ListRuns)
		}
	})
	r.Get("/api/v1/constraints/library", h.ConstraintLibrary)
	return r
}

// Plan 同步规划
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	var req planning.PlanRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ctx, cancel := h.solveContext(r)
	defer cancel()

	resp, err := h.planner.Plan(ctx, &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Evaluate 评估给定方案
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req planning.PlanRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := h.planner.Evaluate(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// BatchRequest 批量规划请求
type BatchRequest struct {
	Requests []*planning.PlanRequest `json:"requests"`
}

// Batch 批量同步规划，单个请求的失败写入对应结果
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.Requests) == 0 {
		respondError(w, r, errors.InvalidInput("requests", "至少需要一个规划请求"))
		return
	}
	ctx, cancel := h.solveContext(r)
	defer cancel()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": h.planner.PlanBatch(ctx, req.Requests),
	})
}

// SubmitResponse 异步任务受理结果
type SubmitResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// Submit 提交异步规划任务
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req planning.PlanRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	runID, err := h.planner.Submit(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/plans/"+runID)
	respondJSON(w, http.StatusAccepted, SubmitResponse{RunID: runID, Status: "queued"})
}

// Result 查询异步任务，未结束时返回 202
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	entry, err := h.planner.Result(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if !entry.Status.Finished() {
		status = http.StatusAccepted
	}
	respondJSON(w, status, entry)
}

// ListRuns 分页列出规划任务，支持 status、solver、limit、offset 查询参数
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	runs, total, err := h.runs.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*model.PlanRun{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":   runs,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func parseListFilter(r *http.Request) (repository.ListFilter, error) {
	q := r.URL.Query()
	filter := repository.DefaultListFilter()
	if v := q.Get("status"); v != "" {
		status := model.RunStatus(v)
		switch status {
		case model.RunQueued, model.RunRunning, model.RunSucceeded, model.RunFailed, model.RunCancelled:
			filter = filter.WithStatus(status)
		default:
			return filter, errors.InvalidInput("status", "未知的任务状态: "+v)
		}
	}
	filter.Solver = q.Get("solver")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			return filter, errors.InvalidInput("limit", "必须为 1 到 100 之间的整数")
		}
		filter = filter.WithLimit(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.InvalidInput("offset", "必须为非负整数")
		}
		filter = filter.WithOffset(n)
	}
	return filter, nil
}

// ConstraintLibrary 返回可声明的约束及其参数
func (h *Handler) ConstraintLibrary(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"library": constraint.Library()})
}

// Health 健康检查，任一依赖异常时返回 503
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]string, len(h.checks))
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":     overall,
		"components": components,
		"time":       time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) solveContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if err == context.DeadlineExceeded || err == context.Canceled {
		err = errors.Wrap(err, errors.CodeTimeout, "请求超时或被取消")
	}
	appErr := errors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("服务器内部错误")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
		"fields":  appErr.Fields,
	})
}
