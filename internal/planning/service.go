package planning

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/caidan/caidan/internal/cache"
	"github.com/caidan/caidan/internal/catalog"
	"github.com/caidan/caidan/internal/metrics"
	"github.com/caidan/caidan/internal/queue"
	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/logger"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/darwin"
	"github.com/caidan/caidan/pkg/planner/solver"
)

// RunRecorder 持久化规划任务记录
type RunRecorder interface {
	Save(ctx context.Context, run *model.PlanRun) error
}

// JobPublisher 投递异步规划任务
type JobPublisher interface {
	Publish(ctx context.Context, job *queue.Job) error
}

// Service 菜单规划服务，可被多个请求并发调用
type Service struct {
	builder        *Builder
	validator      *Validator
	darwinCfg      darwin.Config
	defaultTimeout time.Duration
	store          cache.Store
	recorder       RunRecorder
	publisher      JobPublisher
	profileDir     string
	workers        int
}

// Option 服务选项
type Option func(*Service)

// WithDarwinConfig 设置遗传算法基础配置，请求中的 darwin 字段在此基础上覆盖
func WithDarwinConfig(cfg darwin.Config) Option {
	return func(s *Service) { s.darwinCfg = cfg }
}

// WithDefaultTimeout 请求未指定 timeout_ms 时的求解时间上限
func WithDefaultTimeout(d time.Duration) Option {
	return func(s *Service) { s.defaultTimeout = d }
}

// WithStore 设置任务结果存储
func WithStore(store cache.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithRecorder 设置任务记录持久化
func WithRecorder(r RunRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithPublisher 启用异步任务
func WithPublisher(p JobPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithProfileDir 为每次遗传算法求解写入性能记录文件
func WithProfileDir(dir string) Option {
	return func(s *Service) { s.profileDir = dir }
}

// WithWorkers 批量规划的并发数
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// NewService 创建规划服务
func NewService(cat *catalog.Catalog, opts ...Option) (*Service, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "初始化请求校验器失败")
	}
	s := &Service{
		builder:   NewBuilder(cat),
		validator: v,
		darwinCfg: darwin.DefaultConfig(),
		store:     cache.NewMemoryStore(),
		workers:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	return s, nil
}

// Validate 校验请求
func (s *Service) Validate(req *PlanRequest) error {
	if req == nil {
		return errors.InvalidInput("request", "请求为空")
	}
	return s.validator.Struct(req)
}

// Plan 同步求解；被取消时返回当时的最优方案并标记 partial
func (s *Service) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	run := model.NewPlanRun(uuid.New(), solverName(req), req.Seed)
	run.Request, _ = json.Marshal(req)
	return s.execute(ctx, run, req)
}

// Evaluate 为请求中的初始方案打分，不做优化
func (s *Service) Evaluate(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	if len(req.Initial) == 0 {
		return nil, errors.InvalidInput("initial", "评估需要提供完整方案")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	p, err := s.builder.Build(req, runID, 0)
	if err != nil {
		return nil, err
	}
	if err := p.CheckReady(); err != nil {
		return nil, err
	}
	sol := p.InitialSolution().Clone()
	sol.InitRuleBuffers()
	sc, err := p.Eval(sol, true)
	if err != nil {
		return nil, err
	}

	resp := newResponse(runID, p, &solver.Result{
		Solution:   sol,
		Score:      sc,
		Statistics: &solver.Statistics{Evaluations: 1, BestHistory: []int64{sc.Total}},
	})
	resp.DurationMs = time.Since(start).Milliseconds()
	return resp, nil
}

// BatchResult 批量规划中单个请求的结果
type BatchResult struct {
	Response *PlanResponse    `json:"response,omitempty"`
	Error    *errors.AppError `json:"error,omitempty"`
}

// PlanBatch 并发求解多个请求，结果顺序与请求一致
func (s *Service) PlanBatch(ctx context.Context, reqs []*PlanRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	p := pool.New().WithMaxGoroutines(s.workers)
	for i, req := range reqs {
		i, req := i, req
		p.Go(func() {
			resp, err := s.Plan(ctx, req)
			results[i] = BatchResult{Response: resp, Error: errors.From(err)}
		})
	}
	p.Wait()
	return results
}

// Submit 校验请求并投递异步任务，返回任务ID
func (s *Service) Submit(ctx context.Context, req *PlanRequest) (string, error) {
	if s.publisher == nil {
		return "", errors.New(errors.CodeQueueFailed, "异步规划未启用")
	}
	if err := s.Validate(req); err != nil {
		return "", err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidInput, "序列化请求失败")
	}

	run := model.NewPlanRun(uuid.New(), solverName(req), req.Seed)
	run.Request = raw
	runID := run.ID.String()
	if err := s.store.Put(ctx, &cache.Entry{RunID: runID, Status: model.RunQueued}); err != nil {
		return "", err
	}
	s.record(ctx, run)

	job := &queue.Job{RunID: runID, Request: raw, EnqueuedAt: time.Now()}
	if err := s.publisher.Publish(ctx, job); err != nil {
		run.Finish(model.RunFailed, 0, 0, nil, err)
		s.record(ctx, run)
		s.putQuiet(ctx, &cache.Entry{RunID: runID, Status: model.RunFailed, Error: err.Error()})
		metrics.RecordQueueJob("publish_failed")
		return "", errors.Wrap(err, errors.CodeQueueFailed, "投递规划任务失败")
	}
	metrics.RecordQueueJob(string(model.RunQueued))
	return runID, nil
}

// HandleJob 执行异步任务并写入结果
// 规划本身失败时记录失败状态并返回 nil；只有任务无法解析或结果无法写入时返回错误
func (s *Service) HandleJob(ctx context.Context, job *queue.Job) error {
	id, err := uuid.Parse(job.RunID)
	if err != nil {
		return errors.InvalidInput("run_id", err.Error())
	}
	log := logger.WithContext(logger.ContextWithRunID(ctx, job.RunID))

	var req PlanRequest
	if err := json.Unmarshal(job.Request, &req); err != nil {
		s.putQuiet(ctx, &cache.Entry{RunID: job.RunID, Status: model.RunFailed, Error: "请求格式错误"})
		metrics.RecordQueueJob(string(model.RunFailed))
		return errors.Wrap(err, errors.CodeInvalidInput, "解析规划任务失败")
	}
	if err := s.store.Put(ctx, &cache.Entry{RunID: job.RunID, Status: model.RunRunning}); err != nil {
		return err
	}

	run := model.NewPlanRun(id, solverName(&req), req.Seed)
	run.Request = job.Request
	entry := &cache.Entry{RunID: job.RunID}

	resp, err := s.executeValidated(ctx, run, &req)
	switch {
	case err != nil:
		entry.Status = model.RunFailed
		entry.Error = err.Error()
		if ctx.Err() != nil {
			entry.Status = model.RunCancelled
		}
		log.Warn().Err(err).Msg("异步规划失败")
	default:
		entry.Status = model.RunSucceeded
		if entry.Result, err = json.Marshal(resp); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "序列化规划结果失败")
		}
	}
	metrics.RecordQueueJob(string(entry.Status))
	return s.store.Put(context.WithoutCancel(ctx), entry)
}

// Result 查询异步任务状态与结果
func (s *Service) Result(ctx context.Context, runID string) (*cache.Entry, error) {
	return s.store.Get(ctx, runID)
}

func (s *Service) executeValidated(ctx context.Context, run *model.PlanRun, req *PlanRequest) (*PlanResponse, error) {
	if err := s.Validate(req); err != nil {
		run.Finish(model.RunFailed, 0, 0, nil, err)
		s.record(ctx, run)
		return nil, err
	}
	return s.execute(ctx, run, req)
}

// execute 构造问题、求解并记录任务
func (s *Service) execute(ctx context.Context, run *model.PlanRun, req *PlanRequest) (*PlanResponse, error) {
	start := time.Now()
	runID := run.ID.String()
	name := solverName(req)
	run.Status = model.RunRunning

	resp, err := s.solve(ctx, runID, req)
	elapsed := time.Since(start)
	if err != nil {
		status := model.RunFailed
		if ctx.Err() != nil {
			status = model.RunCancelled
		}
		run.Finish(status, 0, elapsed, nil, err)
		s.record(ctx, run)
		metrics.RecordPlanSolve(name, false, elapsed, 0, 0)
		return nil, err
	}

	body, _ := json.Marshal(resp)
	run.Finish(model.RunSucceeded, resp.Score, elapsed, body, nil)
	if resp.Partial {
		run.Metadata = model.JSONMap{"partial": true}
	}
	s.record(ctx, run)

	generations := 0
	if resp.Statistics != nil {
		generations = resp.Statistics.Generations
	}
	metrics.RecordPlanSolve(name, true, elapsed, generations, resp.Score)
	metrics.RecordDomainRelaxation(resp.RelaxedDishes())
	return resp, nil
}

func (s *Service) solve(ctx context.Context, runID string, req *PlanRequest) (*PlanResponse, error) {
	timeout := req.TimeoutMs
	if timeout == 0 {
		timeout = s.defaultTimeout.Milliseconds()
	}
	p, err := s.builder.Build(req, runID, timeout)
	if err != nil {
		return nil, err
	}

	sv, closeProfile, err := s.newSolver(runID, req)
	if err != nil {
		return nil, err
	}
	defer closeProfile()

	done := metrics.SolveStarted()
	res, err := sv.Solve(ctx, p)
	done()
	if err != nil && (res == nil || ctx.Err() == nil) {
		return nil, err
	}

	resp := newResponse(runID, p, res)
	resp.Partial = err != nil
	return resp, nil
}

// newSolver 按请求创建求解器；返回的函数关闭性能记录文件
func (s *Service) newSolver(runID string, req *PlanRequest) (solver.Solver, func(), error) {
	noop := func() {}
	if req.Solver == solver.NameNaive {
		return solver.NewNaiveSolver(req.Seed), noop, nil
	}

	cfg := req.Darwin.Apply(s.darwinCfg)
	opts := []darwin.Option{darwin.WithSeed(req.Seed)}
	if s.profileDir == "" {
		sv, err := solver.New(req.Solver, cfg, opts...)
		return sv, noop, err
	}

	f, err := os.Create(filepath.Join(s.profileDir, runID+".yaml"))
	if err != nil {
		return nil, noop, errors.Wrap(err, errors.CodeInternal, "创建性能记录文件失败")
	}
	prof := darwin.NewProfiler(f)
	opts = append(opts, darwin.WithProfiler(prof))
	sv, err := solver.New(req.Solver, cfg, opts...)
	closeFn := func() {
		if err := prof.Err(); err != nil {
			logger.Warn().Err(err).Str("run_id", runID).Msg("写入性能记录失败")
		}
		f.Close()
	}
	return sv, closeFn, err
}

// record 保存任务记录，失败只记录日志
func (s *Service) record(ctx context.Context, run *model.PlanRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Save(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn().Err(err).Str("run_id", run.ID.String()).Msg("保存规划任务记录失败")
	}
}

func (s *Service) putQuiet(ctx context.Context, e *cache.Entry) {
	if err := s.store.Put(context.WithoutCancel(ctx), e); err != nil {
		logger.Warn().Err(err).Str("run_id", e.RunID).Msg("写入任务状态失败")
	}
}

func solverName(req *PlanRequest) string {
	if req.Solver == "" {
		return solver.NameDarwin
	}
	return req.Solver
}
