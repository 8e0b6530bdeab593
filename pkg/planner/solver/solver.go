// Package solver 提供菜单规划求解器
package solver

import (
	"context"
	"math/rand"
	"time"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/planner/darwin"
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// 求解器名称
const (
	NameNaive  = "naive"
	NameDarwin = darwin.Name
)

// Solver 求解器接口
type Solver interface {
	// Solve 为问题生成方案
	Solve(ctx context.Context, p *problem.Problem) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 求解结果
type Result struct {
	Solution   *problem.Solution `json:"-"`
	Score      *problem.Score    `json:"score"`
	Statistics *Statistics       `json:"statistics"`
	Solver     string            `json:"solver"`
}

// Statistics 求解统计
type Statistics struct {
	Generations         int             `json:"generations"`
	Evaluations         int             `json:"evaluations"`
	Duration            time.Duration   `json:"duration"`
	BestHistory         []int64         `json:"best_history,omitempty"`
	PopulationVariation map[int64]int64 `json:"population_variation,omitempty"`
	StopReason          string          `json:"stop_reason,omitempty"`
}

// New 按名称创建求解器，空名称使用遗传算法
func New(name string, cfg darwin.Config, opts ...darwin.Option) (Solver, error) {
	switch name {
	case "", NameDarwin:
		return NewDarwinSolver(cfg, opts...), nil
	case NameNaive:
		return NewNaiveSolver(0), nil
	}
	return nil, errors.InvalidInput("solver", "未知的求解器: "+name)
}

// NaiveSolver 每道可变菜品随机抽取一次，不做优化
type NaiveSolver struct {
	seed int64
}

// NewNaiveSolver 创建随机求解器，seed 为 0 时使用时间种子
func NewNaiveSolver(seed int64) *NaiveSolver {
	return &NaiveSolver{seed: seed}
}

func (s *NaiveSolver) Name() string { return NameNaive }

func (s *NaiveSolver) Solve(ctx context.Context, p *problem.Problem) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.CheckReady(); err != nil {
		return nil, err
	}
	sol, err := s.draw(random.New(s.seed), p)
	if err != nil {
		return nil, err
	}
	sc, err := p.Eval(sol, true)
	if err != nil {
		return nil, err
	}
	return &Result{
		Solution: sol,
		Score:    sc,
		Solver:   NameNaive,
		Statistics: &Statistics{
			Evaluations: 1,
			Duration:    time.Since(start),
			BestHistory: []int64{sc.Total},
		},
	}, nil
}

// draw 不可变菜品沿用初始方案，其余菜品随机
func (s *NaiveSolver) draw(rng *rand.Rand, p *problem.Problem) (*problem.Solution, error) {
	var sol *problem.Solution
	if initial := p.InitialSolution(); initial != nil {
		sol = initial.Clone()
		sol.InitRuleBuffers()
	} else {
		var err error
		if sol, err = problem.NewSolution(p); err != nil {
			return nil, err
		}
	}
	sol.Randomize(rng)
	if !sol.IsValid(false) {
		return nil, errors.InvalidSolution("不可变菜品缺少初始食谱")
	}
	return sol, nil
}

// DarwinSolver 遗传算法求解器，每次求解创建新的算法实例
type DarwinSolver struct {
	cfg  darwin.Config
	opts []darwin.Option
}

// NewDarwinSolver 创建遗传算法求解器
func NewDarwinSolver(cfg darwin.Config, opts ...darwin.Option) *DarwinSolver {
	return &DarwinSolver{cfg: cfg, opts: opts}
}

func (s *DarwinSolver) Name() string { return NameDarwin }

// Config 算法配置
func (s *DarwinSolver) Config() darwin.Config { return s.cfg }

// Solve 运行遗传算法；被取消时返回当前最优方案和 ctx 的错误
func (s *DarwinSolver) Solve(ctx context.Context, p *problem.Problem) (*Result, error) {
	algo := darwin.New(p, s.cfg, s.opts...)
	sol, solveErr := algo.Solve(ctx)
	if sol == nil {
		return nil, solveErr
	}
	sc, err := p.Eval(sol, true)
	if err != nil {
		return nil, err
	}
	st := algo.Stats()
	return &Result{
		Solution: sol,
		Score:    sc,
		Solver:   NameDarwin,
		Statistics: &Statistics{
			Generations:         st.Generations,
			Evaluations:         st.Evaluations,
			Duration:            st.Duration,
			BestHistory:         st.BestHistory,
			PopulationVariation: st.PopulationVariation,
			StopReason:          st.StopReason,
		},
	}, solveErr
}
