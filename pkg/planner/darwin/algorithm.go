package darwin

import (
	"context"
	"math/rand"
	"time"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/logger"
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// Name 算法名称
const Name = "darwin"

// Algorithm 遗传算法求解器，每次求解独占种群与随机数生成器，不可并发调用 Solve
type Algorithm struct {
	problem   *problem.Problem
	cfg       Config
	rng       *rand.Rand
	profiler  *Profiler
	logger    *logger.PlannerLogger
	selection Selection

	randomCrossover   Crossover
	orientedCrossover Crossover
	randomMutation    Mutation
	orientedMutation  Mutation

	pop      *Population
	children []*problem.Solution

	generation           int
	orientedCrossRate    float64
	orientedMutationRate float64
	lastBest             int64
	lost                 int
	start                time.Time
	stats                Stats
}

// Option 算法选项
type Option func(*Algorithm)

// WithSeed 使用固定种子
func WithSeed(seed int64) Option {
	return func(a *Algorithm) { a.rng = random.New(seed) }
}

// WithRand 使用外部随机数生成器
func WithRand(rng *rand.Rand) Option {
	return func(a *Algorithm) { a.rng = rng }
}

// WithProfiler 记录每代最优得分
func WithProfiler(p *Profiler) Option {
	return func(a *Algorithm) { a.profiler = p }
}

// WithLogger 替换日志器
func WithLogger(l *logger.PlannerLogger) Option {
	return func(a *Algorithm) { a.logger = l }
}

// WithCrossovers 替换随机与定向交叉算子
func WithCrossovers(randomOp, oriented Crossover) Option {
	return func(a *Algorithm) {
		a.randomCrossover = randomOp
		a.orientedCrossover = oriented
	}
}

// WithMutations 替换随机与定向变异算子
func WithMutations(randomOp, oriented Mutation) Option {
	return func(a *Algorithm) {
		a.randomMutation = randomOp
		a.orientedMutation = oriented
	}
}

// WithSelection 使用自定义选择策略，覆盖配置中的 selection
func WithSelection(s Selection) Option {
	return func(a *Algorithm) { a.selection = s }
}

// New 创建遗传算法
func New(p *problem.Problem, cfg Config, opts ...Option) *Algorithm {
	a := &Algorithm{
		problem:           p,
		cfg:               cfg,
		logger:            p.Logger(),
		randomCrossover:   RandomMate{},
		orientedCrossover: ProportionalBetterMate{},
		randomMutation:    RandomMutation{},
		orientedMutation:  ScoreOrientedMutation{},
		lastBest:          -1,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = random.New(0)
	}
	return a
}

// Stats 返回最近一次求解的统计信息
func (a *Algorithm) Stats() Stats { return a.stats }

// Solve 运行遗传算法并返回最优方案
// ctx 在每代开始时检查，取消时返回当前最优方案及 ctx 的错误
func (a *Algorithm) Solve(ctx context.Context) (*problem.Solution, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if a.selection == nil {
		sel, err := NewSelection(a.cfg.Selection)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfig, "选择策略无效")
		}
		a.selection = sel
	}
	if err := a.problem.CheckReady(); err != nil {
		return nil, err
	}
	if len(a.problem.Menu().MutableDishIDs()) == 0 {
		return nil, errors.Config("没有可变菜品")
	}

	a.reset()
	a.pop = newPopulation(a.problem, a.rng, a.cfg.RatioChangeRate)
	if err := a.initPopulation(); err != nil {
		return nil, err
	}
	if err := a.pop.evaluate(); err != nil {
		return nil, err
	}
	a.logger.StartSolve(Name, len(a.problem.Menu().DishIDs()), len(a.problem.Rules()), a.cfg.PopulationSize)
	a.start = time.Now()
	if a.profiler != nil {
		if err := a.profiler.Start(a.cfg); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "写入性能记录失败")
		}
	}

	var solveErr error
	for a.shouldContinue(ctx) {
		a.cross()
		a.mutate()
		a.addChildren()
		if err := a.pop.evaluate(); err != nil {
			return nil, err
		}
		a.selection.Select(a.pop, a.cfg.PopulationSize)
	}
	if a.stats.StopReason == StopCancelled {
		solveErr = ctx.Err()
	}

	best := a.pop.Best()
	a.stats.Generations = a.generation
	a.stats.Evaluations = a.pop.evaluations
	a.stats.Improvements = a.pop.improvements
	a.stats.Duration = time.Since(a.start)
	a.stats.computeVariation(a.problem, a.pop.Individuals)
	a.logger.SolveComplete(Name, a.stats.Duration, a.generation, a.pop.Score(best).Total)
	return best, solveErr
}

func (a *Algorithm) reset() {
	a.children = nil
	a.generation = 0
	a.lastBest = -1
	a.lost = 0
	a.stats = Stats{}
}

// initPopulation 从初始方案或空方案出发构建种群
func (a *Algorithm) initPopulation() error {
	p := a.problem
	initial := p.InitialSolution()
	for i := 0; i < a.cfg.PopulationSize; i++ {
		var s *problem.Solution
		if initial != nil {
			s = initial.Clone()
			s.InitRuleBuffers()
		} else {
			var err error
			if s, err = problem.NewSolution(p); err != nil {
				return err
			}
		}
		if p.SticksToInitial() {
			s.RandomizeOutOfDomain(a.rng)
		} else {
			s.InitFromFavorites(a.rng)
		}
		if s.NbDishes() == 0 || !s.IsValid(false) {
			return errors.InvalidSolution("初始种群中的方案无效")
		}
		a.pop.Individuals = append(a.pop.Individuals, s)
	}
	return nil
}

// shouldContinue 更新代数与定向算子比例，判断是否继续下一代
func (a *Algorithm) shouldContinue(ctx context.Context) bool {
	best := a.pop.Score(a.pop.Best()).Total
	if a.profiler != nil {
		a.profiler.Record(best)
	}
	a.stats.BestHistory = append(a.stats.BestHistory, best)

	if best == a.lastBest {
		a.lost++
	} else {
		a.lost = 0
		a.lastBest = best
	}

	a.generation++
	progress := float64(a.generation) / float64(a.cfg.NbGenerations)
	a.orientedCrossRate = a.cfg.OrientedCrossoverRateEnd*progress + a.cfg.OrientedCrossoverRateStart*(1-progress)
	a.orientedMutationRate = a.cfg.OrientedMutationRateEnd*progress + a.cfg.OrientedMutationRateStart*(1-progress)
	a.logger.Generation(a.generation, best, a.lost)

	switch {
	case best == 0:
		a.stats.StopReason = StopOptimal
	case a.lost > a.cfg.MaxLostGenerations:
		a.stats.StopReason = StopStagnation
	case a.timeExceeded():
		a.stats.StopReason = StopTimeout
	case ctx.Err() != nil:
		a.stats.StopReason = StopCancelled
	case a.generation >= a.cfg.NbGenerations:
		a.stats.StopReason = StopGenerations
	default:
		return true
	}
	return false
}

func (a *Algorithm) timeExceeded() bool {
	limit := a.problem.MaxSolvingTime()
	return limit > 0 && time.Since(a.start) > limit
}

func (a *Algorithm) cross() {
	n := int(float64(a.pop.Len()) * a.cfg.CrossoverRate)
	for i := 0; i < n; i++ {
		individual := random.Pick(a.rng, a.pop.Individuals)
		op := a.randomCrossover
		if a.pop.Score(individual).Total > 0 && random.InPercentage(a.rng, a.orientedCrossRate) {
			op = a.orientedCrossover
		}
		kids := op.Cross(a.pop, individual)
		a.stats.Crossovers += len(kids)
		a.children = append(a.children, kids...)
	}
}

func (a *Algorithm) mutate() {
	n := int(float64(a.pop.Len()) * a.cfg.MutationRate)
	for i := 0; i < n; i++ {
		individual := random.Pick(a.rng, a.pop.Individuals)
		op := a.randomMutation
		if a.pop.Score(individual).Total > 0 && random.InPercentage(a.rng, a.orientedMutationRate) {
			op = a.orientedMutation
		}
		a.children = append(a.children, op.Mutate(a.pop, individual))
		a.stats.Mutations++
	}
}

func (a *Algorithm) addChildren() {
	a.pop.Individuals = append(a.pop.Individuals, a.children...)
	a.children = nil
}
