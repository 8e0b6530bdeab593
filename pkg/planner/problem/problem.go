// Package problem 定义菜单规划问题：约束注册、方案表示与评估
package problem

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/logger"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
)

// Problem 一次规划的全部输入
type Problem struct {
	mu sync.RWMutex

	menu        *menu.Index
	indexer     *model.DataIndexer
	constraints []Constraint
	rules       []Rule
	ruleParent  []int
	rulesByDish map[int64][]Rule

	recipes    []*model.Recipe
	recipeByID map[int64]*model.Recipe
	favorites  []int64

	initial        *Solution
	stickToInitial bool
	maxSolvingTime time.Duration // 0 表示不限

	mainProfileID int64
	profileRatios map[int64]float64
	shares        map[int64]float64 // 菜品 -> 主用餐者所占比例

	logger *logger.PlannerLogger
}

// New 创建规划问题
func New(m *menu.Index, indexer *model.DataIndexer) *Problem {
	return &Problem{
		menu:          m,
		indexer:       indexer,
		rulesByDish:   make(map[int64][]Rule),
		recipeByID:    make(map[int64]*model.Recipe),
		profileRatios: make(map[int64]float64),
		logger:        logger.NewPlannerLogger(),
	}
}

// Menu 返回菜单结构
func (p *Problem) Menu() *menu.Index { return p.menu }

// Indexer 返回数据索引器
func (p *Problem) Indexer() *model.DataIndexer { return p.indexer }

// AddConstraint 注册约束并展开为规则，规则ID连续分配
func (p *Problem) AddConstraint(c Constraint) error {
	if c == nil {
		return errors.Config("不允许空约束")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c.SetID(len(p.constraints))
	if err := c.InitRules(p.menu); err != nil {
		c.SetID(-1)
		return err
	}
	p.constraints = append(p.constraints, c)
	for _, r := range c.Rules() {
		r.SetID(len(p.rules))
		p.rules = append(p.rules, r)
		p.ruleParent = append(p.ruleParent, c.ID())
		for _, dishID := range r.DishIDs() {
			p.rulesByDish[dishID] = append(p.rulesByDish[dishID], r)
		}
	}
	return nil
}

// ClearConstraints 清空全部约束
func (p *Problem) ClearConstraints() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.constraints = nil
	p.rules = nil
	p.ruleParent = nil
	p.rulesByDish = make(map[int64][]Rule)
}

// Constraints 返回已注册的约束
func (p *Problem) Constraints() []Constraint { return p.constraints }

// Rules 返回全部规则，下标即规则ID
func (p *Problem) Rules() []Rule { return p.rules }

// Rule 按ID返回规则
func (p *Problem) Rule(id int) (Rule, error) {
	if id < 0 || id >= len(p.rules) {
		return nil, errors.NotFound("规则", fmt.Sprint(id))
	}
	return p.rules[id], nil
}

// ParentOf 返回规则所属的约束
func (p *Problem) ParentOf(r Rule) Constraint {
	return p.constraints[p.ruleParent[r.ID()]]
}

// RulesForDish 覆盖该菜品的规则
func (p *Problem) RulesForDish(dishID int64) []Rule { return p.rulesByDish[dishID] }

// AssertValidity 检查约束与规则ID唯一且已分配
func (p *Problem) AssertValidity() error {
	seenConstraints := make(map[int]bool)
	seenRules := make(map[int]bool)
	for _, c := range p.constraints {
		if c.ID() < 0 {
			return errors.Config("约束ID未初始化: %s", c.Description())
		}
		if seenConstraints[c.ID()] {
			return errors.Config("约束ID重复: %d", c.ID())
		}
		seenConstraints[c.ID()] = true
		for _, r := range c.Rules() {
			if r.ID() < 0 {
				return errors.Config("规则ID未初始化: %s", r.Description(false))
			}
			if seenRules[r.ID()] {
				return errors.Config("规则ID重复: %d", r.ID())
			}
			if r.ID() >= len(p.rules) || p.rules[r.ID()] != r {
				return errors.Config("规则ID %d 与注册表不一致", r.ID())
			}
			seenRules[r.ID()] = true
		}
	}
	return nil
}

// AddFilter 添加食谱过滤器
func (p *Problem) AddFilter(f menu.Filter) {
	p.menu.AddFilter(f)
}

// BuildDomains 登记食谱目录并建立各菜品的定义域
func (p *Problem) BuildDomains(recipes []*model.Recipe) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recipes = recipes
	p.recipeByID = make(map[int64]*model.Recipe, len(recipes))
	for _, r := range recipes {
		p.recipeByID[r.ID] = r
	}
	if err := p.menu.InitDomains(recipes); err != nil {
		return err
	}
	p.menu.InitBoundedDishes()

	for _, dishID := range p.menu.MutableDishIDs() {
		opts, _ := p.menu.Domains(dishID)
		for _, d := range opts.Options {
			if !d.FullyFiltered {
				p.logger.DomainRelaxed(dishID, len(opts.Options))
				break
			}
		}
	}
	return nil
}

// Recipe 按ID返回食谱
func (p *Problem) Recipe(id int64) (*model.Recipe, bool) {
	r, ok := p.recipeByID[id]
	return r, ok
}

// Recipes 返回食谱目录
func (p *Problem) Recipes() []*model.Recipe { return p.recipes }

// SetMainProfile 设置主用餐者
func (p *Problem) SetMainProfile(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mainProfileID = id
	p.shares = nil
}

// SetProfileRatio 设置用餐者的份量权重
func (p *Problem) SetProfileRatio(profileID int64, ratio float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileRatios[profileID] = ratio
	p.shares = nil
}

// prepareShares 计算每道菜主用餐者所占的份量比例
func (p *Problem) prepareShares() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shares != nil {
		return nil
	}

	mainRatio, ok := p.profileRatios[p.mainProfileID]
	if !ok {
		return errors.MissingProfileRatio(p.mainProfileID)
	}
	shares := make(map[int64]float64, len(p.menu.DishIDs()))
	for _, dishID := range p.menu.DishIDs() {
		dish, _ := p.menu.Dish(dishID)
		var total float64
		for _, profileID := range dish.ProfileIDs {
			ratio, ok := p.profileRatios[profileID]
			if !ok {
				return errors.MissingProfileRatio(profileID)
			}
			total += ratio
		}
		if total <= 0 || mainRatio <= 0 {
			return errors.Config("菜品 %d 的主用餐者份量为零", dishID)
		}
		shares[dishID] = mainRatio / total
	}
	p.shares = shares
	return nil
}

// AddFavoriteRecipe 登记优先使用的食谱（保持升序）
func (p *Problem) AddFavoriteRecipe(recipeID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := sort.Search(len(p.favorites), func(i int) bool { return p.favorites[i] >= recipeID })
	p.favorites = append(p.favorites, 0)
	copy(p.favorites[pos+1:], p.favorites[pos:])
	p.favorites[pos] = recipeID
}

// Favorites 返回优先食谱ID
func (p *Problem) Favorites() []int64 { return p.favorites }

// SetInitialSolution 设置初始方案
func (p *Problem) SetInitialSolution(s *Solution) { p.initial = s }

// InitialSolution 返回初始方案
func (p *Problem) InitialSolution() *Solution { return p.initial }

// StickToInitial 为 true 时只重新随机化不在定义域内的菜品
func (p *Problem) StickToInitial(v bool) { p.stickToInitial = v }

// SticksToInitial 是否保持初始方案
func (p *Problem) SticksToInitial() bool { return p.stickToInitial }

// SetMaxSolvingTime 设置最长求解时间（毫秒），0 表示不限
func (p *Problem) SetMaxSolvingTime(ms int64) {
	p.maxSolvingTime = time.Duration(ms) * time.Millisecond
}

// MaxSolvingTime 最长求解时间
func (p *Problem) MaxSolvingTime() time.Duration { return p.maxSolvingTime }

// Logger 返回规划日志器
func (p *Problem) Logger() *logger.PlannerLogger { return p.logger }

// SetLogger 替换规划日志器
func (p *Problem) SetLogger(l *logger.PlannerLogger) { p.logger = l }

// Eval 评估方案；checkValidity 为 true 且方案结构无效时返回错误
func (p *Problem) Eval(s *Solution, checkValidity bool) (*Score, error) {
	if checkValidity && !s.IsValid(false) {
		return nil, errors.InvalidSolution("方案与菜单结构不一致")
	}
	sc := newScore(len(p.rules), len(p.constraints))
	for _, c := range p.constraints {
		var sum int64
		for _, r := range c.Rules() {
			v := r.Eval(s)
			sc.ByRule[r.ID()] = v
			sum += v
		}
		sc.ByConstraint[c.ID()] = sum
		sc.Total += sum
	}
	return sc, nil
}

// CheckReady 检查问题是否可以开始求解
func (p *Problem) CheckReady() error {
	if len(p.menu.DishIDs()) == 0 {
		return errors.Config("菜单为空")
	}
	if !p.menu.HasDomains() && len(p.menu.MutableDishIDs()) > 0 {
		return errors.Config("定义域尚未建立")
	}
	if err := p.prepareShares(); err != nil {
		return err
	}
	return p.AssertValidity()
}
