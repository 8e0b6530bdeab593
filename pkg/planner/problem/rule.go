package problem

import (
	"math/rand"
	"sort"

	"github.com/caidan/caidan/pkg/planner/menu"
)

// Repair 规则局部修复时可用的上下文
type Repair struct {
	Rand            *rand.Rand
	RatioChangeRate float64 // 调整份量而非替换食谱的概率
}

// Rule 可打分的约束单元，覆盖一组菜品
// Eval 必须确定且非负，0 表示完全满足
type Rule interface {
	ID() int
	SetID(id int)
	DishIDs() []int64
	MutableDishIDs() []int64
	Eval(s *Solution) int64
	Description(detailed bool) string

	// Improve 尝试在 dishID 上修复该规则，不支持或失败时返回 false
	Improve(s *Solution, dishID int64, rep *Repair) bool

	// 方案修改前后对称调用，用于维护增量缓存
	OnRecipesRemoved(s *Solution, dishID int64)
	OnRecipesAdded(s *Solution, dishID int64)
}

// BaseRule 规则的公共部分，提供默认的空实现
type BaseRule struct {
	id             int
	dishIDs        []int64
	mutableDishIDs []int64
}

// NewBaseRule 创建规则基础部分，dishIDs 会被排序
func NewBaseRule(m *menu.Index, dishIDs []int64) BaseRule {
	ids := append([]int64(nil), dishIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var mutables []int64
	for _, id := range ids {
		if m.IsMutable(id) {
			mutables = append(mutables, id)
		}
	}
	return BaseRule{id: -1, dishIDs: ids, mutableDishIDs: mutables}
}

func (r *BaseRule) ID() int                 { return r.id }
func (r *BaseRule) SetID(id int)            { r.id = id }
func (r *BaseRule) DishIDs() []int64        { return r.dishIDs }
func (r *BaseRule) MutableDishIDs() []int64 { return r.mutableDishIDs }

func (r *BaseRule) Improve(_ *Solution, _ int64, _ *Repair) bool { return false }
func (r *BaseRule) OnRecipesRemoved(_ *Solution, _ int64)        {}
func (r *BaseRule) OnRecipesAdded(_ *Solution, _ int64)          {}

// Constraint 一组同类规则，注册时展开为规则
type Constraint interface {
	ID() int
	SetID(id int)
	InitRules(m *menu.Index) error
	Rules() []Rule
	Description() string
}

// BaseConstraint 约束的公共部分
type BaseConstraint struct {
	id    int
	rules []Rule
}

// NewBaseConstraint 创建约束基础部分
func NewBaseConstraint() BaseConstraint {
	return BaseConstraint{id: -1}
}

func (c *BaseConstraint) ID() int       { return c.id }
func (c *BaseConstraint) SetID(id int)  { c.id = id }
func (c *BaseConstraint) Rules() []Rule { return c.rules }

// AddRule 添加规则
func (c *BaseConstraint) AddRule(r Rule) { c.rules = append(c.rules, r) }

// ClearRules 清空规则
func (c *BaseConstraint) ClearRules() { c.rules = nil }

// IntersectsSorted 两个升序ID列表是否有交集
func IntersectsSorted(a, b []int64) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}
