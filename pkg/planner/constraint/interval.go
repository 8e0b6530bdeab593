// Package constraint 实现菜单规划的具体约束
package constraint

import (
	"fmt"
	"strings"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/problem"
)

// CostFunc 计算数值越界的代价
type CostFunc func(r *IntervalRule, value float64) float64

// IntervalRule 对一组菜品某数值属性之和施加 [Min, Max] 区间
// Min 或 Max <= 0 表示不设该边界；部分和由增量缓存维护
type IntervalRule struct {
	problem.BaseRule

	Key        string
	DataID     int
	Min        float64
	Max        float64
	ApplyRatio bool // 按主用餐者份量缩放
	Label      string

	UnderMin CostFunc
	OverMax  CostFunc
}

// NewIntervalRule 创建区间规则，代价默认为线性百分比
func NewIntervalRule(m *menu.Index, di *model.DataIndexer, key string, min, max float64, dishIDs []int64, applyRatio bool) (*IntervalRule, error) {
	if min > 0 && max > 0 && min > max {
		return nil, errors.InvalidInterval(min, max).WithField("key", key)
	}
	id, err := di.ID(key)
	if err != nil {
		return nil, err
	}
	return &IntervalRule{
		BaseRule:   problem.NewBaseRule(m, dishIDs),
		Key:        key,
		DataID:     id,
		Min:        min,
		Max:        max,
		ApplyRatio: applyRatio,
		UnderMin:   LinearUnderMin,
		OverMax:    LinearOverMax,
	}, nil
}

// LinearOverMax 超出上限的百分比（有下限时相对区间宽度）
func LinearOverMax(r *IntervalRule, v float64) float64 {
	if r.Max <= 0 || v <= r.Max {
		return 0
	}
	if r.Min <= 0 {
		return 100 * (v - r.Max) / r.Max
	}
	return 100 * (v - r.Max) / (r.Max - r.Min)
}

// LinearUnderMin 低于下限的百分比
func LinearUnderMin(r *IntervalRule, v float64) float64 {
	if r.Min <= 0 || v >= r.Min {
		return 0
	}
	return 100 * (r.Min - v) / r.Min
}

// SquaredPercent 百分比的平方乘以系数
func SquaredPercent(base CostFunc, costPerPercent float64) CostFunc {
	return func(r *IntervalRule, v float64) float64 {
		pct := base(r, v)
		return pct * pct * costPerPercent
	}
}

// SquaredExcess 超出量的平方乘以系数
func SquaredExcess(costPerUnit float64) CostFunc {
	return func(r *IntervalRule, v float64) float64 {
		if r.Max <= 0 || v <= r.Max {
			return 0
		}
		over := v - r.Max
		return over * over * costPerUnit
	}
}

// ratio 该规则在菜品上使用的份量系数
func (r *IntervalRule) ratio(s *problem.Solution, dishID int64) float64 {
	if !r.ApplyRatio {
		return 1.0
	}
	return s.MainProfileRatio(dishID)
}

// DishValue 一道菜对该规则的贡献
func (r *IntervalRule) DishValue(s *problem.Solution, dishID int64) float64 {
	ratio := r.ratio(s, dishID)
	var v float64
	for _, recipe := range s.Recipes(dishID) {
		v += recipe.Value(r.DataID, ratio)
	}
	return v
}

// Value 当前部分和
func (r *IntervalRule) Value(s *problem.Solution) float64 {
	return s.Buffer(r.ID())
}

// Recompute 从头计算部分和，不使用缓存
func (r *IntervalRule) Recompute(s *problem.Solution) float64 {
	var v float64
	for _, dishID := range r.DishIDs() {
		v += r.DishValue(s, dishID)
	}
	return v
}

func (r *IntervalRule) OnRecipesAdded(s *problem.Solution, dishID int64) {
	s.AddBuffer(r.ID(), r.DishValue(s, dishID))
}

func (r *IntervalRule) OnRecipesRemoved(s *problem.Solution, dishID int64) {
	s.AddBuffer(r.ID(), -r.DishValue(s, dishID))
}

func (r *IntervalRule) Eval(s *problem.Solution) int64 {
	v := r.Value(s)
	if low := int64(r.UnderMin(r, v)); low > 0 {
		return low
	}
	return int64(r.OverMax(r, v))
}

func (r *IntervalRule) Improve(s *problem.Solution, dishID int64, rep *problem.Repair) bool {
	return newImprover(r, s, dishID, rep).apply()
}

func (r *IntervalRule) Description(detailed bool) string {
	var b strings.Builder
	if r.Label != "" {
		b.WriteString(r.Label)
		b.WriteString(" ")
	}
	b.WriteString(r.Key)
	b.WriteString(": ")
	b.WriteString(intervalString(r.Min, r.Max))
	if detailed {
		fmt.Fprintf(&b, " (菜品 %v)", r.DishIDs())
	}
	return b.String()
}

func intervalString(min, max float64) string {
	var b strings.Builder
	if min > 0 {
		fmt.Fprintf(&b, "%g <= ", min)
	}
	b.WriteString("x")
	if max > 0 {
		fmt.Fprintf(&b, " <= %g", max)
	}
	return b.String()
}
