package constraint

import (
	"fmt"

	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/problem"
)

// 营养素平衡约束的默认参数
const (
	DefaultBalanceMinRatio   = 0.9
	DefaultBalanceMaxRatio   = 1.1
	DefaultBalanceCostPerPct = 100
	DefaultBalanceMaxPenalty = 10000
)

// NutrientBalanceConstraint 两种营养素之比需落在 [MinRatio, MaxRatio]，按天或按餐计算
type NutrientBalanceConstraint struct {
	problem.BaseConstraint

	Key         string
	ReferentKey string
	dataID      int
	referentID  int
	MinRatio    float64
	MaxRatio    float64
	CostPerPct  float64
	MaxPenalty  int64 // 任一营养素为0时的代价
	PerMeal     bool
}

// NewNutrientBalanceConstraint 创建营养素平衡约束
func NewNutrientBalanceConstraint(di *model.DataIndexer, key, referentKey string, minRatio, maxRatio, costPerPct float64, maxPenalty int64, perMeal bool) (*NutrientBalanceConstraint, error) {
	dataID, err := di.ID(key)
	if err != nil {
		return nil, err
	}
	referentID, err := di.ID(referentKey)
	if err != nil {
		return nil, err
	}
	return &NutrientBalanceConstraint{
		BaseConstraint: problem.NewBaseConstraint(),
		Key:            key,
		ReferentKey:    referentKey,
		dataID:         dataID,
		referentID:     referentID,
		MinRatio:       minRatio,
		MaxRatio:       maxRatio,
		CostPerPct:     costPerPct,
		MaxPenalty:     maxPenalty,
		PerMeal:        perMeal,
	}, nil
}

func (c *NutrientBalanceConstraint) InitRules(m *menu.Index) error {
	c.ClearRules()
	if c.PerMeal {
		for _, meal := range m.Meals() {
			c.AddRule(&BalanceRule{
				BaseRule: problem.NewBaseRule(m, m.MealDishes(meal)),
				parent:   c,
				label:    fmt.Sprintf("餐次%d", meal),
			})
		}
		return nil
	}
	for _, day := range m.Days() {
		c.AddRule(&BalanceRule{
			BaseRule: problem.NewBaseRule(m, m.DayDishes(day)),
			parent:   c,
			label:    fmt.Sprintf("第%d天", day),
		})
	}
	return nil
}

func (c *NutrientBalanceConstraint) Description() string {
	return fmt.Sprintf("营养素平衡 %s/%s | %g <= x <= %g", c.Key, c.ReferentKey, c.MinRatio, c.MaxRatio)
}

// BalanceRule 一天或一餐内的营养素比例，每次评估时直接计算
type BalanceRule struct {
	problem.BaseRule

	parent *NutrientBalanceConstraint
	label  string
}

func (r *BalanceRule) sum(s *problem.Solution, dataID int) float64 {
	var v float64
	for _, dishID := range r.DishIDs() {
		ratio := s.MainProfileRatio(dishID)
		for _, recipe := range s.Recipes(dishID) {
			v += recipe.Value(dataID, ratio)
		}
	}
	return v
}

func (r *BalanceRule) Eval(s *problem.Solution) int64 {
	c := r.parent
	n := r.sum(s, c.dataID)
	ref := r.sum(s, c.referentID)
	if !(n > 0 && ref > 0) {
		return c.MaxPenalty
	}
	ratio := n / ref
	switch {
	case ratio > c.MaxRatio:
		return int64(100 * c.CostPerPct * (ratio - c.MaxRatio))
	case ratio < c.MinRatio:
		return int64(100 * c.CostPerPct * (c.MinRatio - ratio))
	}
	return 0
}

func (r *BalanceRule) Description(detailed bool) string {
	d := fmt.Sprintf("%s %s/%s", r.label, r.parent.Key, r.parent.ReferentKey)
	if detailed {
		d += fmt.Sprintf(" (菜品 %v)", r.DishIDs())
	}
	return d
}
