package constraint

import (
	"fmt"

	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/problem"
)

// BudgetConstraint 可变菜品的总价上限（每道菜预算 × 可变菜品数）
type BudgetConstraint struct {
	problem.BaseConstraint

	di            *model.DataIndexer
	MaxPerDish    float64
	CostPerExcess float64
}

// NewBudgetConstraint 创建预算约束
func NewBudgetConstraint(di *model.DataIndexer, maxPerDish, costPerExcess float64) *BudgetConstraint {
	di.Ensure(model.KeyPrice)
	return &BudgetConstraint{
		BaseConstraint: problem.NewBaseConstraint(),
		di:             di,
		MaxPerDish:     maxPerDish,
		CostPerExcess:  costPerExcess,
	}
}

func (c *BudgetConstraint) InitRules(m *menu.Index) error {
	c.ClearRules()
	mutables := m.MutableDishIDs()
	r, err := NewIntervalRule(m, c.di, model.KeyPrice, -1, c.MaxPerDish*float64(len(mutables)), mutables, false)
	if err != nil {
		return err
	}
	r.OverMax = SquaredExcess(c.CostPerExcess)
	r.Label = "预算"
	c.AddRule(r)
	return nil
}

func (c *BudgetConstraint) Description() string {
	return fmt.Sprintf("预算 | 每道菜 <= %g", c.MaxPerDish)
}
