package constraint

import (
	"fmt"
	"sort"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/problem"
)

type mealTimes struct {
	prep, cook, rest float64
}

// TimeConstraint 每餐准备、烹饪、静置总时长上限，代价为超出分钟数的平方乘以系数
type TimeConstraint struct {
	problem.BaseConstraint

	di            *model.DataIndexer
	CostPerMinute float64
	limits        map[int64]mealTimes
}

// NewTimeConstraint 创建时间约束
func NewTimeConstraint(di *model.DataIndexer, costPerMinute float64) (*TimeConstraint, error) {
	for _, key := range []string{model.KeyPrepMinutes, model.KeyCookMinutes, model.KeyRestMinutes} {
		if !di.Has(key) {
			return nil, errors.UnknownDataKey(key)
		}
	}
	return &TimeConstraint{
		BaseConstraint: problem.NewBaseConstraint(),
		di:             di,
		CostPerMinute:  costPerMinute,
		limits:         make(map[int64]mealTimes),
	}, nil
}

// AddMealTimeLimit 设置一餐的时间上限（分钟），均需大于0
func (c *TimeConstraint) AddMealTimeLimit(mealID int64, maxPrep, maxCook, maxRest float64) error {
	if maxPrep <= 0 || maxCook <= 0 || maxRest <= 0 {
		return errors.Config("餐次 %d 的时间上限必须大于0", mealID)
	}
	c.limits[mealID] = mealTimes{prep: maxPrep, cook: maxCook, rest: maxRest}
	return nil
}

// Empty 是否没有任何时间上限
func (c *TimeConstraint) Empty() bool { return len(c.limits) == 0 }

func (c *TimeConstraint) InitRules(m *menu.Index) error {
	c.ClearRules()
	meals := make([]int64, 0, len(c.limits))
	for meal := range c.limits {
		meals = append(meals, meal)
	}
	sort.Slice(meals, func(i, j int) bool { return meals[i] < meals[j] })

	for _, meal := range meals {
		dishes := m.MealDishes(meal)
		if len(dishes) == 0 {
			continue
		}
		limit := c.limits[meal]
		for _, kv := range []struct {
			key string
			max float64
		}{
			{model.KeyPrepMinutes, limit.prep},
			{model.KeyCookMinutes, limit.cook},
			{model.KeyRestMinutes, limit.rest},
		} {
			r, err := NewIntervalRule(m, c.di, kv.key, -1, kv.max, dishes, false)
			if err != nil {
				return err
			}
			r.OverMax = SquaredExcess(c.CostPerMinute)
			r.Label = fmt.Sprintf("餐次%d", meal)
			c.AddRule(r)
		}
	}
	return nil
}

func (c *TimeConstraint) Description() string {
	return fmt.Sprintf("用餐时间 (%d 餐, 每分钟 %g)", len(c.limits), c.CostPerMinute)
}
