package constraint

import (
	"fmt"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/problem"
)

// NutrientConstraint 营养素区间约束：每天一条规则（带容差），以及可选的整周规则
// 代价为越界百分比的平方乘以 CostPerPercent，整周规则代价减半
type NutrientConstraint struct {
	problem.BaseConstraint

	di             *model.DataIndexer
	Key            string
	Min            float64
	Max            float64
	ToleranceMin   float64 // 每日下限容差（比例），不作用于整周规则
	ToleranceMax   float64
	CostPerPercent float64
	Weekly         bool
}

// NewNutrientConstraint 创建营养素约束
func NewNutrientConstraint(di *model.DataIndexer, key string, min, max, tolMin, tolMax, costPerPercent float64, weekly bool) (*NutrientConstraint, error) {
	if min > 0 && max > 0 && min > max {
		return nil, errors.InvalidInterval(min, max).WithField("key", key)
	}
	if !di.Has(key) {
		return nil, errors.UnknownDataKey(key)
	}
	return &NutrientConstraint{
		BaseConstraint: problem.NewBaseConstraint(),
		di:             di,
		Key:            key,
		Min:            min,
		Max:            max,
		ToleranceMin:   tolMin,
		ToleranceMax:   tolMax,
		CostPerPercent: costPerPercent,
		Weekly:         weekly,
	}, nil
}

// dayRulesEnabled 是否需要每日规则
func (c *NutrientConstraint) dayRulesEnabled() bool {
	return (c.Min > 0 && c.ToleranceMin >= 0 && c.ToleranceMin < 1) ||
		(c.Max > 0 && c.ToleranceMax >= 0 && c.ToleranceMax < 1)
}

func (c *NutrientConstraint) newRule(m *menu.Index, min, max, cost float64, dishIDs []int64, label string) (*IntervalRule, error) {
	r, err := NewIntervalRule(m, c.di, c.Key, min, max, dishIDs, true)
	if err != nil {
		return nil, err
	}
	r.UnderMin = SquaredPercent(LinearUnderMin, cost)
	r.OverMax = SquaredPercent(LinearOverMax, cost)
	r.Label = label
	return r, nil
}

func (c *NutrientConstraint) InitRules(m *menu.Index) error {
	c.ClearRules()
	if c.dayRulesEnabled() {
		for _, day := range m.Days() {
			r, err := c.newRule(m, c.Min*(1-c.ToleranceMin), c.Max*(1+c.ToleranceMax),
				c.CostPerPercent, m.DayDishes(day), fmt.Sprintf("第%d天", day))
			if err != nil {
				return err
			}
			c.AddRule(r)
		}
	}
	if c.Weekly {
		nbDays := float64(len(m.Days()))
		r, err := c.newRule(m, c.Min*nbDays, c.Max*nbDays, c.CostPerPercent/2, m.DishIDs(), "整周")
		if err != nil {
			return err
		}
		c.AddRule(r)
	}
	return nil
}

func (c *NutrientConstraint) Description() string {
	return fmt.Sprintf("营养素 %s | %s", c.Key, intervalString(c.Min, c.Max))
}

// NutrientMealTypeConstraint 对某餐次类型的每一餐施加营养素区间
type NutrientMealTypeConstraint struct {
	*NutrientConstraint
	MealTypeID int64
}

// NewNutrientMealTypeConstraint 创建餐次类型营养素约束
func NewNutrientMealTypeConstraint(di *model.DataIndexer, key string, mealTypeID int64, min, max, costPerPercent float64) (*NutrientMealTypeConstraint, error) {
	base, err := NewNutrientConstraint(di, key, min, max, 0, 0, costPerPercent, false)
	if err != nil {
		return nil, err
	}
	return &NutrientMealTypeConstraint{NutrientConstraint: base, MealTypeID: mealTypeID}, nil
}

func (c *NutrientMealTypeConstraint) InitRules(m *menu.Index) error {
	c.ClearRules()
	for _, meal := range m.MealsOfType(c.MealTypeID) {
		r, err := c.newRule(m, c.Min, c.Max, c.CostPerPercent, m.MealDishes(meal),
			fmt.Sprintf("第%d天 餐次%d", m.MealDay(meal), meal))
		if err != nil {
			return err
		}
		c.AddRule(r)
	}
	return nil
}

func (c *NutrientMealTypeConstraint) Description() string {
	return fmt.Sprintf("餐次类型营养素 (meal_type=%d) %s | %s", c.MealTypeID, c.Key, intervalString(c.Min, c.Max))
}
