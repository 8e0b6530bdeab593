package constraint

import (
	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/problem"
)

// 约束类型
const (
	TypeNutrient         = "nutrient"
	TypeNutrientMealType = "nutrient_meal_type"
	TypeTime             = "time"
	TypeBudget           = "budget"
	TypeNutrientBalance  = "nutrient_balance"
)

// MealTimeLimit 一餐的时间上限（分钟）
type MealTimeLimit struct {
	MealID  int64   `json:"meal_id" yaml:"meal_id" validate:"required"`
	MaxPrep float64 `json:"max_prep" yaml:"max_prep" validate:"gt=0"`
	MaxCook float64 `json:"max_cook" yaml:"max_cook" validate:"gt=0"`
	MaxRest float64 `json:"max_rest" yaml:"max_rest" validate:"gt=0"`
}

// Descriptor 约束的声明式描述，未用到的字段按类型忽略
type Descriptor struct {
	Type         string          `json:"type" yaml:"type" validate:"required,oneof=nutrient nutrient_meal_type time budget nutrient_balance"`
	Key          string          `json:"key,omitempty" yaml:"key,omitempty"`
	ReferentKey  string          `json:"referent_key,omitempty" yaml:"referent_key,omitempty"`
	MealTypeID   int64           `json:"meal_type_id,omitempty" yaml:"meal_type_id,omitempty"`
	Min          float64         `json:"min,omitempty" yaml:"min,omitempty"`
	Max          float64         `json:"max,omitempty" yaml:"max,omitempty"`
	ToleranceMin float64         `json:"tolerance_min,omitempty" yaml:"tolerance_min,omitempty"`
	ToleranceMax float64         `json:"tolerance_max,omitempty" yaml:"tolerance_max,omitempty"`
	Cost         float64         `json:"cost,omitempty" yaml:"cost,omitempty" validate:"gte=0"`
	MaxPenalty   int64           `json:"max_penalty,omitempty" yaml:"max_penalty,omitempty"`
	Weekly       bool            `json:"weekly,omitempty" yaml:"weekly,omitempty"`
	PerMeal      bool            `json:"per_meal,omitempty" yaml:"per_meal,omitempty"`
	MealTimes    []MealTimeLimit `json:"meal_times,omitempty" yaml:"meal_times,omitempty" validate:"dive"`
}

// Build 根据描述创建约束
func Build(di *model.DataIndexer, d Descriptor) (problem.Constraint, error) {
	switch d.Type {
	case TypeNutrient:
		if d.Key == "" {
			return nil, errors.InvalidInput("key", "营养素约束需要指定 key")
		}
		c, err := NewNutrientConstraint(di, d.Key, d.Min, d.Max, d.ToleranceMin, d.ToleranceMax, d.Cost, d.Weekly)
		if err != nil {
			return nil, err
		}
		return c, nil

	case TypeNutrientMealType:
		if d.Key == "" {
			return nil, errors.InvalidInput("key", "营养素约束需要指定 key")
		}
		c, err := NewNutrientMealTypeConstraint(di, d.Key, d.MealTypeID, d.Min, d.Max, d.Cost)
		if err != nil {
			return nil, err
		}
		return c, nil

	case TypeTime:
		c, err := NewTimeConstraint(di, d.Cost)
		if err != nil {
			return nil, err
		}
		for _, l := range d.MealTimes {
			if err := c.AddMealTimeLimit(l.MealID, l.MaxPrep, l.MaxCook, l.MaxRest); err != nil {
				return nil, err
			}
		}
		return c, nil

	case TypeBudget:
		if d.Max <= 0 {
			return nil, errors.InvalidInput("max", "预算约束需要正的每道菜上限")
		}
		return NewBudgetConstraint(di, d.Max, d.Cost), nil

	case TypeNutrientBalance:
		minRatio, maxRatio := d.Min, d.Max
		if minRatio <= 0 && maxRatio <= 0 {
			minRatio, maxRatio = DefaultBalanceMinRatio, DefaultBalanceMaxRatio
		}
		if minRatio > maxRatio {
			return nil, errors.InvalidInterval(minRatio, maxRatio)
		}
		cost := d.Cost
		if cost <= 0 {
			cost = DefaultBalanceCostPerPct
		}
		penalty := d.MaxPenalty
		if penalty <= 0 {
			penalty = DefaultBalanceMaxPenalty
		}
		c, err := NewNutrientBalanceConstraint(di, d.Key, d.ReferentKey, minRatio, maxRatio, cost, penalty, d.PerMeal)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, errors.InvalidInput("type", "未知的约束类型: "+d.Type)
}
