package constraint

import (
	"strconv"
)

// Param 约束参数定义
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, string, bool, array
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	Default     string `json:"default,omitempty"`
}

// Definition 约束定义，Name 即 Descriptor.Type
type Definition struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

var costParam = Param{Name: "cost", Type: "float", Description: "罚分系数"}

// Library 可在请求中声明的全部约束
func Library() []Definition {
	return []Definition{
		{
			Name:        TypeNutrient,
			DisplayName: "营养素区间",
			Category:    "营养",
			Description: "每天一条规则，越界百分比的平方乘以 cost 作为罚分，容差只作用于每日规则。weekly 为真时另加整周规则，罚分减半。",
			Params: []Param{
				{Name: "key", Type: "string", Description: "食谱数据键，如 calories", Required: true},
				{Name: "min", Type: "float", Description: "下限"},
				{Name: "max", Type: "float", Description: "上限"},
				{Name: "tolerance_min", Type: "float", Description: "每日下限容差(比例)"},
				{Name: "tolerance_max", Type: "float", Description: "每日上限容差(比例)"},
				costParam,
				{Name: "weekly", Type: "bool", Description: "按整周汇总", Default: "false"},
			},
		},
		{
			Name:        TypeNutrientMealType,
			DisplayName: "餐次类型营养素区间",
			Category:    "营养",
			Description: "只统计指定餐次类型中的菜品，每餐一条规则。",
			Params: []Param{
				{Name: "key", Type: "string", Description: "食谱数据键", Required: true},
				{Name: "meal_type_id", Type: "int", Description: "餐次类型", Required: true},
				{Name: "min", Type: "float", Description: "下限"},
				{Name: "max", Type: "float", Description: "上限"},
				costParam,
			},
		},
		{
			Name:        TypeTime,
			DisplayName: "烹饪时间",
			Category:    "时间",
			Description: "限制每餐的准备、烹饪与静置时间之和。",
			Params: []Param{
				costParam,
				{Name: "meal_times", Type: "array", Description: "每餐上限: meal_id, max_prep, max_cook, max_rest(分钟)", Required: true},
			},
		},
		{
			Name:        TypeBudget,
			DisplayName: "预算",
			Category:    "费用",
			Description: "可变菜品的总价不超过每道菜预算乘以可变菜品数，超出部分平方计罚。",
			Params: []Param{
				{Name: "max", Type: "float", Description: "每道菜预算", Required: true},
				costParam,
			},
		},
		{
			Name:        TypeNutrientBalance,
			DisplayName: "营养素比例",
			Category:    "营养",
			Description: "两种营养素之比需落在区间内，按天或按餐计算，每偏离一个百分点计 cost 罚分。任一营养素为0时计 max_penalty。",
			Params: []Param{
				{Name: "key", Type: "string", Description: "营养素数据键", Required: true},
				{Name: "referent_key", Type: "string", Description: "参照营养素数据键", Required: true},
				{Name: "min", Type: "float", Description: "最小比例", Default: formatFloat(DefaultBalanceMinRatio)},
				{Name: "max", Type: "float", Description: "最大比例", Default: formatFloat(DefaultBalanceMaxRatio)},
				{Name: "cost", Type: "float", Description: "每百分点罚分", Default: formatFloat(DefaultBalanceCostPerPct)},
				{Name: "max_penalty", Type: "int", Description: "任一营养素为0时的罚分", Default: strconv.Itoa(DefaultBalanceMaxPenalty)},
				{Name: "per_meal", Type: "bool", Description: "按餐而非按日计算", Default: "false"},
			},
		},
	}
}
