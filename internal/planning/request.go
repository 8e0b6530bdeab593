// Package planning 将规划请求转换为规划问题并调用求解器
package planning

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/planner/constraint"
	"github.com/caidan/caidan/pkg/planner/darwin"
)

// 过滤器类型
const (
	FilterFoodTag          = "food_tag"
	FilterExcludeRecipe    = "exclude_recipe"
	FilterExcludeRecipeAll = "exclude_recipe_all"
	FilterNonHealthy       = "non_healthy"
	FilterUstensil         = "ustensil"
	FilterDataRange        = "data_range"
	FilterDishTime         = "dish_time"
)

// PlanRequest 一次菜单规划请求
type PlanRequest struct {
	Dishes        []DishInput    `json:"dishes" validate:"required,min=1,dive"`
	Profiles      []ProfileInput `json:"profiles" validate:"required,min=1,dive"`
	MainProfileID int64          `json:"main_profile_id" validate:"required"`

	Aggregations        []TypeRelation `json:"aggregations,omitempty" validate:"dive"`
	Unions              []TypeRelation `json:"unions,omitempty" validate:"dive"`
	MonotonousDishTypes []int64        `json:"monotonous_dish_types,omitempty"`
	FixedDishes         []int64        `json:"fixed_dishes,omitempty"` // 保持初始食谱的菜品

	Constraints []constraint.Descriptor `json:"constraints,omitempty" validate:"dive"`
	Filters     []FilterInput           `json:"filters,omitempty" validate:"dive"`
	Favorites   []int64                 `json:"favorites,omitempty"`

	Initial        []Assignment `json:"initial,omitempty" validate:"dive"`
	StickToInitial bool         `json:"stick_to_initial,omitempty"`

	Solver    string            `json:"solver,omitempty" validate:"omitempty,oneof=darwin naive"`
	Darwin    *darwin.Overrides `json:"darwin,omitempty"`
	Seed      int64             `json:"seed,omitempty"`
	TimeoutMs int64             `json:"timeout_ms,omitempty" validate:"gte=0"`
}

// DishInput 菜单中的一道菜
type DishInput struct {
	ID             int64          `json:"id" validate:"required"`
	DayID          int64          `json:"day_id"`
	MealID         int64          `json:"meal_id"`
	MealTypeID     int64          `json:"meal_type_id"`
	MainDishTypeID int64          `json:"main_dish_type_id,omitempty"` // 为 0 时取第一个元素的类型
	Optional       bool           `json:"optional,omitempty"`
	External       bool           `json:"external,omitempty"`
	Elements       []ElementInput `json:"elements" validate:"required,min=1,dive"`
	ProfileIDs     []int64        `json:"profile_ids" validate:"required,min=1"`
	Ratio          float64        `json:"ratio,omitempty" validate:"gte=0"` // 为 0 时取 1
}

// ElementInput 菜品元素
type ElementInput struct {
	DishTypeID   int64   `json:"dish_type_id"`
	RecipeTagIDs []int64 `json:"recipe_tag_ids,omitempty"`
	FoodTagIDs   []int64 `json:"food_tag_ids,omitempty"`
}

// ProfileInput 用餐者及其份量权重
type ProfileInput struct {
	ID    int64   `json:"id" validate:"required"`
	Ratio float64 `json:"ratio" validate:"gt=0"`
}

// TypeRelation 菜品类型之间的聚合或并集关系
type TypeRelation struct {
	Master int64 `json:"master"`
	Sub    int64 `json:"sub" validate:"nefield=Master"`
}

// FilterInput 过滤器描述，未用到的字段按类型忽略
type FilterInput struct {
	Type       string  `json:"type" validate:"required,oneof=food_tag exclude_recipe exclude_recipe_all non_healthy ustensil data_range dish_time"`
	ProfileID  int64   `json:"profile_id,omitempty"`
	FoodTagID  int64   `json:"food_tag_id,omitempty"`
	Critical   bool    `json:"critical,omitempty"`
	DishID     int64   `json:"dish_id,omitempty"`
	RecipeID   int64   `json:"recipe_id,omitempty"`
	UstensilID int64   `json:"ustensil_id,omitempty"`
	Key        string  `json:"key,omitempty"`
	Min        float64 `json:"min,omitempty"`
	Max        float64 `json:"max,omitempty"`
	MaxPrep    float64 `json:"max_prep,omitempty" validate:"gte=0"`
	MaxCook    float64 `json:"max_cook,omitempty" validate:"gte=0"`
	MaxRest    float64 `json:"max_rest,omitempty" validate:"gte=0"`
}

// Assignment 一道菜的已定食谱
type Assignment struct {
	DishID    int64   `json:"dish_id" validate:"required"`
	RecipeIDs []int64 `json:"recipe_ids"`
	Ratio     float64 `json:"ratio,omitempty" validate:"gte=0"`
}

// Validator 请求校验器，错误信息为中文
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator 创建校验器
func NewValidator() (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}
	return &Validator{validate: validate, translator: trans}, nil
}

// Struct 校验请求，失败时返回 CodeValidationFail 错误，字段名为 JSON 路径
func (v *Validator) Struct(req interface{}) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, errors.CodeValidationFail, "验证失败")
	}

	var ve errors.ValidationErrors
	for _, fe := range fieldErrs {
		ve.Add(fieldPath(fe.Namespace()), fe.Translate(v.translator))
	}
	return ve.ToAppError()
}

// fieldPath 去掉命名空间开头的结构体名
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
