package menu

import (
	"fmt"

	"github.com/caidan/caidan/pkg/model"
)

// Filter 食谱过滤器
// 关键过滤器（如饮食禁忌）不可放宽，其余过滤器在定义域为空时可被逐个放宽
type Filter interface {
	Accept(dish *model.Dish, r *model.Recipe) bool
	Critical() bool
	Name() string
}

// TagFilter 排除含有某食材标签的食谱（仅对该用餐者参与的菜品生效）
type TagFilter struct {
	ProfileID int64
	FoodTagID int64
	critical  bool
}

// NewTagFilter 创建食材标签过滤器
func NewTagFilter(profileID, foodTagID int64, critical bool) *TagFilter {
	return &TagFilter{ProfileID: profileID, FoodTagID: foodTagID, critical: critical}
}

func (f *TagFilter) Accept(dish *model.Dish, r *model.Recipe) bool {
	if !dish.HasProfile(f.ProfileID) {
		return true
	}
	return !r.HasFoodTag(f.FoodTagID)
}

func (f *TagFilter) Critical() bool { return f.critical }

func (f *TagFilter) Name() string {
	return fmt.Sprintf("tag(profile=%d, food_tag=%d)", f.ProfileID, f.FoodTagID)
}

// ExcludeRecipeFilter 在某道菜上排除某个食谱
type ExcludeRecipeFilter struct {
	DishID   int64
	RecipeID int64
}

func (f *ExcludeRecipeFilter) Accept(dish *model.Dish, r *model.Recipe) bool {
	return dish.ID != f.DishID || r.ID != f.RecipeID
}

func (f *ExcludeRecipeFilter) Critical() bool { return false }

func (f *ExcludeRecipeFilter) Name() string {
	return fmt.Sprintf("exclude_recipe(dish=%d, recipe=%d)", f.DishID, f.RecipeID)
}

// ExcludeRecipeAllFilter 在所有菜品上排除某个食谱
type ExcludeRecipeAllFilter struct {
	RecipeID int64
}

func (f *ExcludeRecipeAllFilter) Accept(_ *model.Dish, r *model.Recipe) bool {
	return r.ID != f.RecipeID
}

func (f *ExcludeRecipeAllFilter) Critical() bool { return false }

func (f *ExcludeRecipeAllFilter) Name() string {
	return fmt.Sprintf("exclude_recipe_all(recipe=%d)", f.RecipeID)
}

// NonHealthyFilter 只保留被认为健康的食谱
type NonHealthyFilter struct{}

func (NonHealthyFilter) Accept(_ *model.Dish, r *model.Recipe) bool { return r.PerceivedHealthy }

func (NonHealthyFilter) Critical() bool { return false }

func (NonHealthyFilter) Name() string { return "non_healthy" }

// UstensilFilter 排除需要某厨具的食谱
type UstensilFilter struct {
	UstensilID int64
}

func (f *UstensilFilter) Accept(_ *model.Dish, r *model.Recipe) bool {
	return !r.HasUstensil(f.UstensilID)
}

func (f *UstensilFilter) Critical() bool { return false }

func (f *UstensilFilter) Name() string { return fmt.Sprintf("ustensil(%d)", f.UstensilID) }

// DataRangeFilter 排除某数值属性超出区间的食谱，边界 <= 0 表示不限
type DataRangeFilter struct {
	Key    string
	dataID int
	Min    float64
	Max    float64
}

// NewDataRangeFilter 创建数值区间过滤器
func NewDataRangeFilter(di *model.DataIndexer, key string, min, max float64) (*DataRangeFilter, error) {
	id, err := di.ID(key)
	if err != nil {
		return nil, err
	}
	return &DataRangeFilter{Key: key, dataID: id, Min: min, Max: max}, nil
}

func (f *DataRangeFilter) Accept(_ *model.Dish, r *model.Recipe) bool {
	v := r.Value(f.dataID, 1.0)
	if f.Min > 0 && v < f.Min {
		return false
	}
	if f.Max > 0 && v > f.Max {
		return false
	}
	return true
}

func (f *DataRangeFilter) Critical() bool { return false }

func (f *DataRangeFilter) Name() string {
	return fmt.Sprintf("data_range(%s, %g, %g)", f.Key, f.Min, f.Max)
}

type dishTimes struct {
	prep, cook, rest float64
}

// DishTimeFilter 按菜品限制准备、烹饪、静置时间
type DishTimeFilter struct {
	prepID, cookID, restID int
	limits                 map[int64]dishTimes
}

// NewDishTimeFilter 创建菜品时间过滤器
func NewDishTimeFilter(di *model.DataIndexer) (*DishTimeFilter, error) {
	f := &DishTimeFilter{limits: make(map[int64]dishTimes)}
	var err error
	if f.prepID, err = di.ID(model.KeyPrepMinutes); err != nil {
		return nil, err
	}
	if f.cookID, err = di.ID(model.KeyCookMinutes); err != nil {
		return nil, err
	}
	if f.restID, err = di.ID(model.KeyRestMinutes); err != nil {
		return nil, err
	}
	return f, nil
}

// AddDish 设置某道菜的时间上限（分钟）
func (f *DishTimeFilter) AddDish(dishID int64, maxPrep, maxCook, maxRest float64) {
	f.limits[dishID] = dishTimes{prep: maxPrep, cook: maxCook, rest: maxRest}
}

// Empty 是否没有任何菜品限制
func (f *DishTimeFilter) Empty() bool { return len(f.limits) == 0 }

func (f *DishTimeFilter) Accept(dish *model.Dish, r *model.Recipe) bool {
	limit, ok := f.limits[dish.ID]
	if !ok {
		return true
	}
	return r.Value(f.prepID, 1) <= limit.prep &&
		r.Value(f.cookID, 1) <= limit.cook &&
		r.Value(f.restID, 1) <= limit.rest
}

func (f *DishTimeFilter) Critical() bool { return false }

func (f *DishTimeFilter) Name() string { return "dish_time" }
