package menu

import (
	"math/rand"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/index"
	"github.com/caidan/caidan/pkg/planner/random"
)

// Domain 菜品一个结构变体的定义域：每个元素一个食谱索引
type Domain struct {
	Variant       *model.Dish
	Indexes       []*index.RecipeIndex
	FullyFiltered bool // 是否应用了全部可放宽过滤器
}

// countRemovable 统计可放宽过滤器数量，并检查关键过滤器是否排在前面
func countRemovable(filters []Filter) (int, error) {
	n := 0
	for _, f := range filters {
		if !f.Critical() {
			n++
		} else if n != 0 {
			return 0, errors.Config("过滤器未按关键程度排序: %s", f.Name())
		}
	}
	return n, nil
}

// applyFilters 保留同时通过过滤器数量最多的食谱，关键过滤器不通过的食谱一律排除
func applyFilters(dish *model.Dish, element *model.DishElement, recipes []*model.Recipe, filters []Filter, idx *index.RecipeIndex) int {
	maxApplied := 0
	for _, r := range recipes {
		if !element.Compatible(r) {
			continue
		}
		applied := 0
		rejected := false
		for _, f := range filters {
			if !f.Accept(dish, r) {
				rejected = f.Critical()
				break
			}
			applied++
		}
		if applied > maxApplied {
			idx.Clear()
			maxApplied = applied
		}
		if !rejected && applied == maxApplied {
			idx.Add(r)
		}
	}
	return maxApplied
}

// BuildDomain 为一个结构变体建立定义域
func BuildDomain(recipes []*model.Recipe, variant *model.Dish, filters []Filter) (*Domain, error) {
	removable, err := countRemovable(filters)
	if err != nil {
		return nil, err
	}
	critical := len(filters) - removable
	if len(recipes) == 0 {
		return nil, errors.EmptyDomain(variant.ID, variant.MainDishTypeID, "食谱列表为空")
	}

	d := &Domain{Variant: variant}
	minApplied := removable
	for _, element := range variant.Elements {
		idx := index.New()
		applied := applyFilters(variant, element, recipes, filters, idx)
		if idx.Empty() {
			if critical == 0 {
				return nil, errors.EmptyDomain(variant.ID, element.DishTypeID, "该菜品类型没有可用食谱")
			}
			return nil, errors.EmptyDomain(variant.ID, element.DishTypeID, "关键过滤器排除了全部食谱").
				WithField("filters", len(filters)).
				WithField("critical", critical).
				WithField("max_applied", applied)
		}
		idx.Build()
		d.Indexes = append(d.Indexes, idx)
		if applied-critical < minApplied {
			minApplied = applied - critical
		}
	}
	d.FullyFiltered = minApplied >= removable
	return d, nil
}

// Contains 食谱列表是否逐位落在该定义域的索引中
func (d *Domain) Contains(recipes []*model.Recipe) bool {
	if len(recipes) != len(d.Indexes) {
		return false
	}
	for i, idx := range d.Indexes {
		if !idx.Has(recipes[i].ID) {
			return false
		}
	}
	return true
}

// DomainOptions 一道菜所有可选结构的定义域
type DomainOptions struct {
	DishID  int64
	Options []*Domain
}

// RandomDomain 随机选取一个结构
func (o *DomainOptions) RandomDomain(rng *rand.Rand) *Domain {
	return random.Pick(rng, o.Options)
}

// DomainFor 返回与食谱列表结构匹配的定义域，找不到时返回 nil
func (o *DomainOptions) DomainFor(recipes []*model.Recipe) *Domain {
	for _, d := range o.Options {
		if d.Variant.ValidRecipes(recipes) {
			return d
		}
	}
	return nil
}

// ContainsRecipes 食谱列表是否属于某个结构的定义域
func (o *DomainOptions) ContainsRecipes(recipes []*model.Recipe) bool {
	d := o.DomainFor(recipes)
	return d != nil && d.Contains(recipes)
}
