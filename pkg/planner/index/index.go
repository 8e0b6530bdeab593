// Package index 提供按食材、烹饪方式和数值属性组织的食谱索引，
// 支持按目标值就近抽样
package index

import (
	"math"
	"math/rand"
	"sort"

	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/random"
)

// RecipeIndex 一组食谱的详细索引
type RecipeIndex struct {
	recipes          []*model.Recipe
	recipeIDs        []int64
	perFood          map[int64][]*model.Recipe
	perCookingMethod map[int64][]*model.Recipe

	// 数值属性ID -> 升序取值及对应食谱
	sortedValues  map[int][]float64
	sortedRecipes map[int][]*model.Recipe
}

// New 创建空索引
func New() *RecipeIndex {
	return &RecipeIndex{}
}

// Add 添加食谱，需调用 Build 后才能查询
func (idx *RecipeIndex) Add(r *model.Recipe) {
	idx.recipes = append(idx.recipes, r)
	idx.recipeIDs = append(idx.recipeIDs, r.ID)
}

// Clear 清空索引
func (idx *RecipeIndex) Clear() {
	idx.recipes = nil
	idx.recipeIDs = nil
	idx.perFood = nil
	idx.perCookingMethod = nil
	idx.sortedValues = nil
	idx.sortedRecipes = nil
}

// Build 计算全部索引
func (idx *RecipeIndex) Build() {
	idx.perFood = make(map[int64][]*model.Recipe)
	idx.perCookingMethod = make(map[int64][]*model.Recipe)
	idx.sortedValues = make(map[int][]float64)
	idx.sortedRecipes = make(map[int][]*model.Recipe)

	for _, r := range idx.recipes {
		for foodID := range r.Foods {
			idx.perFood[foodID] = append(idx.perFood[foodID], r)
		}
		for _, cm := range r.CookingMethodIDs {
			idx.perCookingMethod[cm] = append(idx.perCookingMethod[cm], r)
		}
		for _, dataID := range r.DefinedDataIDs {
			// 索引按标准份量（系数1）建立
			idx.sortedValues[dataID] = append(idx.sortedValues[dataID], r.Value(dataID, 1.0))
			idx.sortedRecipes[dataID] = append(idx.sortedRecipes[dataID], r)
		}
	}

	for dataID := range idx.sortedValues {
		sortParallel(idx.sortedValues[dataID], idx.sortedRecipes[dataID])
	}
	for foodID := range idx.perFood {
		sortByID(idx.perFood[foodID])
	}
	for cm := range idx.perCookingMethod {
		sortByID(idx.perCookingMethod[cm])
	}

	sort.Slice(idx.recipeIDs, func(i, j int) bool { return idx.recipeIDs[i] < idx.recipeIDs[j] })
}

// sortParallel 按取值升序排序，取值相同时按食谱ID排序
func sortParallel(values []float64, recipes []*model.Recipe) {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if values[ia] != values[ib] {
			return values[ia] < values[ib]
		}
		return recipes[ia].ID < recipes[ib].ID
	})
	v := make([]float64, len(values))
	r := make([]*model.Recipe, len(recipes))
	for i, o := range order {
		v[i] = values[o]
		r[i] = recipes[o]
	}
	copy(values, v)
	copy(recipes, r)
}

func sortByID(recipes []*model.Recipe) {
	sort.Slice(recipes, func(i, j int) bool { return recipes[i].ID < recipes[j].ID })
}

// Len 食谱数量
func (idx *RecipeIndex) Len() int { return len(idx.recipes) }

// Empty 是否为空
func (idx *RecipeIndex) Empty() bool { return len(idx.recipes) == 0 }

// Recipes 返回全部食谱（插入顺序）
func (idx *RecipeIndex) Recipes() []*model.Recipe { return idx.recipes }

// RecipeIDs 返回升序的食谱ID
func (idx *RecipeIndex) RecipeIDs() []int64 { return idx.recipeIDs }

// Has 是否包含该食谱
func (idx *RecipeIndex) Has(recipeID int64) bool {
	pos := sort.Search(len(idx.recipeIDs), func(i int) bool { return idx.recipeIDs[i] >= recipeID })
	return pos < len(idx.recipeIDs) && idx.recipeIDs[pos] == recipeID
}

// ByFood 含有该食材的食谱
func (idx *RecipeIndex) ByFood(foodID int64) []*model.Recipe { return idx.perFood[foodID] }

// ByCookingMethod 使用该烹饪方式的食谱
func (idx *RecipeIndex) ByCookingMethod(id int64) []*model.Recipe { return idx.perCookingMethod[id] }

// Values 返回某数值属性的升序取值
func (idx *RecipeIndex) Values(dataID int) []float64 { return idx.sortedValues[dataID] }

// Random 随机返回一个食谱
func (idx *RecipeIndex) Random(rng *rand.Rand) *model.Recipe {
	return random.Pick(rng, idx.recipes)
}

// Normal 以 target 为中心、sqrt(variance) 为标准差抽样，返回取值最接近的食谱
// variance 为负时覆盖全部取值范围；没有食谱定义该属性时返回 nil
func (idx *RecipeIndex) Normal(rng *rand.Rand, dataID int, target, variance float64) *model.Recipe {
	values := idx.sortedValues[dataID]
	if len(values) == 0 {
		return nil
	}
	if variance < 0 {
		variance = math.Max(target-values[0], values[len(values)-1]-target)
	}
	stdDev := math.Sqrt(math.Max(variance, 0))
	return idx.Closest(rng, dataID, random.Normal(rng, target, stdDev))
}

// Closest 返回取值最接近 value 的食谱，多个并列时随机选取
func (idx *RecipeIndex) Closest(rng *rand.Rand, dataID int, value float64) *model.Recipe {
	values := idx.sortedValues[dataID]
	if len(values) == 0 {
		return nil
	}
	pos := sort.SearchFloat64s(values, value)
	if pos == len(values) {
		pos--
	} else if pos > 0 && value-values[pos-1] < values[pos]-value {
		pos--
	}

	lo, hi := pos, pos
	for lo > 0 && values[lo-1] == values[pos] {
		lo--
	}
	for hi < len(values)-1 && values[hi+1] == values[pos] {
		hi++
	}
	return idx.sortedRecipes[dataID][lo+rng.Intn(hi-lo+1)]
}
