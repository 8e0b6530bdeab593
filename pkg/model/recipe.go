package model

import "sort"

// Recipe 一份食谱，数值属性按 DataIndexer 的ID稠密存储
// 目录加载后只读，被所有方案共享
type Recipe struct {
	ID               int64             `json:"id" db:"id"`
	Name             string            `json:"name" db:"name"`
	Data             []float64         `json:"data"`
	DefinedDataIDs   []int             `json:"defined_data_ids"`
	Foods            map[int64]float64 `json:"foods,omitempty"` // 食材ID -> 克数
	CookingMethodIDs []int64           `json:"cooking_method_ids,omitempty"`
	DishTypeIDs      []int64           `json:"dish_type_ids"`
	FoodTagIDs       []int64           `json:"food_tag_ids,omitempty"`
	MainFoodTagIDs   []int64           `json:"main_food_tag_ids,omitempty"`
	RecipeTagIDs     []int64           `json:"recipe_tag_ids,omitempty"`
	Ustensils        []int64           `json:"ustensils,omitempty"`
	NbIngredients    int               `json:"nb_ingredients" db:"nb_ingredients"`
	PerceivedHealthy bool              `json:"perceived_healthy" db:"perceived_healthy"`
	Internal         bool              `json:"internal" db:"internal"`
}

// NewRecipe 创建食谱并按索引器大小分配数值数组
func NewRecipe(id int64, di *DataIndexer) *Recipe {
	r := &Recipe{ID: id}
	if di != nil {
		r.Data = make([]float64, di.Len())
	}
	return r
}

// SetData 按键设置数值属性
func (r *Recipe) SetData(di *DataIndexer, key string, value float64) error {
	id, err := di.ID(key)
	if err != nil {
		return err
	}
	r.SetDataID(id, value)
	return nil
}

// SetDataID 按ID设置数值属性
func (r *Recipe) SetDataID(id int, value float64) {
	if id >= len(r.Data) {
		grown := make([]float64, id+1)
		copy(grown, r.Data)
		r.Data = grown
	}
	r.Data[id] = value
	pos := sort.SearchInts(r.DefinedDataIDs, id)
	if pos < len(r.DefinedDataIDs) && r.DefinedDataIDs[pos] == id {
		return
	}
	r.DefinedDataIDs = append(r.DefinedDataIDs, 0)
	copy(r.DefinedDataIDs[pos+1:], r.DefinedDataIDs[pos:])
	r.DefinedDataIDs[pos] = id
}

// Value 返回按份量系数缩放后的数值
func (r *Recipe) Value(id int, ratio float64) float64 {
	if id < 0 || id >= len(r.Data) {
		return 0
	}
	return r.Data[id] * ratio
}

// Defines 是否定义了该数值属性
func (r *Recipe) Defines(id int) bool {
	pos := sort.SearchInts(r.DefinedDataIDs, id)
	return pos < len(r.DefinedDataIDs) && r.DefinedDataIDs[pos] == id
}

// BestRatio 根据食材的离散份量调整目标系数，目前保持不变
func (r *Recipe) BestRatio(target float64) float64 {
	return target
}

// HasDishType 是否可用于该菜品类型
func (r *Recipe) HasDishType(id int64) bool { return containsID(r.DishTypeIDs, id) }

// HasFoodTag 是否带有该食材标签
func (r *Recipe) HasFoodTag(id int64) bool { return containsID(r.FoodTagIDs, id) }

// HasRecipeTag 是否带有该食谱标签
func (r *Recipe) HasRecipeTag(id int64) bool { return containsID(r.RecipeTagIDs, id) }

// HasUstensil 是否需要该厨具
func (r *Recipe) HasUstensil(id int64) bool { return containsID(r.Ustensils, id) }

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// RecipeIDs 返回食谱ID列表
func RecipeIDs(recipes []*Recipe) []int64 {
	ids := make([]int64, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
	}
	return ids
}

// SameRecipes 两个食谱列表是否逐位相同
func SameRecipes(a, b []*Recipe) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
