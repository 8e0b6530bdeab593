package model

import "sort"

// DishElement 菜品中的一个子位置（如主菜、配菜）
type DishElement struct {
	DishTypeID   int64   `json:"dish_type_id"`
	RecipeTagIDs []int64 `json:"recipe_tag_ids,omitempty"`
	FoodTagIDs   []int64 `json:"food_tag_ids,omitempty"`
}

// NewDishElement 创建菜品元素
func NewDishElement(dishTypeID int64) *DishElement {
	return &DishElement{DishTypeID: dishTypeID}
}

// AddRecipeTag 添加必需的食谱标签
func (e *DishElement) AddRecipeTag(id int64) {
	e.RecipeTagIDs = insertSorted(e.RecipeTagIDs, id)
}

// AddFoodTag 添加必需的食材标签
func (e *DishElement) AddFoodTag(id int64) {
	e.FoodTagIDs = insertSorted(e.FoodTagIDs, id)
}

// Merge 合并另一个元素的标签（并集），菜品类型不变
func (e *DishElement) Merge(other *DishElement) {
	for _, id := range other.RecipeTagIDs {
		e.AddRecipeTag(id)
	}
	for _, id := range other.FoodTagIDs {
		e.AddFoodTag(id)
	}
}

// Compatible 食谱是否满足该元素的类型和标签要求
func (e *DishElement) Compatible(r *Recipe) bool {
	if !r.HasDishType(e.DishTypeID) {
		return false
	}
	for _, id := range e.RecipeTagIDs {
		if !r.HasRecipeTag(id) {
			return false
		}
	}
	for _, id := range e.FoodTagIDs {
		if !r.HasFoodTag(id) {
			return false
		}
	}
	return true
}

func (e *DishElement) clone() *DishElement {
	return &DishElement{
		DishTypeID:   e.DishTypeID,
		RecipeTagIDs: append([]int64(nil), e.RecipeTagIDs...),
		FoodTagIDs:   append([]int64(nil), e.FoodTagIDs...),
	}
}

// Dish 菜单中的一道菜（某天某餐的一个位置）
type Dish struct {
	ID             int64          `json:"id"`
	DayID          int64          `json:"day_id"`
	MealID         int64          `json:"meal_id"`
	MealTypeID     int64          `json:"meal_type_id"`
	MainDishTypeID int64          `json:"main_dish_type_id"`
	Optional       bool           `json:"optional"` // 可以不安排食谱
	External       bool           `json:"external"` // 在外就餐
	Elements       []*DishElement `json:"elements"`
	ProfileIDs     []int64        `json:"profile_ids"` // 用餐者
	InitialRatio   float64        `json:"initial_ratio"`
}

// NewDish 创建菜品，初始份量系数为 -1（未设置）
func NewDish(id, dayID, mealID, mealTypeID, mainDishTypeID int64, optional, external bool) *Dish {
	return &Dish{
		ID:             id,
		DayID:          dayID,
		MealID:         mealID,
		MealTypeID:     mealTypeID,
		MainDishTypeID: mainDishTypeID,
		Optional:       optional,
		External:       external,
		InitialRatio:   -1,
	}
}

// AddElement 添加菜品元素
func (d *Dish) AddElement(e *DishElement) {
	d.Elements = append(d.Elements, e)
}

// AddEaterProfile 添加用餐者
func (d *Dish) AddEaterProfile(id int64) {
	d.ProfileIDs = insertSorted(d.ProfileIDs, id)
}

// HasProfile 该用餐者是否吃这道菜
func (d *Dish) HasProfile(id int64) bool {
	pos := sort.Search(len(d.ProfileIDs), func(i int) bool { return d.ProfileIDs[i] >= id })
	return pos < len(d.ProfileIDs) && d.ProfileIDs[pos] == id
}

// Copy 深拷贝菜品，withElements 为 false 时返回无元素的副本
func (d *Dish) Copy(withElements bool) *Dish {
	c := *d
	c.ProfileIDs = append([]int64(nil), d.ProfileIDs...)
	c.Elements = nil
	if withElements {
		c.Elements = make([]*DishElement, len(d.Elements))
		for i, e := range d.Elements {
			c.Elements[i] = e.clone()
		}
	}
	return &c
}

// DishTypeIDs 返回元素的菜品类型集合（已排序）
func (d *Dish) DishTypeIDs() []int64 {
	var ids []int64
	for _, e := range d.Elements {
		ids = insertSorted(ids, e.DishTypeID)
	}
	return ids
}

// ValidRecipes 食谱列表是否与该结构逐位匹配
func (d *Dish) ValidRecipes(recipes []*Recipe) bool {
	if len(recipes) != len(d.Elements) {
		return false
	}
	for i, e := range d.Elements {
		if recipes[i] == nil || !e.Compatible(recipes[i]) {
			return false
		}
	}
	return true
}

// removeLastOfType 删除最后一个该类型的元素并返回它
func (d *Dish) removeLastOfType(dishTypeID int64) *DishElement {
	for i := len(d.Elements) - 1; i >= 0; i-- {
		if d.Elements[i].DishTypeID == dishTypeID {
			e := d.Elements[i]
			d.Elements = append(d.Elements[:i], d.Elements[i+1:]...)
			return e
		}
	}
	return nil
}

// Aggregations 菜品类型聚合：主类型 -> 子类型集合（如 全餐 -> 主菜, 配菜）
type Aggregations map[int64][]int64

// Add 登记一个聚合关系
func (a Aggregations) Add(master, sub int64) {
	a[master] = insertSorted(a[master], sub)
}

// masters 按ID升序返回主类型
func (a Aggregations) masters() []int64 {
	ids := make([]int64, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Variants 列出菜品所有结构变体：
// 可选菜品的空变体、原始结构、以及按聚合关系递归合并后的结构
func (d *Dish) Variants(aggs Aggregations) []*Dish {
	var res []*Dish
	if d.Optional {
		res = append(res, d.Copy(false))
	}
	return append(res, d.structuralVariants(aggs)...)
}

func (d *Dish) structuralVariants(aggs Aggregations) []*Dish {
	res := []*Dish{d.Copy(true)}
	present := d.DishTypeIDs()
	for _, master := range aggs.masters() {
		subs := aggs[master]
		if !includes(present, subs) {
			continue
		}
		aggregated := d.Copy(true)
		merged := NewDishElement(master)
		aggregated.AddElement(merged)
		for _, sub := range subs {
			if old := aggregated.removeLastOfType(sub); old != nil {
				merged.Merge(old)
			}
		}
		res = append(res, aggregated.structuralVariants(aggs)...)
	}
	return res
}

// ValidAnyVariant 食谱列表是否匹配任一结构变体
func (d *Dish) ValidAnyVariant(aggs Aggregations, recipes []*Recipe) bool {
	for _, v := range d.Variants(aggs) {
		if v.ValidRecipes(recipes) {
			return true
		}
	}
	return false
}

// includes 有序集合 set 是否包含 sub 的全部元素
func includes(set, sub []int64) bool {
	for _, id := range sub {
		pos := sort.Search(len(set), func(i int) bool { return set[i] >= id })
		if pos == len(set) || set[pos] != id {
			return false
		}
	}
	return true
}

func insertSorted(ids []int64, id int64) []int64 {
	pos := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if pos < len(ids) && ids[pos] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return ids
}
