// Package menu 描述菜单的静态结构：菜品、过滤器、结构变体及其定义域
package menu

import (
	"fmt"
	"sort"

	"github.com/caidan/caidan/pkg/errors"
	"github.com/caidan/caidan/pkg/model"
)

// Index 菜单结构索引，求解期间只读
type Index struct {
	dishes             map[int64]*model.Dish
	allDishIDs         []int64
	mutableDishIDs     []int64
	dishIDsPerDay      map[int64][]int64
	dishIDsPerMeal     map[int64][]int64
	mealDay            map[int64]int64
	dishIDsPerDishType map[int64][]int64
	dishTypePerDish    map[int64]int64
	mealIDsPerMealType map[int64][]int64
	externalMealIDs    map[int64]bool

	filters      []Filter
	aggregations model.Aggregations
	unions       map[int64][]int64 // 饮品 -> 冷饮, 热饮
	monotony     map[int64]bool    // 单调菜品类型：所有同类菜品使用同一食谱
	bounded      map[int64][]int64 // 菜品 -> 需同步修改的其他菜品

	variants map[int64][]*model.Dish
	domains  map[int64]*DomainOptions
}

// NewIndex 创建空的菜单结构
func NewIndex() *Index {
	return &Index{
		dishes:             make(map[int64]*model.Dish),
		dishIDsPerDay:      make(map[int64][]int64),
		dishIDsPerMeal:     make(map[int64][]int64),
		mealDay:            make(map[int64]int64),
		dishIDsPerDishType: make(map[int64][]int64),
		dishTypePerDish:    make(map[int64]int64),
		mealIDsPerMealType: make(map[int64][]int64),
		externalMealIDs:    make(map[int64]bool),
		aggregations:       make(model.Aggregations),
		unions:             make(map[int64][]int64),
		monotony:           make(map[int64]bool),
		bounded:            make(map[int64][]int64),
		variants:           make(map[int64][]*model.Dish),
		domains:            make(map[int64]*DomainOptions),
	}
}

// AddDish 登记一道菜
func (m *Index) AddDish(d *model.Dish) error {
	if _, ok := m.dishes[d.ID]; ok {
		return errors.Config("菜品 %d 重复", d.ID)
	}
	if len(d.Elements) == 0 {
		return errors.Config("菜品 %d 没有任何元素", d.ID)
	}
	if d.InitialRatio <= 0 {
		return errors.Config("菜品 %d 的初始份量系数未设置", d.ID)
	}
	if len(d.ProfileIDs) == 0 {
		return errors.Config("菜品 %d 没有用餐者", d.ID)
	}

	m.dishes[d.ID] = d
	m.dishIDsPerDay[d.DayID] = append(m.dishIDsPerDay[d.DayID], d.ID)
	m.dishIDsPerMeal[d.MealID] = append(m.dishIDsPerMeal[d.MealID], d.ID)
	m.mealDay[d.MealID] = d.DayID
	for _, e := range d.Elements {
		m.dishIDsPerDishType[e.DishTypeID] = append(m.dishIDsPerDishType[e.DishTypeID], d.ID)
	}
	m.dishTypePerDish[d.ID] = d.MainDishTypeID
	m.allDishIDs = insertSorted(m.allDishIDs, d.ID)

	meals := m.mealIDsPerMealType[d.MealTypeID]
	if len(meals) == 0 || meals[len(meals)-1] != d.MealID {
		for _, id := range meals {
			if id == d.MealID {
				return errors.Config("餐次 %d 的菜品未连续登记", d.MealID)
			}
		}
		m.mealIDsPerMealType[d.MealTypeID] = append(meals, d.MealID)
	}
	if d.External {
		m.externalMealIDs[d.MealID] = true
	}
	delete(m.variants, d.ID)
	return nil
}

// QuickAddDish 登记只有一个元素、一个用餐者的简单菜品
func (m *Index) QuickAddDish(dishID, dayID, mealID, mealTypeID, profileID, dishTypeID int64) error {
	d := model.NewDish(dishID, dayID, mealID, mealTypeID, dishTypeID, false, false)
	d.AddElement(model.NewDishElement(dishTypeID))
	d.AddEaterProfile(profileID)
	d.InitialRatio = 1.0
	return m.AddDish(d)
}

// AddAggregation 登记菜品类型聚合关系
func (m *Index) AddAggregation(master, sub int64) {
	m.aggregations.Add(master, sub)
	m.variants = make(map[int64][]*model.Dish)
}

// AddUnion 登记菜品类型并集关系
func (m *Index) AddUnion(master, sub int64) {
	m.unions[master] = insertSorted(m.unions[master], sub)
}

// Unions 返回某类型的并集子类型
func (m *Index) Unions(master int64) []int64 { return m.unions[master] }

// AddMonotonousDishType 登记单调菜品类型
func (m *Index) AddMonotonousDishType(dishTypeID int64) {
	m.monotony[dishTypeID] = true
}

// AddMutableDish 将菜品标记为可变
func (m *Index) AddMutableDish(dishID int64) {
	m.mutableDishIDs = insertSorted(m.mutableDishIDs, dishID)
}

// SetFullyMutable 所有菜品均可变
func (m *Index) SetFullyMutable() {
	m.mutableDishIDs = append([]int64(nil), m.allDishIDs...)
}

// SetNotMutable 将菜品标记为不可变
func (m *Index) SetNotMutable(dishID int64) {
	pos := sort.Search(len(m.mutableDishIDs), func(i int) bool { return m.mutableDishIDs[i] >= dishID })
	if pos < len(m.mutableDishIDs) && m.mutableDishIDs[pos] == dishID {
		m.mutableDishIDs = append(m.mutableDishIDs[:pos], m.mutableDishIDs[pos+1:]...)
	}
}

// AddFilter 添加过滤器，关键过滤器排在最前
func (m *Index) AddFilter(f Filter) {
	if f.Critical() {
		m.filters = append([]Filter{f}, m.filters...)
		return
	}
	m.filters = append(m.filters, f)
}

// Filters 返回过滤器链
func (m *Index) Filters() []Filter { return m.filters }

// Dish 返回菜品
func (m *Index) Dish(id int64) (*model.Dish, bool) {
	d, ok := m.dishes[id]
	return d, ok
}

// DishIDs 全部菜品ID（升序）
func (m *Index) DishIDs() []int64 { return m.allDishIDs }

// MutableDishIDs 可变菜品ID（升序）
func (m *Index) MutableDishIDs() []int64 { return m.mutableDishIDs }

// IsMutable 菜品是否可变
func (m *Index) IsMutable(dishID int64) bool {
	pos := sort.Search(len(m.mutableDishIDs), func(i int) bool { return m.mutableDishIDs[i] >= dishID })
	return pos < len(m.mutableDishIDs) && m.mutableDishIDs[pos] == dishID
}

// Days 全部日期ID（升序）
func (m *Index) Days() []int64 { return sortedKeys(m.dishIDsPerDay) }

// DayDishes 某天的菜品
func (m *Index) DayDishes(dayID int64) []int64 { return m.dishIDsPerDay[dayID] }

// Meals 全部餐次ID（升序）
func (m *Index) Meals() []int64 { return sortedKeys(m.dishIDsPerMeal) }

// MealDishes 某餐的菜品
func (m *Index) MealDishes(mealID int64) []int64 { return m.dishIDsPerMeal[mealID] }

// MealDay 餐次所在日期
func (m *Index) MealDay(mealID int64) int64 { return m.mealDay[mealID] }

// MealsOfType 某餐次类型的餐次（登记顺序）
func (m *Index) MealsOfType(mealTypeID int64) []int64 { return m.mealIDsPerMealType[mealTypeID] }

// IsExternalMeal 是否为在外就餐
func (m *Index) IsExternalMeal(mealID int64) bool { return m.externalMealIDs[mealID] }

// DishesOfType 含有该菜品类型的菜品
func (m *Index) DishesOfType(dishTypeID int64) []int64 { return m.dishIDsPerDishType[dishTypeID] }

// MainDishType 菜品的主类型
func (m *Index) MainDishType(dishID int64) int64 { return m.dishTypePerDish[dishID] }

// Variants 菜品的全部结构变体（缓存）
func (m *Index) Variants(dishID int64) []*model.Dish {
	if v, ok := m.variants[dishID]; ok {
		return v
	}
	d, ok := m.dishes[dishID]
	if !ok {
		return nil
	}
	v := d.Variants(m.aggregations)
	m.variants[dishID] = v
	return v
}

// ValidAnyVariant 食谱列表是否匹配菜品的任一结构
func (m *Index) ValidAnyVariant(dishID int64, recipes []*model.Recipe) bool {
	for _, v := range m.Variants(dishID) {
		if v.ValidRecipes(recipes) {
			return true
		}
	}
	return false
}

// InitDomains 为每道可变菜品的每个结构变体建立定义域
func (m *Index) InitDomains(recipes []*model.Recipe) error {
	for _, dishID := range m.allDishIDs {
		m.Variants(dishID)
	}
	m.domains = make(map[int64]*DomainOptions, len(m.mutableDishIDs))
	for _, dishID := range m.mutableDishIDs {
		opts := &DomainOptions{DishID: dishID}
		for _, variant := range m.Variants(dishID) {
			d, err := BuildDomain(recipes, variant, m.filters)
			if err != nil {
				return err
			}
			opts.Options = append(opts.Options, d)
		}
		m.domains[dishID] = opts
	}
	return nil
}

// Domains 返回菜品的定义域
func (m *Index) Domains(dishID int64) (*DomainOptions, bool) {
	d, ok := m.domains[dishID]
	return d, ok
}

// HasDomains 定义域是否已建立
func (m *Index) HasDomains() bool { return len(m.domains) > 0 }

// DomainOf 与当前食谱结构匹配的定义域
func (m *Index) DomainOf(dishID int64, recipes []*model.Recipe) (*Domain, error) {
	opts, ok := m.domains[dishID]
	if !ok {
		return nil, fmt.Errorf("菜品 %d 没有定义域", dishID)
	}
	d := opts.DomainFor(recipes)
	if d == nil {
		return nil, fmt.Errorf("菜品 %d 找不到与方案结构匹配的定义域", dishID)
	}
	return d, nil
}

// IsOutOfDomain 食谱列表是否不在菜品定义域内（无定义域的菜品视为在域内）
func (m *Index) IsOutOfDomain(dishID int64, recipes []*model.Recipe) bool {
	opts, ok := m.domains[dishID]
	if !ok {
		return false
	}
	return !opts.ContainsRecipes(recipes)
}

// InitBoundedDishes 根据单调菜品类型建立需同步修改的菜品组
func (m *Index) InitBoundedDishes() {
	m.bounded = make(map[int64][]int64)
	for _, dishTypeID := range sortedSet(m.monotony) {
		var mutables []int64
		for _, dishID := range m.dishIDsPerDishType[dishTypeID] {
			if m.IsMutable(dishID) {
				mutables = append(mutables, dishID)
			}
		}
		for _, a := range mutables {
			for _, b := range mutables {
				if a != b {
					m.bounded[a] = append(m.bounded[a], b)
				}
			}
		}
	}
}

// Bounded 与菜品绑定的其他菜品
func (m *Index) Bounded(dishID int64) []int64 { return m.bounded[dishID] }

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

func sortedKeys(m map[int64][]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedSet(m map[int64]bool) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
