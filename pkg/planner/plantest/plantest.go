// Package plantest 提供规划引擎测试用的菜单与食谱夹具
package plantest

import (
	"testing"

	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// 夹具使用的数据键
const (
	KeyData0 = "data0"
	KeyData1 = "data1"
)

// MainProfileID 夹具中唯一的用餐者
const MainProfileID int64 = 1

// Fixture 一套已建立定义域的规划问题
type Fixture struct {
	Indexer *model.DataIndexer
	Menu    *menu.Index
	Recipes []*model.Recipe
	Problem *problem.Problem
}

// NewIndexer 创建带常用键的数据索引器
func NewIndexer(t testing.TB, extra ...string) *model.DataIndexer {
	t.Helper()
	keys := append([]string{KeyData0, KeyData1, model.KeyPrepMinutes, model.KeyCookMinutes, model.KeyRestMinutes, model.KeyPrice}, extra...)
	di, err := model.NewDataIndexer(keys...)
	if err != nil {
		t.Fatalf("NewDataIndexer() error = %v", err)
	}
	return di
}

// NewRecipe 创建指定菜品类型与数值的食谱
func NewRecipe(t testing.TB, di *model.DataIndexer, id int64, dishTypeIDs []int64, values map[string]float64) *model.Recipe {
	t.Helper()
	r := model.NewRecipe(id, di)
	r.DishTypeIDs = append([]int64(nil), dishTypeIDs...)
	for k, v := range values {
		if err := r.SetData(di, k, v); err != nil {
			t.Fatalf("SetData(%s) error = %v", k, err)
		}
	}
	return r
}

// Build 将菜单设为全部可变，设置唯一用餐者并建立定义域
func Build(t testing.TB, di *model.DataIndexer, m *menu.Index, recipes []*model.Recipe) *Fixture {
	t.Helper()
	m.SetFullyMutable()
	p := problem.New(m, di)
	p.SetMainProfile(MainProfileID)
	p.SetProfileRatio(MainProfileID, 1)
	if err := p.BuildDomains(recipes); err != nil {
		t.Fatalf("BuildDomains() error = %v", err)
	}
	return &Fixture{Indexer: di, Menu: m, Recipes: recipes, Problem: p}
}

// SingleDish 只有一道菜（ID 1，类型 1）的问题
func SingleDish(t testing.TB, di *model.DataIndexer, recipes ...*model.Recipe) *Fixture {
	t.Helper()
	m := menu.NewIndex()
	if err := m.QuickAddDish(1, 1, 1, 1, MainProfileID, 1); err != nil {
		t.Fatalf("QuickAddDish() error = %v", err)
	}
	return Build(t, di, m, recipes)
}

// AlgorithmDishID 算法夹具中的菜品ID
func AlgorithmDishID(day, meal, dish int64) int64 { return day*4 + meal*2 + dish }

// NewAlgorithmFixture 5天、每天2餐、每餐2道菜，42个食谱
// 菜品类型为 dish_id%2，餐次类型为 meal_id%2
// 食谱 data0 = 100*(1+id%2)，data1 = 100*(4-id%2)
func NewAlgorithmFixture(t testing.TB) *Fixture {
	t.Helper()
	di := NewIndexer(t)
	m := menu.NewIndex()
	for day := int64(0); day < 5; day++ {
		for meal := int64(0); meal < 2; meal++ {
			mealID := day*2 + meal
			for dish := int64(0); dish < 2; dish++ {
				dishID := AlgorithmDishID(day, meal, dish)
				if err := m.QuickAddDish(dishID, day, mealID, mealID%2, MainProfileID, dishID%2); err != nil {
					t.Fatalf("QuickAddDish(%d) error = %v", dishID, err)
				}
			}
		}
	}

	recipes := make([]*model.Recipe, 0, 42)
	for id := int64(0); id < 42; id++ {
		recipes = append(recipes, NewRecipe(t, di, id, []int64{id % 2}, map[string]float64{
			KeyData0:             float64(100 * (1 + id%2)),
			KeyData1:             float64(100 * (4 - id%2)),
			model.KeyPrepMinutes: float64(10 + id%5),
			model.KeyCookMinutes: float64(20 + id%7),
			model.KeyRestMinutes: float64(id % 3),
			model.KeyPrice:       float64(2 + id%4),
		}))
	}
	return Build(t, di, m, recipes)
}

// RandomSolution 随机初始化的完整方案
func (f *Fixture) RandomSolution(t testing.TB, seed int64) *problem.Solution {
	t.Helper()
	s, err := problem.NewSolution(f.Problem)
	if err != nil {
		t.Fatalf("NewSolution() error = %v", err)
	}
	s.Randomize(random.New(seed))
	return s
}
