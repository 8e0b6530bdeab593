package constraint

import (
	"math"
	"testing"

	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/menu"
	"github.com/caidan/caidan/pkg/planner/plantest"
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

func newSolution(t *testing.T, p *problem.Problem, assign map[int64]*model.Recipe) *problem.Solution {
	t.Helper()
	s, err := problem.NewSolution(p)
	if err != nil {
		t.Fatalf("NewSolution() error = %v", err)
	}
	for dishID, r := range assign {
		s.SetRecipeList(dishID, []*model.Recipe{r}, -1, false)
	}
	return s
}

func eval(t *testing.T, p *problem.Problem, s *problem.Solution) int64 {
	t.Helper()
	sc, err := p.Eval(s, true)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	return sc.Total
}

func TestNutrientConstraint(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		weekly bool
		want   int64
	}{
		{"超出上限", 13, false, 360000},
		{"区间内", 7, false, 0},
		{"低于下限", 4, false, 40000},
		{"含整周规则", 13, true, 540000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			di := plantest.NewIndexer(t, "my_nutrient")
			r := plantest.NewRecipe(t, di, 1, []int64{1}, map[string]float64{"my_nutrient": tt.value})
			f := plantest.SingleDish(t, di, r)

			c, err := NewNutrientConstraint(di, "my_nutrient", 5, 10, 0, 0, 100, tt.weekly)
			if err != nil {
				t.Fatalf("NewNutrientConstraint() error = %v", err)
			}
			if err := f.Problem.AddConstraint(c); err != nil {
				t.Fatalf("AddConstraint() error = %v", err)
			}
			s := newSolution(t, f.Problem, map[int64]*model.Recipe{1: r})
			if got := eval(t, f.Problem, s); got != tt.want {
				t.Errorf("Eval() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNutrientConstraintTolerance(t *testing.T) {
	di := plantest.NewIndexer(t, "my_nutrient")
	r := plantest.NewRecipe(t, di, 1, []int64{1}, map[string]float64{"my_nutrient": 10.5})
	f := plantest.SingleDish(t, di, r)

	c, _ := NewNutrientConstraint(di, "my_nutrient", 5, 10, 0.2, 0.1, 100, false)
	if err := f.Problem.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint() error = %v", err)
	}
	rule := c.Rules()[0].(*IntervalRule)
	if rule.Min != 4 || math.Abs(rule.Max-11) > 1e-9 {
		t.Errorf("容差后的区间 = [%v, %v], want [4, 11]", rule.Min, rule.Max)
	}
	s := newSolution(t, f.Problem, map[int64]*model.Recipe{1: r})
	if got := eval(t, f.Problem, s); got != 0 {
		t.Errorf("Eval() = %d, want 0", got)
	}
}

func TestNutrientConstraintInvalid(t *testing.T) {
	di := plantest.NewIndexer(t, "my_nutrient")
	if _, err := NewNutrientConstraint(di, "my_nutrient", 10, 5, 0, 0, 1, false); err == nil {
		t.Error("min > max 应返回错误")
	}
	if _, err := NewNutrientConstraint(di, "unknown", 1, 5, 0, 0, 1, false); err == nil {
		t.Error("未知数据键应返回错误")
	}
}

func TestTimeConstraint(t *testing.T) {
	di := plantest.NewIndexer(t)
	m := menu.NewIndex()
	for _, id := range []int64{1, 2} {
		if err := m.QuickAddDish(id, 1, 1, 1, plantest.MainProfileID, 1); err != nil {
			t.Fatal(err)
		}
	}
	r := plantest.NewRecipe(t, di, 1, []int64{1}, map[string]float64{
		model.KeyPrepMinutes: 20,
		model.KeyCookMinutes: 30,
		model.KeyRestMinutes: 5,
	})
	f := plantest.Build(t, di, m, []*model.Recipe{r})

	c, err := NewTimeConstraint(di, 10)
	if err != nil {
		t.Fatalf("NewTimeConstraint() error = %v", err)
	}
	if err := c.AddMealTimeLimit(1, 0, 57, 5); err == nil {
		t.Error("非正的时间上限应返回错误")
	}
	if err := c.AddMealTimeLimit(1, 38, 57, 5); err != nil {
		t.Fatalf("AddMealTimeLimit() error = %v", err)
	}
	if err := f.Problem.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint() error = %v", err)
	}
	if len(c.Rules()) != 3 {
		t.Fatalf("规则数 = %d, want 3", len(c.Rules()))
	}

	s := newSolution(t, f.Problem, map[int64]*model.Recipe{1: r, 2: r})
	// (40-38)^2*10 + (60-57)^2*10 + (10-5)^2*10
	if got := eval(t, f.Problem, s); got != 380 {
		t.Errorf("Eval() = %d, want 380", got)
	}
}

func TestBudgetConstraint(t *testing.T) {
	di := plantest.NewIndexer(t)
	m := menu.NewIndex()
	for _, id := range []int64{1, 2} {
		if err := m.QuickAddDish(id, 1, 1, 1, plantest.MainProfileID, 1); err != nil {
			t.Fatal(err)
		}
	}
	r := plantest.NewRecipe(t, di, 1, []int64{1}, map[string]float64{model.KeyPrice: 10})
	f := plantest.Build(t, di, m, []*model.Recipe{r})

	c := NewBudgetConstraint(di, 8, 2)
	if err := f.Problem.AddConstraint(c); err != nil {
		t.Fatalf("AddConstraint() error = %v", err)
	}
	s := newSolution(t, f.Problem, map[int64]*model.Recipe{1: r, 2: r})
	// 总价 20，上限 16
	if got := eval(t, f.Problem, s); got != 32 {
		t.Errorf("Eval() = %d, want 32", got)
	}
}

func TestNutrientBalanceConstraint(t *testing.T) {
	tests := []struct {
		name       string
		data, refv float64
		want       int64
	}{
		{"比例过高", 200, 100, 5000},
		{"比例过低", 25, 100, 2500},
		{"比例合适", 100, 100, 0},
		{"营养素为零", 0, 100, DefaultBalanceMaxPenalty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			di := plantest.NewIndexer(t)
			r := plantest.NewRecipe(t, di, 1, []int64{1}, map[string]float64{
				plantest.KeyData0: tt.data,
				plantest.KeyData1: tt.refv,
			})
			f := plantest.SingleDish(t, di, r)
			c, err := Build(di, Descriptor{
				Type:        TypeNutrientBalance,
				Key:         plantest.KeyData0,
				ReferentKey: plantest.KeyData1,
				Min:         0.5,
				Max:         1.5,
			})
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if err := f.Problem.AddConstraint(c); err != nil {
				t.Fatalf("AddConstraint() error = %v", err)
			}
			s := newSolution(t, f.Problem, map[int64]*model.Recipe{1: r})
			if got := eval(t, f.Problem, s); got != tt.want {
				t.Errorf("Eval() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNutrientBalanceDefaults(t *testing.T) {
	di := plantest.NewIndexer(t)
	c, err := Build(di, Descriptor{Type: TypeNutrientBalance, Key: plantest.KeyData0, ReferentKey: plantest.KeyData1, PerMeal: true})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	b := c.(*NutrientBalanceConstraint)
	if b.MinRatio != DefaultBalanceMinRatio || b.MaxRatio != DefaultBalanceMaxRatio {
		t.Errorf("默认比例 = [%v, %v]", b.MinRatio, b.MaxRatio)
	}
	if b.CostPerPct != DefaultBalanceCostPerPct || b.MaxPenalty != DefaultBalanceMaxPenalty {
		t.Errorf("默认代价 = %v / %v", b.CostPerPct, b.MaxPenalty)
	}

	f := plantest.NewAlgorithmFixture(t)
	c, _ = Build(f.Indexer, Descriptor{Type: TypeNutrientBalance, Key: plantest.KeyData0, ReferentKey: plantest.KeyData1, PerMeal: true})
	if err := f.Problem.AddConstraint(c); err != nil {
		t.Fatal(err)
	}
	if got := len(c.Rules()); got != len(f.Menu.Meals()) {
		t.Errorf("按餐规则数 = %d, want %d", got, len(f.Menu.Meals()))
	}
}

func TestIntervalRuleBufferMatchesRecompute(t *testing.T) {
	f := plantest.NewAlgorithmFixture(t)
	c, err := NewNutrientConstraint(f.Indexer, plantest.KeyData0, 300, 500, 0, 0, 1, true)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Problem.AddConstraint(c); err != nil {
		t.Fatal(err)
	}
	s := f.RandomSolution(t, 7)
	rng := random.New(7)
	dishes := f.Menu.MutableDishIDs()
	for i := 0; i < 200; i++ {
		dishID := random.Pick(rng, dishes)
		if i%3 == 0 {
			s.ChangeDishRatio(dishID, 0.5+rng.Float64())
		} else if err := s.RandomizeDishRecipe(rng, dishID, 0); err != nil {
			t.Fatalf("RandomizeDishRecipe() error = %v", err)
		}
	}
	for _, r := range c.Rules() {
		rule := r.(*IntervalRule)
		if got, want := rule.Value(s), rule.Recompute(s); math.Abs(got-want) > 1e-6 {
			t.Errorf("规则 %d 缓存值 = %v, 重新计算 = %v", rule.ID(), got, want)
		}
	}

	clone := s.Clone()
	for _, r := range c.Rules() {
		if clone.Buffer(r.ID()) != s.Buffer(r.ID()) {
			t.Errorf("克隆后规则 %d 的缓存不一致", r.ID())
		}
	}
}

func TestIntervalRuleImprove(t *testing.T) {
	di := plantest.NewIndexer(t, "my_nutrient")
	var recipes []*model.Recipe
	for id := int64(1); id <= 20; id++ {
		recipes = append(recipes, plantest.NewRecipe(t, di, id, []int64{1}, map[string]float64{"my_nutrient": float64(id)}))
	}
	f := plantest.SingleDish(t, di, recipes...)
	c, _ := NewNutrientConstraint(di, "my_nutrient", 5, 10, 0, 0, 1, false)
	if err := f.Problem.AddConstraint(c); err != nil {
		t.Fatal(err)
	}
	rule := c.Rules()[0]
	rep := &problem.Repair{Rand: random.New(5), RatioChangeRate: 0}

	s := newSolution(t, f.Problem, map[int64]*model.Recipe{1: recipes[19]})
	before := rule.Eval(s)
	if before == 0 {
		t.Fatal("初始方案应违反约束")
	}
	if !rule.Improve(s, 1, rep) {
		t.Fatal("Improve() = false, want true")
	}
	if after := rule.Eval(s); after >= before {
		t.Errorf("Improve 后得分 %d, 之前 %d", after, before)
	}

	inside := newSolution(t, f.Problem, map[int64]*model.Recipe{1: recipes[6]})
	if rule.Improve(inside, 1, rep) {
		t.Error("区间内的数值不应被修改")
	}
}

func TestBuildUnknownType(t *testing.T) {
	di := plantest.NewIndexer(t)
	tests := []struct {
		name string
		d    Descriptor
	}{
		{"未知类型", Descriptor{Type: "sugar"}},
		{"预算缺少上限", Descriptor{Type: TypeBudget}},
		{"营养素缺少键", Descriptor{Type: TypeNutrient}},
		{"平衡比例颠倒", Descriptor{Type: TypeNutrientBalance, Key: plantest.KeyData0, ReferentKey: plantest.KeyData1, Min: 2, Max: 1}},
		{"时间上限非正", Descriptor{Type: TypeTime, Cost: 1, MealTimes: []MealTimeLimit{{MealID: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(di, tt.d); err == nil {
				t.Errorf("Build(%+v) 应返回错误", tt.d)
			}
		})
	}
}

func TestLibraryCoversBuildTypes(t *testing.T) {
	want := map[string]bool{
		TypeNutrient:         true,
		TypeNutrientMealType: true,
		TypeTime:             true,
		TypeBudget:           true,
		TypeNutrientBalance:  true,
	}
	lib := Library()
	if len(lib) != len(want) {
		t.Fatalf("约束库条目数 = %d, want %d", len(lib), len(want))
	}
	for _, def := range lib {
		if !want[def.Name] {
			t.Errorf("约束库包含未知类型 %q", def.Name)
		}
		delete(want, def.Name)
		if len(def.Params) == 0 {
			t.Errorf("%s 缺少参数定义", def.Name)
		}
	}
	if len(want) != 0 {
		t.Errorf("约束库缺少类型 %v", want)
	}
}
