package index

import (
	"testing"

	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/random"
)

func buildIndex(t *testing.T, values map[int64]float64) (*RecipeIndex, int) {
	t.Helper()
	di, err := model.NewDataIndexer("calories")
	if err != nil {
		t.Fatalf("NewDataIndexer() error = %v", err)
	}
	idx := New()
	for id, v := range values {
		r := model.NewRecipe(id, di)
		if err := r.SetData(di, "calories", v); err != nil {
			t.Fatalf("SetData() error = %v", err)
		}
		r.Foods = map[int64]float64{id % 2: 100}
		idx.Add(r)
	}
	idx.Build()
	return idx, 0
}

func TestBuild(t *testing.T) {
	idx, dataID := buildIndex(t, map[int64]float64{5: 30, 1: 10, 3: 20, 2: 10})

	ids := idx.RecipeIDs()
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("RecipeIDs() 未排序: %v", ids)
		}
	}
	values := idx.Values(dataID)
	want := []float64{10, 10, 20, 30}
	for i, v := range want {
		if values[i] != v {
			t.Errorf("Values()[%d] = %v, want %v", i, values[i], v)
		}
	}
	if !idx.Has(3) || idx.Has(4) {
		t.Error("Has() 结果错误")
	}
	if len(idx.ByFood(1)) != 2 || len(idx.ByFood(0)) != 2 {
		t.Errorf("ByFood() 分组错误")
	}
}

func TestClosest(t *testing.T) {
	idx, dataID := buildIndex(t, map[int64]float64{1: 10, 2: 10, 3: 20, 4: 30})
	rng := random.New(3)

	tests := []struct {
		name  string
		value float64
		want  map[int64]bool
	}{
		{"低于最小值取最小值（并列）", -100, map[int64]bool{1: true, 2: true}},
		{"高于最大值取最大值", 1000, map[int64]bool{4: true}},
		{"靠近下方取下方", 14, map[int64]bool{1: true, 2: true}},
		{"靠近上方取上方", 16, map[int64]bool{3: true}},
		{"恰好命中", 30, map[int64]bool{4: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				r := idx.Closest(rng, dataID, tt.value)
				if !tt.want[r.ID] {
					t.Errorf("Closest(%v) = %d", tt.value, r.ID)
				}
			}
		})
	}
}

func TestNormal(t *testing.T) {
	idx, dataID := buildIndex(t, map[int64]float64{1: 10, 2: 10, 3: 20, 4: 30})
	rng := random.New(11)

	for i := 0; i < 100; i++ {
		r := idx.Normal(rng, dataID, 15, -1)
		if r == nil || !idx.Has(r.ID) {
			t.Fatalf("Normal() 返回了索引外的食谱: %v", r)
		}
	}

	// 方差为0且目标超出范围时返回极值
	for i := 0; i < 20; i++ {
		if r := idx.Normal(rng, dataID, 500, 0); r.ID != 4 {
			t.Errorf("Normal(500, 0) = %d, want 4", r.ID)
		}
	}

	if r := idx.Normal(rng, 7, 10, 1); r != nil {
		t.Error("未定义的属性应返回 nil")
	}
}

func TestByCookingMethod(t *testing.T) {
	idx := New()
	for id, methods := range map[int64][]int64{1: {7}, 2: {7, 8}, 3: nil} {
		r := model.NewRecipe(id, nil)
		r.CookingMethodIDs = methods
		idx.Add(r)
	}
	idx.Build()

	steamed := idx.ByCookingMethod(7)
	if len(steamed) != 2 || steamed[0].ID != 1 || steamed[1].ID != 2 {
		t.Errorf("ByCookingMethod(7) 应按ID排序返回 1, 2")
	}
	if len(idx.ByCookingMethod(8)) != 1 || len(idx.ByCookingMethod(9)) != 0 {
		t.Error("ByCookingMethod 分组错误")
	}
}
