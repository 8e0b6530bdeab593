package random

import "testing"

func TestWeighted(t *testing.T) {
	tests := []struct {
		name    string
		weights map[int64]int64
		allowed map[int64]bool
	}{
		{"零权重不被选中", map[int64]int64{1: 0, 2: 10, 3: 0}, map[int64]bool{2: true}},
		{"全为零时等概率", map[int64]int64{4: 0, 5: 0}, map[int64]bool{4: true, 5: true}},
		{"单个键", map[int64]int64{7: 3}, map[int64]bool{7: true}},
	}

	rng := New(42)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				k, ok := Weighted(rng, tt.weights, 0)
				if !ok {
					t.Fatalf("Weighted() 未返回结果")
				}
				if !tt.allowed[k] {
					t.Errorf("Weighted() = %d, 不在允许集合中", k)
				}
			}
		})
	}

	if _, ok := Weighted(rng, nil, 0); ok {
		t.Error("空权重应返回 false")
	}
}

func TestWeightedDeterministic(t *testing.T) {
	weights := map[int64]int64{1: 5, 2: 1, 3: 9, 4: 2}
	a, b := New(7), New(7)
	for i := 0; i < 50; i++ {
		ka, _ := Weighted(a, weights, 0)
		kb, _ := Weighted(b, weights, 0)
		if ka != kb {
			t.Fatalf("相同种子第 %d 次结果不同: %d != %d", i, ka, kb)
		}
	}
}

func TestInPercentage(t *testing.T) {
	rng := New(1)
	for i := 0; i < 100; i++ {
		if InPercentage(rng, 0) {
			t.Fatal("概率0不应返回 true")
		}
		if !InPercentage(rng, 1) {
			t.Fatal("概率1应返回 true")
		}
	}
}
