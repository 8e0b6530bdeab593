package darwin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caidan/caidan/pkg/planner/plantest"
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// sortedPopulation 构造 n 个个体，得分依次为 0..n-1
func sortedPopulation(t *testing.T, n int, seed int64) *Population {
	t.Helper()
	f := plantest.NewAlgorithmFixture(t)
	pop := newPopulation(f.Problem, random.New(seed), 0)
	for i := 0; i < n; i++ {
		s, err := problem.NewSolution(f.Problem)
		require.NoError(t, err)
		pop.Individuals = append(pop.Individuals, s)
		pop.scores[s] = &problem.Score{Total: int64(i)}
	}
	return pop
}

func TestNewSelection(t *testing.T) {
	for _, name := range []string{SelectionElitism, SelectionRankProportionate, SelectionRankedRandom} {
		s, err := NewSelection(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := NewSelection("roulette")
	assert.Error(t, err)
}

func TestElitism(t *testing.T) {
	pop := sortedPopulation(t, 10, 1)
	Elitism{}.Select(pop, 4)
	require.Equal(t, 4, pop.Len())
	for i, s := range pop.Individuals {
		assert.Equal(t, int64(i), pop.Score(s).Total)
	}
	assert.Len(t, pop.scores, 4)

	// 目标规模大于当前规模时不变
	Elitism{}.Select(pop, 10)
	assert.Equal(t, 4, pop.Len())
}

func TestRankSelectionsKeepSizeAndBest(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
	}{
		{"按排名比例淘汰", RankProportionate{}},
		{"排名随机淘汰", RankedRandom{NbElites: 3}},
		{"排名随机淘汰（无精英）", RankedRandom{NbElites: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := int64(1); seed <= 30; seed++ {
				pop := sortedPopulation(t, 12, seed)
				best := pop.Best()
				tt.sel.Select(pop, 5)
				require.Equal(t, 5, pop.Len())
				assert.Len(t, pop.scores, 5)
				if _, ok := tt.sel.(RankProportionate); ok {
					assert.Same(t, best, pop.Best())
				}
				for i := 1; i < pop.Len(); i++ {
					assert.Less(t, pop.Score(pop.Individuals[i-1]).Total, pop.Score(pop.Individuals[i]).Total, "顺序应保持")
				}
			}
		})
	}
}

func TestRankedRandomKeepsElites(t *testing.T) {
	for seed := int64(1); seed <= 30; seed++ {
		pop := sortedPopulation(t, 10, seed)
		RankedRandom{NbElites: 4}.Select(pop, 6)
		require.Equal(t, 6, pop.Len())
		for i := 0; i < 4; i++ {
			assert.Equal(t, int64(i), pop.Score(pop.Individuals[i]).Total)
		}
	}
}

func TestRankProportionateFavorsBetterRanks(t *testing.T) {
	kept := make(map[int64]int)
	for seed := int64(1); seed <= 200; seed++ {
		pop := sortedPopulation(t, 6, seed)
		RankProportionate{}.Select(pop, 3)
		for _, s := range pop.Individuals {
			kept[pop.Score(s).Total]++
		}
	}
	assert.Equal(t, 200, kept[0])
	assert.Greater(t, kept[1], kept[5])
}
