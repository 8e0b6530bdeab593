package darwin

import (
	"time"

	"github.com/caidan/caidan/pkg/planner/problem"
)

// 停止原因
const (
	StopOptimal     = "optimal"
	StopStagnation  = "stagnation"
	StopTimeout     = "timeout"
	StopGenerations = "generations"
	StopCancelled   = "cancelled"
)

// Stats 一次求解的统计信息
type Stats struct {
	Generations  int           `json:"generations"`
	Evaluations  int           `json:"evaluations"`
	Crossovers   int           `json:"crossovers"`
	Mutations    int           `json:"mutations"`
	Improvements int           `json:"improvements"` // 局部修复成功次数
	BestHistory  []int64       `json:"best_history"` // 每代最优得分
	Duration     time.Duration `json:"duration"`
	StopReason   string        `json:"stop_reason"`

	// 按菜品类型统计的最终种群食谱多样性（百分比），种群只有一个个体时为空
	PopulationVariation    map[int64]int64   `json:"population_variation,omitempty"`
	BestRecipesPerDishType map[int64][]int64 `json:"best_recipes_per_dish_type,omitempty"`
}

// computeVariation 统计最优方案各菜品类型使用的食谱，以及种群的多样性
// 多样性 = 100 * (不同食谱数 - 每个方案平均食谱数) / 每个方案平均食谱数
func (st *Stats) computeVariation(p *problem.Problem, individuals []*problem.Solution) {
	m := p.Menu()
	st.BestRecipesPerDishType = make(map[int64][]int64)
	best := individuals[0]
	for _, dishID := range best.DishIDs() {
		dt := m.MainDishType(dishID)
		for _, r := range best.Recipes(dishID) {
			if !containsID(st.BestRecipesPerDishType[dt], r.ID) {
				st.BestRecipesPerDishType[dt] = append(st.BestRecipesPerDishType[dt], r.ID)
			}
		}
	}
	if len(individuals) <= 1 {
		return
	}

	usage := make(map[int64]map[int64]int)
	count := make(map[int64]int)
	for _, s := range individuals {
		for _, dishID := range s.DishIDs() {
			dt := m.MainDishType(dishID)
			for _, r := range s.Recipes(dishID) {
				if usage[dt] == nil {
					usage[dt] = make(map[int64]int)
				}
				usage[dt][r.ID]++
				count[dt]++
			}
		}
	}
	st.PopulationVariation = make(map[int64]int64, len(usage))
	for dt, recipes := range usage {
		perSolution := float64(count[dt]) / float64(len(individuals))
		st.PopulationVariation[dt] = int64((float64(len(recipes)) - perSolution) * 100 / perSolution)
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
