package planning

import (
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/solver"
)

// PlanResponse 规划结果
type PlanResponse struct {
	RunID       string             `json:"run_id"`
	Solver      string             `json:"solver,omitempty"`
	Score       int64              `json:"score"`
	Constraints []ConstraintScore  `json:"constraints"`
	Dishes      []DishResult       `json:"dishes"`
	Statistics  *solver.Statistics `json:"statistics,omitempty"`
	Partial     bool               `json:"partial,omitempty"` // 求解被中断，结果为当时的最优方案
	DurationMs  int64              `json:"duration_ms"`
}

// ConstraintScore 单个约束的得分，只列出未满足的规则
type ConstraintScore struct {
	ID          int         `json:"id"`
	Description string      `json:"description"`
	Score       int64       `json:"score"`
	Rules       []RuleScore `json:"rules,omitempty"`
}

// RuleScore 规则得分
type RuleScore struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Score       int64  `json:"score"`
}

// DishResult 一道菜的食谱安排
type DishResult struct {
	DishID        int64   `json:"dish_id"`
	DayID         int64   `json:"day_id"`
	MealID        int64   `json:"meal_id"`
	RecipeIDs     []int64 `json:"recipe_ids"`
	Ratio         float64 `json:"ratio"`
	Mutable       bool    `json:"mutable"`
	FullyFiltered bool    `json:"fully_filtered"` // 定义域应用了全部可移除过滤器
}

// RelaxedDishes 未能应用全部过滤器的菜品数
func (r *PlanResponse) RelaxedDishes() int {
	n := 0
	for _, d := range r.Dishes {
		if !d.FullyFiltered {
			n++
		}
	}
	return n
}

func newResponse(runID string, p *problem.Problem, res *solver.Result) *PlanResponse {
	resp := &PlanResponse{
		RunID:      runID,
		Solver:     res.Solver,
		Score:      res.Score.Total,
		Statistics: res.Statistics,
	}
	if res.Statistics != nil {
		resp.DurationMs = res.Statistics.Duration.Milliseconds()
	}

	for _, c := range p.Constraints() {
		cs := ConstraintScore{
			ID:          c.ID(),
			Description: c.Description(),
			Score:       res.Score.Constraint(c.ID()),
		}
		for _, r := range c.Rules() {
			if v := res.Score.Rule(r.ID()); v > 0 {
				cs.Rules = append(cs.Rules, RuleScore{ID: r.ID(), Description: r.Description(true), Score: v})
			}
		}
		resp.Constraints = append(resp.Constraints, cs)
	}

	m := p.Menu()
	for _, dishID := range m.DishIDs() {
		dish, _ := m.Dish(dishID)
		recipes := res.Solution.Recipes(dishID)
		ids := make([]int64, 0, len(recipes))
		for _, r := range recipes {
			ids = append(ids, r.ID)
		}
		dr := DishResult{
			DishID:        dishID,
			DayID:         dish.DayID,
			MealID:        dish.MealID,
			RecipeIDs:     ids,
			Ratio:         res.Solution.TotalRatio(dishID),
			Mutable:       m.IsMutable(dishID),
			FullyFiltered: true,
		}
		if dr.Mutable {
			if d, err := m.DomainOf(dishID, recipes); err == nil {
				dr.FullyFiltered = d.FullyFiltered
			}
		}
		resp.Dishes = append(resp.Dishes, dr)
	}
	return resp
}
