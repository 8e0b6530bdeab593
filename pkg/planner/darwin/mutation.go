package darwin

import (
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// Mutation 变异算子，返回变异后的新个体
type Mutation interface {
	Name() string
	Mutate(pop *Population, individual *problem.Solution) *problem.Solution
}

// RandomMutation 随机重新抽取一道可变菜品
type RandomMutation struct{}

func (RandomMutation) Name() string { return "random" }

func (RandomMutation) Mutate(pop *Population, individual *problem.Solution) *problem.Solution {
	mutant := individual.Clone()
	dishID := random.Pick(pop.rng, pop.problem.Menu().MutableDishIDs())
	mutant.RandomizeDish(pop.rng, dishID, nil)
	return mutant
}

// ScoreOrientedMutation 找出弱点并调用规则的局部修复，失败时随机重新抽取该菜品
type ScoreOrientedMutation struct{}

func (ScoreOrientedMutation) Name() string { return "score_oriented" }

func (ScoreOrientedMutation) Mutate(pop *Population, individual *problem.Solution) *problem.Solution {
	mutant := individual.Clone()
	r, dishID := pop.findWeakness(individual)
	if r != nil && r.Improve(mutant, dishID, pop.repair) {
		pop.improvements++
		return mutant
	}
	mutant.RandomizeDish(pop.rng, dishID, nil)
	return mutant
}
