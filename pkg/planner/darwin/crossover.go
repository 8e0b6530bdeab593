package darwin

import (
	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// Crossover 交叉算子，返回产生的子代（可能为空）
type Crossover interface {
	Name() string
	Cross(pop *Population, individual *problem.Solution) []*problem.Solution
}

// RandomMate 随机规则、随机伴侣，双向交换该规则覆盖的菜品
type RandomMate struct{}

func (RandomMate) Name() string { return "random_mate" }

func (RandomMate) Cross(pop *Population, individual *problem.Solution) []*problem.Solution {
	if len(pop.groups) == 0 {
		return nil
	}
	r := random.Pick(pop.rng, random.Pick(pop.rng, pop.groups))
	if len(r.DishIDs()) > individual.NbDishes()/2 {
		return nil
	}
	mate := pop.randomMate(individual)
	if mate == nil {
		return nil
	}
	return []*problem.Solution{
		crossAToB(mate, individual, r),
		crossAToB(individual, mate, r),
	}
}

// ProportionalRandomMate 按代价比例选规则，随机伴侣，单向复制
type ProportionalRandomMate struct{}

func (ProportionalRandomMate) Name() string { return "proportional_random_mate" }

func (ProportionalRandomMate) Cross(pop *Population, individual *problem.Solution) []*problem.Solution {
	r := pop.pickProportionalRule(individual, true)
	if r == nil {
		return nil
	}
	mate := pop.randomMate(individual)
	if mate == nil {
		return nil
	}
	return []*problem.Solution{crossAToB(mate, individual, r)}
}

// ProportionalBetterMate 按代价比例选规则，伴侣为在该规则上更优的随机个体
type ProportionalBetterMate struct{}

func (ProportionalBetterMate) Name() string { return "proportional_better_mate" }

func (ProportionalBetterMate) Cross(pop *Population, individual *problem.Solution) []*problem.Solution {
	r := pop.pickProportionalRule(individual, true)
	if r == nil {
		return nil
	}
	better := pop.betterMates(individual, r)
	if len(better) == 0 {
		return nil
	}
	return []*problem.Solution{crossAToB(random.Pick(pop.rng, better), individual, r)}
}

// HighestBestMate 代价最高的规则，伴侣为该规则上最优的个体，没有更优者时随机
type HighestBestMate struct{}

func (HighestBestMate) Name() string { return "highest_best_mate" }

func (HighestBestMate) Cross(pop *Population, individual *problem.Solution) []*problem.Solution {
	r := pop.pickHighestRule(individual, true)
	if r == nil {
		return nil
	}
	mate := pop.bestMate(individual, r)
	if mate == nil {
		if mate = pop.randomMate(individual); mate == nil {
			return nil
		}
	}
	return []*problem.Solution{crossAToB(mate, individual, r)}
}
