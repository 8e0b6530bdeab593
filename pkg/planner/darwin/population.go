package darwin

import (
	"math/rand"
	"sort"

	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// Population 种群及其评分，供遗传算子读取
// Individuals 在评估后按总分升序排列，下标0为最优
type Population struct {
	Individuals []*problem.Solution

	problem *problem.Problem
	scores  map[*problem.Solution]*problem.Score
	groups  [][]problem.Rule // 覆盖可变菜品的规则，按约束分组
	rng     *rand.Rand
	repair  *problem.Repair

	evaluations  int
	improvements int
}

func newPopulation(p *problem.Problem, rng *rand.Rand, ratioChangeRate float64) *Population {
	pop := &Population{
		problem: p,
		scores:  make(map[*problem.Solution]*problem.Score),
		rng:     rng,
		repair:  &problem.Repair{Rand: rng, RatioChangeRate: ratioChangeRate},
	}
	mutables := p.Menu().MutableDishIDs()
	for _, c := range p.Constraints() {
		var group []problem.Rule
		for _, r := range c.Rules() {
			if problem.IntersectsSorted(r.DishIDs(), mutables) {
				group = append(group, r)
			}
		}
		if len(group) > 0 {
			pop.groups = append(pop.groups, group)
		}
	}
	return pop
}

// Len 种群规模
func (p *Population) Len() int { return len(p.Individuals) }

// Best 当前最优个体
func (p *Population) Best() *problem.Solution { return p.Individuals[0] }

// Score 个体的评分，未评估时返回 nil
func (p *Population) Score(s *problem.Solution) *problem.Score { return p.scores[s] }

// Rand 本次求解的随机数生成器
func (p *Population) Rand() *rand.Rand { return p.rng }

// evaluate 为新个体计算评分并按总分稳定排序
func (p *Population) evaluate() error {
	scores := make(map[*problem.Solution]*problem.Score, len(p.Individuals))
	for _, s := range p.Individuals {
		if sc, ok := p.scores[s]; ok {
			scores[s] = sc
			continue
		}
		sc, err := p.problem.Eval(s, false)
		if err != nil {
			return err
		}
		p.evaluations++
		scores[s] = sc
	}
	p.scores = scores
	sort.SliceStable(p.Individuals, func(i, j int) bool {
		return scores[p.Individuals[i]].Total < scores[p.Individuals[j]].Total
	})
	return nil
}

// truncate 只保留前 n 个个体
func (p *Population) truncate(n int) {
	for _, s := range p.Individuals[n:] {
		delete(p.scores, s)
	}
	p.Individuals = p.Individuals[:n]
}

// removeAt 删除第 i 个个体
func (p *Population) removeAt(i int) {
	delete(p.scores, p.Individuals[i])
	p.Individuals = append(p.Individuals[:i], p.Individuals[i+1:]...)
}

// randomMate 随机选一个伴侣，与 s 相同时返回 nil
func (p *Population) randomMate(s *problem.Solution) *problem.Solution {
	mate := random.Pick(p.rng, p.Individuals)
	if mate == s {
		return nil
	}
	return mate
}

// pickProportionalRule 按代价比例选一条被违反的规则
// 覆盖全部菜品的规则不参与；filterLarge 时还排除覆盖超过一半菜品的规则
func (p *Population) pickProportionalRule(s *problem.Solution, filterLarge bool) problem.Rule {
	sc := p.scores[s]
	nbDishes := s.NbDishes()
	weights := make(map[int64]int64)
	for _, group := range p.groups {
		for _, r := range group {
			size := len(r.DishIDs())
			if filterLarge && size > nbDishes/2 {
				continue
			}
			v := sc.Rule(r.ID())
			if v <= 0 || size == nbDishes {
				continue
			}
			weights[int64(r.ID())] = v
		}
	}
	id, ok := random.Weighted(p.rng, weights, 0)
	if !ok {
		return nil
	}
	r, _ := p.problem.Rule(int(id))
	return r
}

// pickHighestRule 代价最高的被违反规则，并列时取先出现者
func (p *Population) pickHighestRule(s *problem.Solution, filterLarge bool) problem.Rule {
	sc := p.scores[s]
	nbDishes := s.NbDishes()
	var worst problem.Rule
	var worstScore int64
	for _, group := range p.groups {
		for _, r := range group {
			size := len(r.DishIDs())
			if filterLarge && size > nbDishes/2 {
				continue
			}
			v := sc.Rule(r.ID())
			if v <= 0 || v <= worstScore || size == nbDishes {
				continue
			}
			worst, worstScore = r, v
		}
	}
	return worst
}

// betterMates 在规则 r 上严格优于 s 的个体
func (p *Population) betterMates(s *problem.Solution, r problem.Rule) []*problem.Solution {
	cost := p.scores[s].Rule(r.ID())
	var res []*problem.Solution
	for _, other := range p.Individuals {
		if other != s && p.scores[other].Rule(r.ID()) < cost {
			res = append(res, other)
		}
	}
	return res
}

// bestMate 在规则 r 上得分最低且严格优于 s 的个体
func (p *Population) bestMate(s *problem.Solution, r problem.Rule) *problem.Solution {
	best := p.scores[s].Rule(r.ID())
	var mate *problem.Solution
	for _, other := range p.Individuals {
		if other == s {
			continue
		}
		if v := p.scores[other].Rule(r.ID()); v < best {
			mate, best = other, v
		}
	}
	return mate
}

// findWeakness 选出待修复的菜品及其上的规则
// 菜品按覆盖它的被违反规则代价之和加权抽取，规则再按代价加权抽取
// 没有可归因的代价时返回 nil 规则和随机可变菜品
func (p *Population) findWeakness(s *problem.Solution) (problem.Rule, int64) {
	sc := p.scores[s]
	mutables := p.problem.Menu().MutableDishIDs()

	dishCost := make(map[int64]int64)
	ruleCost := make(map[int64]map[int64]int64)
	for _, group := range p.groups {
		for _, r := range group {
			v := sc.Rule(r.ID())
			if v == 0 {
				continue
			}
			for _, dishID := range r.DishIDs() {
				dishCost[dishID] += v
				if ruleCost[dishID] == nil {
					ruleCost[dishID] = make(map[int64]int64)
				}
				ruleCost[dishID][int64(r.ID())] += v
			}
		}
	}

	weights := make(map[int64]int64, len(mutables))
	var total int64
	for _, dishID := range mutables {
		weights[dishID] = dishCost[dishID]
		total += dishCost[dishID]
	}
	if total <= 0 {
		return nil, random.Pick(p.rng, mutables)
	}
	dishID, _ := random.Weighted(p.rng, weights, total)
	if dishCost[dishID] <= 0 {
		return nil, random.Pick(p.rng, mutables)
	}
	ruleID, _ := random.Weighted(p.rng, ruleCost[dishID], dishCost[dishID])
	r, err := p.problem.Rule(int(ruleID))
	if err != nil {
		return nil, dishID
	}
	return r, dishID
}

// crossAToB 克隆 b，并把规则覆盖的菜品替换为 a 的食谱与份量
func crossAToB(a, b *problem.Solution, r problem.Rule) *problem.Solution {
	baby := b.Clone()
	for _, dishID := range r.DishIDs() {
		baby.SetRecipeList(dishID, a.Recipes(dishID), a.TotalRatio(dishID), false)
	}
	return baby
}
