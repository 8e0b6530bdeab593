package problem

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/caidan/caidan/pkg/model"
	"github.com/caidan/caidan/pkg/planner/random"
)

// Solution 一个候选菜单：每道菜的食谱列表与份量系数，以及规则的增量缓存
type Solution struct {
	problem    *Problem
	recipes    map[int64][]*model.Recipe
	ratios     map[int64]float64
	mainRatios map[int64]float64
	buffers    map[int]float64 // 规则ID -> 缓存的部分和
}

// NewSolution 创建空方案，份量系数取各菜品的初始值
func NewSolution(p *Problem) (*Solution, error) {
	if err := p.prepareShares(); err != nil {
		return nil, err
	}
	s := &Solution{
		problem:    p,
		recipes:    make(map[int64][]*model.Recipe),
		ratios:     make(map[int64]float64),
		mainRatios: make(map[int64]float64),
		buffers:    make(map[int]float64),
	}
	for _, dishID := range p.menu.DishIDs() {
		dish, _ := p.menu.Dish(dishID)
		s.ratios[dishID] = dish.InitialRatio
		s.updateMainRatio(dishID)
	}
	return s, nil
}

// Problem 返回所属问题
func (s *Solution) Problem() *Problem { return s.problem }

// Clone 深拷贝方案
func (s *Solution) Clone() *Solution {
	c := &Solution{
		problem:    s.problem,
		recipes:    make(map[int64][]*model.Recipe, len(s.recipes)),
		ratios:     make(map[int64]float64, len(s.ratios)),
		mainRatios: make(map[int64]float64, len(s.mainRatios)),
		buffers:    make(map[int]float64, len(s.buffers)),
	}
	for k, v := range s.recipes {
		c.recipes[k] = append([]*model.Recipe(nil), v...)
	}
	for k, v := range s.ratios {
		c.ratios[k] = v
	}
	for k, v := range s.mainRatios {
		c.mainRatios[k] = v
	}
	for k, v := range s.buffers {
		c.buffers[k] = v
	}
	return c
}

// Clear 清空全部食谱、份量与缓存
func (s *Solution) Clear() {
	s.recipes = make(map[int64][]*model.Recipe)
	s.ratios = make(map[int64]float64)
	s.mainRatios = make(map[int64]float64)
	s.buffers = make(map[int]float64)
}

// NbDishes 已安排的菜品数
func (s *Solution) NbDishes() int { return len(s.recipes) }

// Recipes 菜品的食谱列表
func (s *Solution) Recipes(dishID int64) []*model.Recipe { return s.recipes[dishID] }

// Recipe 菜品第 pos 个食谱
func (s *Solution) Recipe(dishID int64, pos int) *model.Recipe {
	list := s.recipes[dishID]
	if pos < 0 || pos >= len(list) {
		return nil
	}
	return list[pos]
}

// DishIDs 已安排的菜品ID（升序）
func (s *Solution) DishIDs() []int64 {
	ids := make([]int64, 0, len(s.recipes))
	for id := range s.recipes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TotalRatio 菜品的总份量系数
func (s *Solution) TotalRatio(dishID int64) float64 { return s.ratios[dishID] }

// MainProfileRatio 主用餐者的份量系数
func (s *Solution) MainProfileRatio(dishID int64) float64 { return s.mainRatios[dishID] }

// SetDishRatio 直接设置份量系数，不触发缓存更新
func (s *Solution) SetDishRatio(dishID int64, ratio float64) {
	s.ratios[dishID] = ratio
	s.updateMainRatio(dishID)
}

// Buffer 返回规则的缓存值
func (s *Solution) Buffer(ruleID int) float64 { return s.buffers[ruleID] }

// AddBuffer 累加规则的缓存值
func (s *Solution) AddBuffer(ruleID int, delta float64) { s.buffers[ruleID] += delta }

// SetBuffer 设置规则的缓存值
func (s *Solution) SetBuffer(ruleID int, v float64) { s.buffers[ruleID] = v }

func (s *Solution) updateMainRatio(dishID int64) {
	s.mainRatios[dishID] = s.ratios[dishID] * s.problem.shares[dishID]
}

func (s *Solution) callRemoved(dishID int64) {
	for _, r := range s.problem.rulesByDish[dishID] {
		r.OnRecipesRemoved(s, dishID)
	}
}

func (s *Solution) callAdded(dishID int64) {
	for _, r := range s.problem.rulesByDish[dishID] {
		r.OnRecipesAdded(s, dishID)
	}
}

// InitRuleBuffers 在未调用处理器的情况下构建方案后，初始化全部规则缓存
func (s *Solution) InitRuleBuffers() {
	s.buffers = make(map[int]float64)
	for _, dishID := range s.problem.menu.DishIDs() {
		s.callAdded(dishID)
	}
}

// SetRecipe 替换菜品某个位置的食谱
// 位置0决定份量系数；monotony 为 true 时同步到绑定的菜品
func (s *Solution) SetRecipe(dishID int64, pos int, r *model.Recipe, callHandlers, monotony bool) {
	if callHandlers {
		s.callRemoved(dishID)
	}
	if pos == 0 {
		s.ratios[dishID] = r.BestRatio(s.ratios[dishID])
	}
	list := s.recipes[dishID]
	if pos >= len(list) {
		grown := make([]*model.Recipe, pos+1)
		copy(grown, list)
		list = grown
	}
	list[pos] = r
	s.recipes[dishID] = list
	s.updateMainRatio(dishID)

	if callHandlers {
		s.callAdded(dishID)
	}
	if pos == 0 && monotony {
		s.propagate(dishID)
	}
}

// SetRecipeList 替换菜品的全部食谱；ratio > 0 时同时设置份量系数
func (s *Solution) SetRecipeList(dishID int64, recipes []*model.Recipe, ratio float64, monotony bool) {
	if _, ok := s.recipes[dishID]; ok {
		s.callRemoved(dishID)
	}
	s.recipes[dishID] = append([]*model.Recipe(nil), recipes...)
	if ratio > 0 {
		s.ratios[dishID] = ratio
	}
	if len(recipes) > 0 {
		s.ratios[dishID] = recipes[0].BestRatio(s.ratios[dishID])
	}
	s.updateMainRatio(dishID)
	s.callAdded(dishID)

	if len(recipes) > 0 && monotony {
		s.propagate(dishID)
	}
}

// ChangeDishRatio 修改菜品份量系数并更新缓存
func (s *Solution) ChangeDishRatio(dishID int64, ratio float64) {
	s.callRemoved(dishID)
	s.ratios[dishID] = ratio
	s.updateMainRatio(dishID)
	s.callAdded(dishID)
}

// propagate 将食谱同步到绑定的菜品（只传播一层）
func (s *Solution) propagate(dishID int64) {
	m := s.problem.menu
	recipes := s.recipes[dishID]
	for _, other := range m.Bounded(dishID) {
		existing := s.recipes[other]
		if len(existing) > 0 && !model.SameRecipes(existing, recipes) && !m.IsOutOfDomain(other, recipes) {
			s.SetRecipeList(other, recipes, -1, false)
		}
	}
}

// Randomize 随机化全部可变菜品
func (s *Solution) Randomize(rng *rand.Rand) {
	for _, dishID := range s.problem.menu.MutableDishIDs() {
		s.RandomizeDish(rng, dishID, nil)
	}
}

// RandomizeDish 随机选取结构并为每个元素抽取食谱
// prior 为升序的优先食谱ID，与索引有交集时从交集中选取
func (s *Solution) RandomizeDish(rng *rand.Rand, dishID int64, prior []int64) {
	opts, ok := s.problem.menu.Domains(dishID)
	if !ok {
		return
	}
	domain := opts.RandomDomain(rng)
	list := make([]*model.Recipe, 0, len(domain.Indexes))
	for _, idx := range domain.Indexes {
		if len(prior) > 0 {
			if common := intersectSorted(prior, idx.RecipeIDs()); len(common) > 0 {
				if r, ok := s.problem.recipeByID[random.Pick(rng, common)]; ok {
					list = append(list, r)
					continue
				}
			}
		}
		list = append(list, idx.Random(rng))
	}
	s.SetRecipeList(dishID, list, -1, true)
}

// RandomizeDishRecipe 在当前结构下随机替换菜品某个位置的食谱
func (s *Solution) RandomizeDishRecipe(rng *rand.Rand, dishID int64, pos int) error {
	domain, err := s.problem.menu.DomainOf(dishID, s.recipes[dishID])
	if err != nil {
		return err
	}
	if pos < 0 || pos >= len(domain.Indexes) {
		return fmt.Errorf("菜品 %d 的位置 %d 超出定义域", dishID, pos)
	}
	s.SetRecipe(dishID, pos, domain.Indexes[pos].Random(rng), true, true)
	return nil
}

// RandomizeOutOfDomain 只随机化食谱不在定义域内的菜品
func (s *Solution) RandomizeOutOfDomain(rng *rand.Rand) {
	m := s.problem.menu
	for _, dishID := range m.MutableDishIDs() {
		if m.IsOutOfDomain(dishID, s.recipes[dishID]) {
			s.RandomizeDish(rng, dishID, nil)
		}
	}
}

// InitFromFavorites 优先使用收藏食谱初始化，无可用收藏时随机
func (s *Solution) InitFromFavorites(rng *rand.Rand) {
	favorites := s.problem.favorites
	for _, dishID := range s.problem.menu.MutableDishIDs() {
		s.RandomizeDish(rng, dishID, favorites)
	}
}

// IsValid 方案是否覆盖全部菜品且每道菜匹配某个结构变体
// checkDomains 为 true 时还要求可变菜品的食谱属于过滤后的定义域
func (s *Solution) IsValid(checkDomains bool) bool {
	m := s.problem.menu
	if len(s.recipes) != len(m.DishIDs()) {
		return false
	}
	for _, dishID := range m.DishIDs() {
		recipes, ok := s.recipes[dishID]
		if !ok || !m.ValidAnyVariant(dishID, recipes) {
			return false
		}
	}
	if checkDomains {
		for _, dishID := range m.MutableDishIDs() {
			if m.IsOutOfDomain(dishID, s.recipes[dishID]) {
				return false
			}
		}
	}
	return true
}

// Similarity 两个方案中食谱完全相同的菜品比例（0~1）
func (s *Solution) Similarity(other *Solution) float64 {
	ids := s.problem.menu.DishIDs()
	if len(ids) == 0 {
		return 1
	}
	same := 0
	for _, dishID := range ids {
		if model.SameRecipes(s.recipes[dishID], other.recipes[dishID]) {
			same++
		}
	}
	return float64(same) / float64(len(ids))
}

// Key 方案内容的摘要，用于统计种群多样性
func (s *Solution) Key(dishID int64) string {
	return fmt.Sprint(model.RecipeIDs(s.recipes[dishID]))
}

func intersectSorted(a, b []int64) []int64 {
	var res []int64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			res = append(res, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return res
}
