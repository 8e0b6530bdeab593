package constraint

import (
	"math"

	"github.com/caidan/caidan/pkg/planner/problem"
	"github.com/caidan/caidan/pkg/planner/random"
)

// improver 针对区间规则的局部修复：调整份量或按目标值替换食谱
type improver struct {
	rule     *IntervalRule
	s        *problem.Solution
	dishID   int64
	rep      *problem.Repair
	all      float64 // 规则当前部分和
	current  float64 // 被替换食谱的贡献
	target   float64
	variance float64
}

func newImprover(r *IntervalRule, s *problem.Solution, dishID int64, rep *problem.Repair) *improver {
	return &improver{rule: r, s: s, dishID: dishID, rep: rep}
}

func (im *improver) apply() bool {
	if len(im.s.Recipes(im.dishID)) == 0 {
		// 可选菜品的空结构
		return false
	}
	im.all = im.rule.Value(im.s)
	if im.rule.ApplyRatio && random.InPercentage(im.rep.Rand, im.rep.RatioChangeRate) {
		return im.changeRatio()
	}
	return im.switchRecipe()
}

// computeTarget 计算整体目标值及方差，数值已在区间内时返回 false
func (im *improver) computeTarget() bool {
	min, max := im.rule.Min, im.rule.Max
	var total float64
	switch {
	case min > 0 && max <= 0:
		if im.all >= min {
			return false
		}
		total = min * 1.25
		im.variance = min * 0.25
	case min > 0 && max > 0:
		mid := (min + max) / 2
		switch {
		case im.all < min:
			total = math.Min(min*1.25, mid)
		case im.all > max:
			total = math.Max(max*0.75, mid)
		default:
			return false
		}
		im.variance = math.Min(total-min, max-total)
	case max > 0:
		if im.all <= max {
			return false
		}
		total = max * 0.75
		im.variance = max * 0.25
	default:
		return false
	}
	im.target = total - (im.all - im.current)
	return true
}

func (im *improver) switchRecipe() bool {
	recipes := im.s.Recipes(im.dishID)
	pos := im.rep.Rand.Intn(len(recipes))
	ratio := im.rule.ratio(im.s, im.dishID)
	if ratio <= 0 {
		return false
	}
	im.current = recipes[pos].Value(im.rule.DataID, ratio)
	if !im.computeTarget() {
		return false
	}

	domain, err := im.s.Problem().Menu().DomainOf(im.dishID, recipes)
	if err != nil || pos >= len(domain.Indexes) {
		return false
	}
	r := domain.Indexes[pos].Normal(im.rep.Rand, im.rule.DataID, im.target/ratio, im.variance/2)
	if r == nil {
		return false
	}
	im.s.SetRecipe(im.dishID, pos, r, true, true)
	return true
}

func (im *improver) changeRatio() bool {
	dish, ok := im.s.Problem().Menu().Dish(im.dishID)
	if !ok {
		return false
	}
	ratio := im.s.TotalRatio(im.dishID)
	switch {
	case im.rule.Min > 0 && im.all < im.rule.Min:
		ratio++
	case im.rule.Max > 0 && im.all > im.rule.Max:
		ratio--
	default:
		return false
	}
	if ratio < 0.7 || ratio < dish.InitialRatio/2 || ratio > dish.InitialRatio*1.5 {
		return false
	}
	im.s.ChangeDishRatio(im.dishID, ratio)
	return true
}
