package darwin

import (
	"fmt"
	"math"
)

// Selection 将种群截断到目标规模，调用前种群已按得分排序
type Selection interface {
	Name() string
	Select(pop *Population, size int)
}

// NewSelection 按名称创建选择策略
func NewSelection(name string) (Selection, error) {
	switch name {
	case SelectionElitism:
		return Elitism{}, nil
	case SelectionRankProportionate:
		return RankProportionate{}, nil
	case SelectionRankedRandom:
		return RankedRandom{NbElites: 1}, nil
	}
	return nil, fmt.Errorf("未知的选择策略: %q", name)
}

// Elitism 只保留得分最好的个体
type Elitism struct{}

func (Elitism) Name() string { return SelectionElitism }

func (Elitism) Select(pop *Population, size int) {
	if size >= pop.Len() {
		return
	}
	pop.truncate(size)
}

// RankProportionate 逐个淘汰，被淘汰的概率与排名成正比，最优个体不会被淘汰
type RankProportionate struct{}

func (RankProportionate) Name() string { return SelectionRankProportionate }

func (RankProportionate) Select(pop *Population, size int) {
	for n := pop.Len(); n > size && n > 1; n-- {
		// 下标 j 的权重为 j，总和 (n-1)n/2
		ranksSum := int64(n-1) * int64(n) / 2
		agg := 1 + pop.rng.Int63n(ranksSum)
		j := int(math.Ceil(math.Sqrt(0.25+2*float64(agg)) - 0.5))
		if j < 1 {
			j = 1
		}
		if j > n-1 {
			j = n - 1
		}
		pop.removeAt(j)
	}
}

// RankedRandom 从最差个体开始单次遍历，按排名加权抽签淘汰，前 NbElites 个个体保留
type RankedRandom struct {
	NbElites int
}

func (RankedRandom) Name() string { return SelectionRankedRandom }

func (s RankedRandom) Select(pop *Population, size int) {
	n := pop.Len()
	if size >= n {
		return
	}
	elites := s.NbElites
	if elites < 0 {
		elites = 0
	}
	if elites > size {
		elites = size
	}

	toDelete := n - size
	// weightSum 为下标 [elites, i] 的权重 (j+1) 之和
	weightSum := float64(0)
	for j := elites; j < n; j++ {
		weightSum += float64(j + 1)
	}
	removed := make([]bool, n)
	for i := n - 1; i >= elites && toDelete > 0; i-- {
		w := float64(i + 1)
		p := float64(toDelete) * w / weightSum
		if p >= 1 || pop.rng.Float64() < p {
			removed[i] = true
			toDelete--
		}
		weightSum -= w
	}

	kept := pop.Individuals[:0]
	for i, ind := range pop.Individuals {
		if removed[i] {
			delete(pop.scores, ind)
			continue
		}
		kept = append(kept, ind)
	}
	pop.Individuals = kept
}
