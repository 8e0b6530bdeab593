// Package random 提供求解过程使用的随机工具，每次求解持有独立的随机源
package random

import (
	"math/rand"
	"sort"
	"time"
)

// New 创建随机源，seed 为 0 时使用当前时间
func New(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Pick 从切片中随机取一个元素，切片为空时 panic
func Pick[T any](rng *rand.Rand, items []T) T {
	return items[rng.Intn(len(items))]
}

// InPercentage 以概率 p（0~1）返回 true
func InPercentage(rng *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rng.Float64() < p
}

// Normal 正态分布取值
func Normal(rng *rand.Rand, mean, stdDev float64) float64 {
	return rng.NormFloat64()*stdDev + mean
}

// Weighted 按权重随机选取一个键
// total <= 0 时重新计算总和；总和仍不为正时等概率选取
// 键按升序遍历，保证固定种子下结果可复现
func Weighted(rng *rand.Rand, weights map[int64]int64, total int64) (int64, bool) {
	if len(weights) == 0 {
		return 0, false
	}
	keys := make([]int64, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	if total <= 0 {
		total = 0
		for _, k := range keys {
			total += weights[k]
		}
	}
	if total <= 0 {
		return keys[rng.Intn(len(keys))], true
	}

	r := rng.Int63n(total) + 1
	var acc int64
	for _, k := range keys {
		acc += weights[k]
		if acc >= r {
			return k, true
		}
	}
	return keys[len(keys)-1], true
}
