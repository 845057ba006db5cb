package scheduler

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// partitionHarems 将母鹿按首领的权重 |f_i - max f| 划分为若干后宫。
// 母鹿先被打乱，每个首领按比例四舍五入取一段，余数全部归最后一个首领，
// 因此各后宫大小之和恒等于母鹿数量，且每只母鹿只出现一次
func partitionHarems(rng *rand.Rand, commanderFitness []float64, hinds []int) [][]int {
	n := len(commanderFitness)
	harems := make([][]int, n)
	if n == 0 {
		return harems
	}

	maxFitness := floats.Max(commanderFitness)
	weights := make([]float64, n)
	for i, f := range commanderFitness {
		weights[i] = math.Abs(f - maxFitness)
	}
	total := floats.Sum(weights)

	shuffled := append([]int(nil), hinds...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	assigned := 0
	for i := range harems {
		remaining := len(shuffled) - assigned
		size := remaining
		if i < n-1 {
			proportion := 1 / float64(n)
			if total > 0 {
				proportion = weights[i] / total
			}
			size = min(int(math.Round(proportion*float64(len(shuffled)))), remaining)
		}
		harems[i] = shuffled[assigned : assigned+size]
		assigned += size
	}
	return harems
}
