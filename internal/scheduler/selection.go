package scheduler

import (
	"math/rand/v2"
	"slices"
)

// truncationSelect 按适应度升序取前 n 个
func truncationSelect(candidates []*Individual, n int) []*Individual {
	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, compareFitness)
	return sorted[:min(n, len(sorted))]
}

// tournamentSelect 第一个名额直接给候选中的最优个体，其余每个名额做一次 k 路锦标赛（有放回）
func tournamentSelect(rng *rand.Rand, candidates []*Individual, n, k int) []*Individual {
	if len(candidates) == 0 || n <= 0 {
		return nil
	}
	selected := make([]*Individual, 0, n)
	selected = append(selected, slices.MinFunc(candidates, compareFitness))
	for len(selected) < n {
		winner := candidates[rng.IntN(len(candidates))]
		for i := 1; i < k; i++ {
			c := candidates[rng.IntN(len(candidates))]
			if compareFitness(c, winner) < 0 {
				winner = c
			}
		}
		selected = append(selected, winner)
	}
	return selected
}
