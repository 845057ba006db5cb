package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// GeneticSearch 遗传算法，染色体的每个基因直接是整数 worker 下标
type GeneticSearch struct {
	model  *CostModel
	params Parameters
	rng    *rand.Rand
	pop    *Population
}

func NewGeneticSearch(model *CostModel, params Parameters) (*GeneticSearch, error) {
	params = params.withDefaults(AlgorithmGenetic)
	if err := checkCommon(model, params, 1); err != nil {
		return nil, err
	}
	if params.EliteCount < 0 || params.EliteCount >= params.PopulationSize {
		return nil, fmt.Errorf("%w: eliteCount must be in [0, populationSize), got %d", ErrInvalidArgument, params.EliteCount)
	}
	if params.MutationRate < 0 || params.MutationRate > 1 {
		return nil, fmt.Errorf("%w: mutationRate must be in [0, 1], got %v", ErrInvalidArgument, params.MutationRate)
	}

	g := &GeneticSearch{
		model:  model,
		params: params,
		rng:    newRand(params.Seed),
	}
	// 随机初始化种群
	g.pop = InitializeDiscrete(g.rng, params.PopulationSize, model.JobCount(), model.WorkerCount(), g.evaluate)
	return g, nil
}

func (g *GeneticSearch) evaluate(position []float64) float64 {
	return g.model.Evaluate(position, FloorMod)
}

func (g *GeneticSearch) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	best := newBestTracker(g.params.Iterations)
	best.offerAll(g.pop.Individuals())

	for gen := 0; gen < g.params.Iterations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 保留精英（深拷贝，防止后续繁殖修改到它们）
		var elites []*Individual
		if g.params.EliteCount > 0 {
			g.pop.SortByFitnessAscending()
			for _, ind := range g.pop.Individuals()[:g.params.EliteCount] {
				elites = append(elites, ind.Clone())
			}
		}

		next := make([]*Individual, 0, g.params.PopulationSize)
		for len(next) < g.params.PopulationSize {
			// 均匀随机选择两个父本
			p1 := g.pop.Sample(g.rng)
			p2 := g.pop.Sample(g.rng)

			c1, c2 := g.crossover(p1, p2)
			g.mutate(c1)
			g.mutate(c2)

			next = append(next, c1)
			if len(next) < g.params.PopulationSize {
				next = append(next, c2)
			}
		}

		for _, ind := range next {
			ind.Fitness = g.evaluate(ind.Position)
		}
		g.pop.Replace(next)
		g.pop.ReplaceWorst(len(elites), elites)

		improved := best.offerAll(g.pop.Individuals())
		best.record(AlgorithmGenetic, gen, improved)
	}

	res := buildResult(AlgorithmGenetic, g.model, best, FloorMod, g.params.Iterations)
	res.Duration = time.Since(start)
	return res, nil
}

// crossover 区间交叉：随机选取切点 c1 <= c2，区间外保留各自父本的基因，
// 区间内取同一父本同一位置的基因。worker 下标不要求构成排列，所以区间内不做父本间交换
func (g *GeneticSearch) crossover(p1, p2 *Individual) (*Individual, *Individual) {
	n := len(p1.Position)
	c1 := g.rng.IntN(n)
	c2 := g.rng.IntN(n)
	if c1 > c2 {
		c1, c2 = c2, c1
	}

	child1 := p1.Clone()
	child2 := p2.Clone()
	for i := c1; i < c2; i++ {
		child1.Position[i] = p1.Position[i]
		child2.Position[i] = p2.Position[i]
	}
	return child1, child2
}

// mutate 交换两个随机任务的 worker
func (g *GeneticSearch) mutate(ch *Individual) {
	if g.rng.Float64() >= g.params.MutationRate {
		return
	}
	n := len(ch.Position)
	i := g.rng.IntN(n)
	j := g.rng.IntN(n)
	ch.Position[i], ch.Position[j] = ch.Position[j], ch.Position[i]
}
