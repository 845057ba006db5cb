package scheduler

import (
	"math"
	"math/rand/v2"
	"slices"
)

// Objective 计算一个位置向量的适应度，越小越好
type Objective func(position []float64) float64

// Individual 为一个候选分配向量及其缓存的适应度
type Individual struct {
	ID       int // 即在种群中的槽位下标
	Position []float64
	Fitness  float64
}

// Clone 深拷贝，子代的变异不能影响父代
func (ind *Individual) Clone() *Individual {
	return &Individual{
		ID:       ind.ID,
		Position: slices.Clone(ind.Position),
		Fitness:  ind.Fitness,
	}
}

// Population 是固定大小的个体集合，本身不包含任何优化策略
type Population struct {
	individuals []*Individual
}

func NewPopulation(individuals []*Individual) *Population {
	p := &Population{individuals: individuals}
	p.reindex()
	return p
}

// InitializeRandom 每个坐标在 [lowerBound, upperBound) 中独立均匀采样
func InitializeRandom(rng *rand.Rand, size, dimension int, lowerBound, upperBound float64, objective Objective) *Population {
	individuals := make([]*Individual, size)
	for i := range individuals {
		pos := make([]float64, dimension)
		for j := range pos {
			pos[j] = lowerBound + (upperBound-lowerBound)*rng.Float64()
		}
		individuals[i] = &Individual{ID: i, Position: pos, Fitness: objective(pos)}
	}
	return &Population{individuals: individuals}
}

// InitializeDiscrete 每个坐标是 [0, workerCount) 中均匀采样的整数 worker 下标
func InitializeDiscrete(rng *rand.Rand, size, dimension, workerCount int, objective Objective) *Population {
	individuals := make([]*Individual, size)
	for i := range individuals {
		pos := make([]float64, dimension)
		for j := range pos {
			pos[j] = float64(rng.IntN(workerCount))
		}
		individuals[i] = &Individual{ID: i, Position: pos, Fitness: objective(pos)}
	}
	return &Population{individuals: individuals}
}

func (p *Population) Len() int { return len(p.individuals) }

func (p *Population) At(i int) *Individual { return p.individuals[i] }

func (p *Population) Individuals() []*Individual { return p.individuals }

// Evaluate 重新计算所有个体的适应度
func (p *Population) Evaluate(objective Objective) {
	for _, ind := range p.individuals {
		ind.Fitness = objective(ind.Position)
	}
}

// SortByFitnessAscending 原地按适应度升序排序，排序后槽位下标随之更新
func (p *Population) SortByFitnessAscending() {
	slices.SortStableFunc(p.individuals, compareFitness)
	p.reindex()
}

// Best 返回适应度最小的个体
func (p *Population) Best() *Individual {
	if len(p.individuals) == 0 {
		return nil
	}
	return slices.MinFunc(p.individuals, compareFitness)
}

// Worst 返回适应度最大的个体
func (p *Population) Worst() *Individual {
	if len(p.individuals) == 0 {
		return nil
	}
	return slices.MaxFunc(p.individuals, compareFitness)
}

// Sample 均匀随机选取一个个体（不按适应度加权）
func (p *Population) Sample(rng *rand.Rand) *Individual {
	return p.individuals[rng.IntN(len(p.individuals))]
}

// Replace 整代替换，个体数量必须保持不变
func (p *Population) Replace(individuals []*Individual) {
	if len(individuals) != len(p.individuals) {
		panic("scheduler: population size must stay constant")
	}
	p.individuals = individuals
	p.reindex()
}

// Put 将 ind 的副本放入第 slot 个槽位
func (p *Population) Put(slot int, ind *Individual) {
	c := ind.Clone()
	c.ID = slot
	p.individuals[slot] = c
}

// ReplaceWorst 用 newIndividuals 中的前 k 个替换当前最差的 k 个个体
func (p *Population) ReplaceWorst(k int, newIndividuals []*Individual) {
	k = min(k, len(newIndividuals), len(p.individuals))
	if k <= 0 {
		return
	}
	p.SortByFitnessAscending()
	offset := len(p.individuals) - k
	for i := 0; i < k; i++ {
		p.individuals[offset+i] = newIndividuals[i].Clone()
	}
	p.reindex()
}

func (p *Population) reindex() {
	for i, ind := range p.individuals {
		ind.ID = i
	}
}

func compareFitness(a, b *Individual) int {
	switch {
	case a.Fitness < b.Fitness:
		return -1
	case a.Fitness > b.Fitness:
		return 1
	}
	// NaN 视为最差
	switch {
	case math.IsNaN(a.Fitness) && !math.IsNaN(b.Fitness):
		return 1
	case !math.IsNaN(a.Fitness) && math.IsNaN(b.Fitness):
		return -1
	}
	return 0
}
