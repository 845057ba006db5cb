package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
)

// RedDeerSearch 红鹿算法。所有个体存放在同一个种群中，
// 雄鹿、首领、挑战者与母鹿只是指向槽位的下标集合
type RedDeerSearch struct {
	model  *CostModel
	params Parameters
	rng    *rand.Rand
	pop    *Population

	lb, ub        float64
	males         []int // 按适应度升序，前 numCommanders 个为首领
	hinds         []int
	numCommanders int
}

func NewRedDeerSearch(model *CostModel, params Parameters) (*RedDeerSearch, error) {
	params = params.withDefaults(AlgorithmRedDeer)
	if err := checkCommon(model, params, 3); err != nil {
		return nil, err
	}
	if params.NumMales < 2 {
		return nil, fmt.Errorf("%w: numMales must be >= 2, got %d", ErrInvalidArgument, params.NumMales)
	}
	if params.PopulationSize-params.NumMales < 1 {
		return nil, fmt.Errorf("%w: populationSize must leave at least one hind, got %d males of %d",
			ErrInvalidArgument, params.NumMales, params.PopulationSize)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{{"alpha", params.Alpha}, {"beta", params.Beta}, {"gamma", params.Gamma}} {
		if f.value < 0 || f.value > 1 || math.IsNaN(f.value) {
			return nil, fmt.Errorf("%w: %s must be in [0, 1], got %v", ErrInvalidArgument, f.name, f.value)
		}
	}
	switch params.Selection {
	case SelectionTruncation:
	case SelectionTournament:
		if params.TournamentSize < 1 {
			return nil, fmt.Errorf("%w: tournamentSize must be >= 1, got %d", ErrInvalidArgument, params.TournamentSize)
		}
	default:
		return nil, fmt.Errorf("%w: unknown selection policy %q", ErrInvalidArgument, params.Selection)
	}

	s := &RedDeerSearch{
		model:  model,
		params: params,
		rng:    newRand(params.Seed),
		lb:     0,
		ub:     float64(model.WorkerCount()),
	}
	s.numCommanders = commanderCount(params.Gamma, params.NumMales)

	// 初始种群中最优的 NumMales 个为雄鹿，其余为母鹿
	s.pop = InitializeRandom(s.rng, params.PopulationSize, model.JobCount(), s.lb, s.ub, s.evaluate)
	s.pop.SortByFitnessAscending()
	for i := 0; i < s.pop.Len(); i++ {
		if i < params.NumMales {
			s.males = append(s.males, i)
		} else {
			s.hinds = append(s.hinds, i)
		}
	}
	return s, nil
}

// commanderCount 为 ceil(gamma * males)，并保证首领和挑战者都至少有一个
func commanderCount(gamma float64, males int) int {
	n := int(math.Ceil(gamma * float64(males)))
	return max(1, min(n, males-1))
}

func (s *RedDeerSearch) evaluate(position []float64) float64 {
	return s.model.Evaluate(position, FloorMod)
}

func (s *RedDeerSearch) commanders() []int { return s.males[:s.numCommanders] }

func (s *RedDeerSearch) stags() []int { return s.males[s.numCommanders:] }

func (s *RedDeerSearch) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	best := newBestTracker(s.params.Iterations)
	best.offerAll(s.pop.Individuals())

	for iter := 0; iter < s.params.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.roar()
		s.rankMales()
		s.fight()
		harems := s.formHarems()
		offspring := s.mate(harems)
		s.selectHinds(offspring)

		improved := best.offerAll(s.pop.Individuals())
		best.record(AlgorithmRedDeer, iter, improved)
	}

	res := buildResult(AlgorithmRedDeer, s.model, best, FloorMod, s.params.Iterations)
	res.Duration = time.Since(start)
	return res, nil
}

// roar 每只雄鹿整体平移一个随机偏移量，仅在变好时接受
func (s *RedDeerSearch) roar() {
	for _, slot := range s.males {
		male := s.pop.At(slot)
		a1, a2, a3 := s.rng.Float64(), s.rng.Float64(), s.rng.Float64()
		offset := a1 * ((s.ub-s.lb)*a2 + s.lb)
		if a3 < 0.5 {
			offset = -offset
		}

		candidate := make([]float64, len(male.Position))
		for j, x := range male.Position {
			candidate[j] = s.clamp(x + offset)
		}
		if f := s.evaluate(candidate); f < male.Fitness {
			male.Position = candidate
			male.Fitness = f
		}
	}
}

// rankMales 重新排序雄鹿，从而刷新首领与挑战者的划分
func (s *RedDeerSearch) rankMales() {
	slices.SortStableFunc(s.males, func(a, b int) int {
		return compareFitness(s.pop.At(a), s.pop.At(b))
	})
}

// fight 每个首领与随机一只挑战者比较，取四个候选中的最优
func (s *RedDeerSearch) fight() {
	stags := s.stags()
	for _, slot := range s.commanders() {
		commander := s.pop.At(slot)
		stag := s.pop.At(stags[s.rng.IntN(len(stags))])

		b1, b2 := s.rng.Float64(), s.rng.Float64()
		offset := b1 * ((s.ub-s.lb)*b2 + s.lb)
		up := make([]float64, len(commander.Position))
		down := make([]float64, len(commander.Position))
		for j := range commander.Position {
			avg := (commander.Position[j] + stag.Position[j]) / 2
			up[j] = s.clamp(avg + offset)
			down[j] = s.clamp(avg - offset)
		}

		bestPos, bestFitness := commander.Position, commander.Fitness
		for _, c := range []struct {
			pos     []float64
			fitness float64
		}{
			{stag.Position, stag.Fitness},
			{up, s.evaluate(up)},
			{down, s.evaluate(down)},
		} {
			if c.fitness < bestFitness {
				bestPos, bestFitness = c.pos, c.fitness
			}
		}
		commander.Position = slices.Clone(bestPos)
		commander.Fitness = bestFitness
	}
}

func (s *RedDeerSearch) formHarems() [][]int {
	commanders := s.commanders()
	fitness := make([]float64, len(commanders))
	for i, slot := range commanders {
		fitness[i] = s.pop.At(slot).Fitness
	}
	return partitionHarems(s.rng, fitness, s.hinds)
}

// mate 产生的子代只进入暂存池，不直接加入种群
func (s *RedDeerSearch) mate(harems [][]int) []*Individual {
	var pool []*Individual
	commanders := s.commanders()

	for i, slot := range commanders {
		commander := s.pop.At(slot)

		harem := harems[i]
		for k := 0; k < int(float64(len(harem))*s.params.Alpha); k++ {
			hind := s.pop.At(harem[s.rng.IntN(len(harem))])
			pool = append(pool, s.offspring(commander, hind))
		}

		if len(commanders) < 2 {
			continue
		}
		other := s.rng.IntN(len(commanders) - 1)
		if other >= i {
			other++
		}
		harem = harems[other]
		for k := 0; k < int(float64(len(harem))*s.params.Beta); k++ {
			hind := s.pop.At(harem[s.rng.IntN(len(harem))])
			pool = append(pool, s.offspring(commander, hind))
		}
	}

	for _, slot := range s.stags() {
		stag := s.pop.At(slot)
		if hind := s.nearestHind(stag); hind != nil {
			pool = append(pool, s.offspring(stag, hind))
		}
	}
	return pool
}

// offspring 父母坐标的均值加上一个带符号的随机扰动
func (s *RedDeerSearch) offspring(p1, p2 *Individual) *Individual {
	offset := s.rng.Float64() * (s.ub - s.lb)
	if s.rng.IntN(2) == 0 {
		offset = -offset
	}
	pos := make([]float64, len(p1.Position))
	for j := range pos {
		pos[j] = s.clamp((p1.Position[j]+p2.Position[j])/2 + offset)
	}
	return &Individual{Position: pos, Fitness: s.evaluate(pos)}
}

func (s *RedDeerSearch) nearestHind(stag *Individual) *Individual {
	var nearest *Individual
	minDist := math.Inf(1)
	for _, slot := range s.hinds {
		hind := s.pop.At(slot)
		if d := floats.Distance(stag.Position, hind.Position, 2); d < minDist {
			minDist = d
			nearest = hind
		}
	}
	return nearest
}

// selectHinds 从 暂存池 ∪ 当前母鹿 中选出下一代母鹿，写回母鹿的槽位
func (s *RedDeerSearch) selectHinds(offspring []*Individual) {
	candidates := make([]*Individual, 0, len(offspring)+len(s.hinds))
	candidates = append(candidates, offspring...)
	for _, slot := range s.hinds {
		candidates = append(candidates, s.pop.At(slot))
	}

	var selected []*Individual
	switch s.params.Selection {
	case SelectionTruncation:
		selected = truncationSelect(candidates, len(s.hinds))
	default:
		selected = tournamentSelect(s.rng, candidates, len(s.hinds), s.params.TournamentSize)
	}

	// Put 写入的是副本，同一个体被多次选中也不会共享位置切片
	for i, slot := range s.hinds {
		s.pop.Put(slot, selected[i])
	}
}

func (s *RedDeerSearch) clamp(x float64) float64 {
	return math.Max(s.lb, math.Min(s.ub, x))
}
