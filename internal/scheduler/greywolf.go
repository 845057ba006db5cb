package scheduler

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

const minWolves = 3

type leader struct {
	position []float64
	fitness  float64
}

// GreyWolfSearch 灰狼优化，坐标在每次更新后被截断并取整为合法的 worker 下标
type GreyWolfSearch struct {
	model  *CostModel
	params Parameters
	rng    *rand.Rand
	wolves *Population

	alpha leader
	beta  leader
	delta leader
}

func NewGreyWolfSearch(model *CostModel, params Parameters) (*GreyWolfSearch, error) {
	params = params.withDefaults(AlgorithmGreyWolf)
	if err := checkCommon(model, params, minWolves); err != nil {
		return nil, err
	}

	s := &GreyWolfSearch{
		model:  model,
		params: params,
		rng:    newRand(params.Seed),
	}
	dim := model.JobCount()
	for _, l := range []*leader{&s.alpha, &s.beta, &s.delta} {
		l.position = make([]float64, dim)
		l.fitness = math.Inf(1)
	}

	s.wolves = InitializeDiscrete(s.rng, params.PopulationSize, dim, model.WorkerCount(), s.evaluate)
	s.updateLeaders()
	return s, nil
}

func (s *GreyWolfSearch) evaluate(position []float64) float64 {
	return s.model.Evaluate(position, ClampRound)
}

// updateLeaders 局部冒泡：击败 alpha 则 alpha、beta 依次降级，依此类推
func (s *GreyWolfSearch) updateLeaders() {
	for _, w := range s.wolves.Individuals() {
		switch {
		case w.Fitness < s.alpha.fitness:
			s.delta = s.beta
			s.beta = s.alpha
			s.alpha = leader{position: slices.Clone(w.Position), fitness: w.Fitness}
		case w.Fitness < s.beta.fitness:
			s.delta = s.beta
			s.beta = leader{position: slices.Clone(w.Position), fitness: w.Fitness}
		case w.Fitness < s.delta.fitness:
			s.delta = leader{position: slices.Clone(w.Position), fitness: w.Fitness}
		}
	}
}

// Leaders 返回当前 alpha、beta、delta 的适应度
func (s *GreyWolfSearch) Leaders() (alpha, beta, delta float64) {
	return s.alpha.fitness, s.beta.fitness, s.delta.fitness
}

func (s *GreyWolfSearch) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	best := newBestTracker(s.params.Iterations)
	best.offer(s.alpha.position, s.alpha.fitness)

	maxID := float64(s.model.WorkerCount() - 1)
	for iter := 0; iter < s.params.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a := 2 - 2*float64(iter)/float64(s.params.Iterations)
		for _, w := range s.wolves.Individuals() {
			for j, x := range w.Position {
				x1 := s.pull(s.alpha.position[j], x, a)
				x2 := s.pull(s.beta.position[j], x, a)
				x3 := s.pull(s.delta.position[j], x, a)
				w.Position[j] = math.Round(math.Max(0, math.Min(maxID, (x1+x2+x3)/3)))
			}
			w.Fitness = s.evaluate(w.Position)
		}
		s.updateLeaders()

		improved := best.offer(s.alpha.position, s.alpha.fitness)
		best.record(AlgorithmGreyWolf, iter, improved)
	}

	res := buildResult(AlgorithmGreyWolf, s.model, best, ClampRound, s.params.Iterations)
	res.Duration = time.Since(start)
	return res, nil
}

// pull 计算单个首领对当前坐标的牵引，A、C 每次重新采样
func (s *GreyWolfSearch) pull(leaderX, x, a float64) float64 {
	A := 2*a*s.rng.Float64() - a
	C := 2 * s.rng.Float64()
	d := math.Abs(C*leaderX - x)
	return leaderX - A*d
}
