package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
)

// Search 是三种元启发式搜索的统一接口，Run 在一次调用中同步完成整个搜索
type Search interface {
	Run(ctx context.Context) (*Result, error)
}

// DefaultParameters 返回各算法的默认参数
func DefaultParameters(alg Algorithm) Parameters {
	switch alg {
	case AlgorithmGenetic:
		return Parameters{PopulationSize: 20, Iterations: 2000, MutationRate: 1}
	case AlgorithmGreyWolf:
		return Parameters{PopulationSize: 10, Iterations: 100}
	case AlgorithmRedDeer:
		return Parameters{
			PopulationSize: 100,
			Iterations:     100,
			NumMales:       15,
			Alpha:          0.9,
			Beta:           0.4,
			Gamma:          0.7,
			Selection:      SelectionTournament,
			TournamentSize: 5,
		}
	}
	return Parameters{}
}

// New 根据算法构造一个搜索实例，所有参数检查都在构造时完成
func New(alg Algorithm, model *CostModel, params Parameters) (Search, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil cost model", ErrInvalidArgument)
	}
	switch alg {
	case AlgorithmGenetic:
		return NewGeneticSearch(model, params)
	case AlgorithmGreyWolf:
		return NewGreyWolfSearch(model, params)
	case AlgorithmRedDeer:
		return NewRedDeerSearch(model, params)
	}
	return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidArgument, alg)
}

// Optimize 使用演示环境的代价模型对 jobCount 个任务在 workerCount 个 worker 上求解分配
func Optimize(ctx context.Context, alg Algorithm, workerCount, jobCount int, params Parameters) ([]int, error) {
	if workerCount <= 0 || jobCount <= 0 {
		return nil, fmt.Errorf("%w: workerCount and jobCount must be > 0", ErrInvalidArgument)
	}
	model, err := NewUniformCostModel(workerCount, jobCount)
	if err != nil {
		return nil, err
	}
	s, err := New(alg, model, params)
	if err != nil {
		return nil, err
	}
	res, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}
	return res.Assignment, nil
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func checkCommon(model *CostModel, params Parameters, minPopulation int) error {
	if model == nil {
		return fmt.Errorf("%w: nil cost model", ErrInvalidArgument)
	}
	if params.PopulationSize < minPopulation {
		return fmt.Errorf("%w: populationSize must be >= %d, got %d", ErrInvalidArgument, minPopulation, params.PopulationSize)
	}
	if params.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidArgument, params.Iterations)
	}
	return nil
}

// bestTracker 记录整个搜索过程中见过的最优个体，适应度单调不增
type bestTracker struct {
	position []float64
	fitness  float64
	history  []float64
}

func newBestTracker(iterations int) *bestTracker {
	return &bestTracker{
		fitness: math.Inf(1),
		history: make([]float64, 0, iterations),
	}
}

// offer 仅在严格更优时更新，并深拷贝位置
func (b *bestTracker) offer(position []float64, fitness float64) bool {
	if !(fitness < b.fitness) {
		return false
	}
	b.fitness = fitness
	b.position = slices.Clone(position)
	return true
}

func (b *bestTracker) offerAll(individuals []*Individual) bool {
	improved := false
	for _, ind := range individuals {
		if b.offer(ind.Position, ind.Fitness) {
			improved = true
		}
	}
	return improved
}

// record 在一次完整的迭代评估结束后记录当前最优
func (b *bestTracker) record(alg Algorithm, iter int, improved bool) {
	b.history = append(b.history, b.fitness)
	if improved {
		slog.Debug("发现更优解", "algorithm", alg, "iteration", iter, "fitness", b.fitness)
	}
}

// toAssignment 将连续位置映射为 worker 下标
func toAssignment(position []float64, workerCount int, mapping Mapping) []int {
	assignment := make([]int, len(position))
	for j, x := range position {
		assignment[j] = mapping(x, workerCount)
	}
	return assignment
}

// assignmentPosition 将 worker 下标还原为位置向量，用于计算结果指标
func assignmentPosition(assignment []int) []float64 {
	pos := make([]float64, len(assignment))
	for j, w := range assignment {
		pos[j] = float64(w)
	}
	return pos
}

func buildResult(alg Algorithm, model *CostModel, best *bestTracker, mapping Mapping, iterations int) *Result {
	assignment := toAssignment(best.position, model.WorkerCount(), mapping)
	metrics := model.Breakdown(assignmentPosition(assignment), FloorMod)
	return &Result{
		Algorithm:  alg,
		Assignment: assignment,
		Fitness:    metrics.Fitness,
		Metrics:    metrics,
		History:    best.history,
		Iterations: iterations,
	}
}

// withDefaults 用算法默认值填充未设置（零值）的参数
func (p Parameters) withDefaults(alg Algorithm) Parameters {
	def := DefaultParameters(alg)
	if p.PopulationSize == 0 {
		p.PopulationSize = def.PopulationSize
	}
	if p.Iterations == 0 {
		p.Iterations = def.Iterations
	}
	switch alg {
	case AlgorithmGenetic:
		if p.MutationRate == 0 {
			p.MutationRate = def.MutationRate
		}
	case AlgorithmRedDeer:
		if p.NumMales == 0 {
			p.NumMales = def.NumMales
		}
		if p.Alpha == 0 {
			p.Alpha = def.Alpha
		}
		if p.Beta == 0 {
			p.Beta = def.Beta
		}
		if p.Gamma == 0 {
			p.Gamma = def.Gamma
		}
		if p.Selection == "" {
			p.Selection = def.Selection
		}
		if p.TournamentSize == 0 {
			p.TournamentSize = def.TournamentSize
		}
	}
	return p
}
