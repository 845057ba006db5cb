package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func smallParameters(alg Algorithm) Parameters {
	p := DefaultParameters(alg)
	p.Iterations = 20
	p.Seed = 42
	switch alg {
	case AlgorithmGenetic:
		p.PopulationSize = 10
	case AlgorithmGreyWolf:
		p.PopulationSize = 5
	case AlgorithmRedDeer:
		p.PopulationSize = 20
		p.NumMales = 5
	}
	return p
}

func TestOptimizeShape(t *testing.T) {
	sizes := []struct{ workers, jobs int }{
		{1, 1}, {2, 7}, {5, 5}, {7, 3}, {10, 40},
	}
	for _, alg := range Algorithms {
		for _, sz := range sizes {
			t.Run(fmt.Sprintf("%s/%dx%d", alg, sz.workers, sz.jobs), func(t *testing.T) {
				assignment, err := Optimize(context.Background(), alg, sz.workers, sz.jobs, smallParameters(alg))
				require.NoError(t, err)
				require.Len(t, assignment, sz.jobs)
				for _, w := range assignment {
					assert.GreaterOrEqual(t, w, 0)
					assert.Less(t, w, sz.workers)
				}
			})
		}
	}
}

func TestOptimizeSingleWorker(t *testing.T) {
	for _, alg := range Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			for _, iterations := range []int{1, 10} {
				p := smallParameters(alg)
				p.Iterations = iterations
				assignment, err := Optimize(context.Background(), alg, 1, 9, p)
				require.NoError(t, err)
				assert.Equal(t, make([]int, 9), assignment)
			}
		})
	}
}

func TestOptimizeInvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		alg     Algorithm
		workers int
		jobs    int
	}{
		{name: "zero workers", alg: AlgorithmGenetic, workers: 0, jobs: 3},
		{name: "negative jobs", alg: AlgorithmGreyWolf, workers: 3, jobs: -1},
		{name: "zero jobs", alg: AlgorithmRedDeer, workers: 3, jobs: 0},
		{name: "unknown algorithm", alg: Algorithm("annealing"), workers: 3, jobs: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Optimize(context.Background(), tt.alg, tt.workers, tt.jobs, Parameters{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}
}

func TestHistoryIsNonIncreasing(t *testing.T) {
	m, err := NewUniformCostModel(5, 25)
	require.NoError(t, err)

	for _, alg := range Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			p := smallParameters(alg)
			p.Iterations = 40
			s, err := New(alg, m, p)
			require.NoError(t, err)

			res, err := s.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, res.History, 40)
			for i := 1; i < len(res.History); i++ {
				assert.LessOrEqual(t, res.History[i], res.History[i-1])
			}
			assert.Equal(t, alg, res.Algorithm)
			assert.Equal(t, 40, res.Iterations)
			assert.InDelta(t, res.History[len(res.History)-1], res.Fitness, 1e-12)
		})
	}
}

func TestBalancedScenario(t *testing.T) {
	m, err := NewCostModel(uniformWorkers(3, 1000), UniformJobs(6, DefaultJobLength), DefaultWeights)
	require.NoError(t, err)

	for _, alg := range Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			p := DefaultParameters(alg)
			p.Seed = 7
			// 交换变异不改变各 worker 的任务数，遗传算法需要足够大的初始种群
			p.PopulationSize = 200
			p.Iterations = 100
			s, err := New(alg, m, p)
			require.NoError(t, err)

			res, err := s.Run(context.Background())
			require.NoError(t, err)

			load := m.Workload(res.Assignment)
			loads := make([]float64, len(load))
			for i, l := range load {
				loads[i] = float64(l)
			}
			assert.Less(t, stat.Variance(loads, nil), 0.5, "workload %v", load)
		})
	}
}

func TestSameSeedSameAssignment(t *testing.T) {
	for _, alg := range Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			p := smallParameters(alg)
			a, err := Optimize(context.Background(), alg, 4, 12, p)
			require.NoError(t, err)
			b, err := Optimize(context.Background(), alg, 4, 12, p)
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	m, err := NewUniformCostModel(3, 6)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, alg := range Algorithms {
		s, err := New(alg, m, smallParameters(alg))
		require.NoError(t, err)
		_, err = s.Run(ctx)
		assert.True(t, errors.Is(err, context.Canceled), "%s", alg)
	}
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	p := Parameters{Seed: 9}.withDefaults(AlgorithmRedDeer)
	def := DefaultParameters(AlgorithmRedDeer)
	def.Seed = 9
	assert.Equal(t, def, p)

	p = Parameters{PopulationSize: 6, EliteCount: 1}.withDefaults(AlgorithmGenetic)
	assert.Equal(t, 6, p.PopulationSize)
	assert.Equal(t, 2000, p.Iterations)
	assert.Equal(t, 1, p.EliteCount)
	assert.Equal(t, 1.0, p.MutationRate)
}

func TestNewRejectsNilModel(t *testing.T) {
	_, err := New(AlgorithmGenetic, nil, Parameters{})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
