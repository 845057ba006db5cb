package scheduler

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformWorkers(n int, rate float64) []Worker {
	workers := make([]Worker, n)
	for i := range workers {
		workers[i] = Worker{Rate: rate, Cost: DefaultVMCost}
	}
	return workers
}

func positionOf(assignment ...int) []float64 {
	return assignmentPosition(assignment)
}

func TestNewCostModelRejectsInvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		workers []Worker
		jobs    []float64
		weights Weights
	}{
		{name: "no workers", workers: nil, jobs: UniformJobs(3, 500), weights: DefaultWeights},
		{name: "no jobs", workers: uniformWorkers(2, 1000), jobs: nil, weights: DefaultWeights},
		{name: "zero rate", workers: []Worker{{Rate: 0, Cost: 1}}, jobs: UniformJobs(1, 500), weights: DefaultWeights},
		{name: "negative cost", workers: []Worker{{Rate: 1000, Cost: -1}}, jobs: UniformJobs(1, 500), weights: DefaultWeights},
		{name: "negative job length", workers: uniformWorkers(1, 1000), jobs: []float64{-5}, weights: DefaultWeights},
		{name: "negative weight", workers: uniformWorkers(1, 1000), jobs: UniformJobs(1, 500), weights: Weights{Makespan: 1.5, Cost: -0.5}},
		{name: "weights do not sum to one", workers: uniformWorkers(1, 1000), jobs: UniformJobs(1, 500), weights: Weights{Makespan: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCostModel(tt.workers, tt.jobs, tt.weights)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}
}

func TestNewUniformCostModelCyclesDemoMips(t *testing.T) {
	m, err := NewUniformCostModel(7, 4)
	require.NoError(t, err)

	assert.Equal(t, 7, m.WorkerCount())
	assert.Equal(t, 4, m.JobCount())
	assert.Equal(t, DefaultWeights, m.Weights())
	assert.Equal(t, 1000.0, m.workers[5].Rate)
	assert.Equal(t, 2500.0, m.workers[6].Rate)
}

func TestBreakdownAllJobsOnOneWorkerIsWorstCase(t *testing.T) {
	m, err := NewCostModel(uniformWorkers(3, 1000), UniformJobs(6, 500), DefaultWeights)
	require.NoError(t, err)

	met := m.Breakdown(positionOf(1, 1, 1, 1, 1, 1), FloorMod)

	assert.InDelta(t, 3.0, met.Makespan, 1e-12)
	assert.InDelta(t, 1.0, met.NormMakespan, 1e-12, "makespan should hit its upper bound")
	assert.InDelta(t, 1.0/3, met.Utilization, 1e-12)
	assert.InDelta(t, 0.0, met.NormUtilization, 1e-12, "utilization should hit maximal imbalance")
}

func TestBreakdownBalancedAssignment(t *testing.T) {
	m, err := NewCostModel(uniformWorkers(3, 1000), UniformJobs(6, 500), DefaultWeights)
	require.NoError(t, err)

	balanced := m.Breakdown(positionOf(0, 1, 2, 0, 1, 2), FloorMod)
	assert.InDelta(t, 1.0, balanced.Makespan, 1e-12)
	assert.InDelta(t, 0.0, balanced.NormMakespan, 1e-12)
	assert.InDelta(t, 1.0, balanced.NormUtilization, 1e-12)
	assert.InDelta(t, 0.75, balanced.ResponseTime, 1e-12)

	skewed := m.Breakdown(positionOf(0, 0, 0, 1, 1, 2), FloorMod)
	assert.Less(t, balanced.Fitness, skewed.Fitness)
}

func TestBreakdownFitnessStaysInUnitInterval(t *testing.T) {
	m, err := NewUniformCostModel(5, 20)
	require.NoError(t, err)

	rng := newRand(7)
	for i := 0; i < 200; i++ {
		pos := make([]float64, m.JobCount())
		for j := range pos {
			pos[j] = float64(rng.IntN(m.WorkerCount()))
		}
		f := m.Evaluate(pos, FloorMod)
		assert.False(t, math.IsNaN(f))
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestBreakdownSingleWorkerIsNeutral(t *testing.T) {
	m, err := NewCostModel(uniformWorkers(1, 1000), UniformJobs(4, 500), DefaultWeights)
	require.NoError(t, err)

	met := m.Breakdown(positionOf(0, 0, 0, 0), FloorMod)
	assert.Equal(t, neutralNorm, met.NormMakespan)
	assert.Equal(t, neutralNorm, met.NormCost)
	assert.False(t, math.IsNaN(met.Fitness))
}

func TestBreakdownRejectsPositionLengthMismatch(t *testing.T) {
	m, err := NewCostModel(uniformWorkers(3, 1000), UniformJobs(6, 500), DefaultWeights)
	require.NoError(t, err)

	assert.Panics(t, func() { m.Breakdown(positionOf(0, 1, 2), FloorMod) })
	assert.Panics(t, func() { m.Evaluate(positionOf(0, 1, 2, 0, 1, 2, 0), FloorMod) })
	assert.NotPanics(t, func() { m.Evaluate(positionOf(0, 1, 2, 0, 1, 2), FloorMod) })
}

func TestNormalizeDegenerateBounds(t *testing.T) {
	assert.Equal(t, neutralNorm, normalize(5, bounds{min: 2, max: 2}))
	assert.Equal(t, 0.5, normalize(3, bounds{min: 2, max: 4}))
	assert.Equal(t, 1.0, normalize(10, bounds{min: 2, max: 4}))
	assert.Equal(t, 0.0, normalize(-10, bounds{min: 2, max: 4}))
}

func TestMappings(t *testing.T) {
	tests := []struct {
		name    string
		mapping Mapping
		x       float64
		workers int
		want    int
	}{
		{name: "clamp below", mapping: ClampRound, x: -1.2, workers: 3, want: 0},
		{name: "round down", mapping: ClampRound, x: 0.4, workers: 3, want: 0},
		{name: "round up", mapping: ClampRound, x: 0.6, workers: 3, want: 1},
		{name: "clamp above", mapping: ClampRound, x: 7, workers: 3, want: 2},
		{name: "clamp nan", mapping: ClampRound, x: math.NaN(), workers: 3, want: 0},
		{name: "floor", mapping: FloorMod, x: 2.7, workers: 3, want: 2},
		{name: "wrap upper bound", mapping: FloorMod, x: 3, workers: 3, want: 0},
		{name: "wrap past", mapping: FloorMod, x: 5.2, workers: 3, want: 2},
		{name: "negative", mapping: FloorMod, x: -0.5, workers: 3, want: 2},
		{name: "inf", mapping: FloorMod, x: math.Inf(1), workers: 3, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mapping(tt.x, tt.workers))
		})
	}
}

func TestWorkload(t *testing.T) {
	m, err := NewUniformCostModel(3, 5)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 0, 3}, m.Workload([]int{0, 2, 2, 0, 2}))
}
