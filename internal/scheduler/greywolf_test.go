package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreyWolfRequiresThreeWolves(t *testing.T) {
	m, err := NewUniformCostModel(3, 5)
	require.NoError(t, err)

	_, err = NewGreyWolfSearch(m, Parameters{PopulationSize: 2, Iterations: 10})
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestGreyWolfLeaderOrdering(t *testing.T) {
	m, err := NewUniformCostModel(5, 15)
	require.NoError(t, err)
	s, err := NewGreyWolfSearch(m, Parameters{PopulationSize: 8, Iterations: 30, Seed: 5})
	require.NoError(t, err)

	alpha, beta, delta := s.Leaders()
	assert.LessOrEqual(t, alpha, beta)
	assert.LessOrEqual(t, beta, delta)

	// 单步推进，每次评估之后检查首领顺序
	for i := 0; i < 5; i++ {
		for _, w := range s.wolves.Individuals() {
			for j := range w.Position {
				w.Position[j] = float64(s.rng.IntN(m.WorkerCount()))
			}
			w.Fitness = s.evaluate(w.Position)
		}
		s.updateLeaders()

		alpha, beta, delta = s.Leaders()
		assert.LessOrEqual(t, alpha, beta)
		assert.LessOrEqual(t, beta, delta)
	}

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	alpha, beta, delta = s.Leaders()
	assert.LessOrEqual(t, alpha, beta)
	assert.LessOrEqual(t, beta, delta)
	assert.InDelta(t, alpha, res.Fitness, 1e-12)
}

func TestGreyWolfUpdateLeadersDemotes(t *testing.T) {
	m, err := NewUniformCostModel(2, 1)
	require.NoError(t, err)
	s, err := NewGreyWolfSearch(m, Parameters{PopulationSize: 3, Iterations: 1})
	require.NoError(t, err)

	s.alpha = leader{position: []float64{0}, fitness: 0.3}
	s.beta = leader{position: []float64{0}, fitness: 0.5}
	s.delta = leader{position: []float64{0}, fitness: 0.7}
	s.wolves = NewPopulation([]*Individual{
		{Position: []float64{1}, Fitness: 0.6},
		{Position: []float64{1}, Fitness: 0.1},
		{Position: []float64{1}, Fitness: 0.9},
	})
	s.updateLeaders()

	alpha, beta, delta := s.Leaders()
	assert.Equal(t, 0.1, alpha)
	assert.Equal(t, 0.3, beta)
	assert.Equal(t, 0.5, delta)
}

func TestGreyWolfPositionsStayIntegral(t *testing.T) {
	m, err := NewUniformCostModel(4, 10)
	require.NoError(t, err)
	s, err := NewGreyWolfSearch(m, Parameters{PopulationSize: 6, Iterations: 20, Seed: 9})
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	for _, w := range s.wolves.Individuals() {
		for _, x := range w.Position {
			assert.Equal(t, float64(int(x)), x)
			assert.GreaterOrEqual(t, x, 0.0)
			assert.LessOrEqual(t, x, 3.0)
		}
	}
}
