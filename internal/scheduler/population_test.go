package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumObjective(position []float64) float64 {
	var s float64
	for _, x := range position {
		s += x
	}
	return s
}

func TestInitializeRandom(t *testing.T) {
	rng := newRand(1)
	p := InitializeRandom(rng, 10, 4, 1, 3, sumObjective)

	require.Equal(t, 10, p.Len())
	for i, ind := range p.Individuals() {
		assert.Equal(t, i, ind.ID)
		assert.Len(t, ind.Position, 4)
		for _, x := range ind.Position {
			assert.GreaterOrEqual(t, x, 1.0)
			assert.Less(t, x, 3.0)
		}
		assert.Equal(t, sumObjective(ind.Position), ind.Fitness)
	}
}

func TestInitializeDiscrete(t *testing.T) {
	rng := newRand(2)
	p := InitializeDiscrete(rng, 8, 5, 3, sumObjective)

	for _, ind := range p.Individuals() {
		for _, x := range ind.Position {
			assert.Equal(t, float64(int(x)), x)
			assert.GreaterOrEqual(t, x, 0.0)
			assert.Less(t, x, 3.0)
		}
	}
}

func newTestPopulation(fitness ...float64) *Population {
	individuals := make([]*Individual, len(fitness))
	for i, f := range fitness {
		individuals[i] = &Individual{Position: []float64{f}, Fitness: f}
	}
	return NewPopulation(individuals)
}

func TestSortBestWorst(t *testing.T) {
	p := newTestPopulation(3, 1, 4, 1.5)

	assert.Equal(t, 1.0, p.Best().Fitness)
	assert.Equal(t, 4.0, p.Worst().Fitness)

	p.SortByFitnessAscending()
	var got []float64
	for i, ind := range p.Individuals() {
		assert.Equal(t, i, ind.ID)
		got = append(got, ind.Fitness)
	}
	assert.Equal(t, []float64{1, 1.5, 3, 4}, got)
}

func TestReplaceWorst(t *testing.T) {
	p := newTestPopulation(3, 1, 4, 2)
	newcomer := &Individual{Position: []float64{0}, Fitness: 0}

	p.ReplaceWorst(1, []*Individual{newcomer})

	require.Equal(t, 4, p.Len())
	assert.Equal(t, 3.0, p.Worst().Fitness)
	assert.Equal(t, 0.0, p.Best().Fitness)

	// 存入的是副本
	newcomer.Position[0] = 99
	assert.Equal(t, 0.0, p.Best().Position[0])
}

func TestReplaceKeepsSizeConstant(t *testing.T) {
	p := newTestPopulation(1, 2)
	assert.Panics(t, func() {
		p.Replace([]*Individual{{Fitness: 1}})
	})
}

func TestPutStoresCopy(t *testing.T) {
	p := newTestPopulation(1, 2)
	ind := &Individual{ID: 42, Position: []float64{7}, Fitness: 7}

	p.Put(1, ind)
	ind.Position[0] = 0

	assert.Equal(t, 1, p.At(1).ID)
	assert.Equal(t, 7.0, p.At(1).Position[0])
}

func TestCloneIsDeep(t *testing.T) {
	ind := &Individual{ID: 1, Position: []float64{1, 2}, Fitness: 3}
	c := ind.Clone()
	c.Position[0] = 10
	assert.Equal(t, 1.0, ind.Position[0])
}
