package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommanderCount(t *testing.T) {
	tests := []struct {
		gamma float64
		males int
		want  int
	}{
		{gamma: 0.7, males: 15, want: 11},
		{gamma: 1, males: 5, want: 4},
		{gamma: 0.01, males: 5, want: 1},
		{gamma: 0.5, males: 2, want: 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commanderCount(tt.gamma, tt.males), "gamma=%v males=%d", tt.gamma, tt.males)
	}
}

func TestPartitionHaremsCoversEveryHindOnce(t *testing.T) {
	tests := []struct {
		name    string
		fitness []float64
		hinds   int
	}{
		{name: "distinct", fitness: []float64{0.1, 0.2, 0.35, 0.4}, hinds: 85},
		{name: "equal fitness", fitness: []float64{0.3, 0.3, 0.3}, hinds: 10},
		{name: "single commander", fitness: []float64{0.5}, hinds: 7},
		{name: "more commanders than hinds", fitness: []float64{0.1, 0.2, 0.3, 0.9}, hinds: 2},
		{name: "rounding overshoot", fitness: []float64{0.1, 0.1, 0.9}, hinds: 3},
	}

	rng := newRand(13)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hinds := make([]int, tt.hinds)
			for i := range hinds {
				hinds[i] = 100 + i
			}

			harems := partitionHarems(rng, tt.fitness, hinds)
			require.Len(t, harems, len(tt.fitness))

			seen := make(map[int]int)
			total := 0
			for _, h := range harems {
				total += len(h)
				for _, id := range h {
					seen[id]++
				}
			}
			assert.Equal(t, tt.hinds, total)
			assert.Len(t, seen, tt.hinds)
			for id, n := range seen {
				assert.Equal(t, 1, n, "hind %d assigned more than once", id)
			}
		})
	}
}

func TestPartitionHaremsWeighting(t *testing.T) {
	// 权重为 |f - max f|：最差的首领权重为 0，只能拿到余数
	harems := partitionHarems(newRand(1), []float64{0.1, 0.3, 0.5}, make([]int, 30))
	assert.Len(t, harems[0], 20)
	assert.Len(t, harems[1], 10)
	assert.Len(t, harems[2], 0)
}

func TestRedDeerValidation(t *testing.T) {
	m, err := NewUniformCostModel(3, 5)
	require.NoError(t, err)

	tests := []struct {
		name   string
		params Parameters
	}{
		{name: "single male", params: Parameters{PopulationSize: 10, Iterations: 1, NumMales: 1}},
		{name: "no hinds", params: Parameters{PopulationSize: 10, Iterations: 1, NumMales: 10}},
		{name: "alpha above one", params: Parameters{PopulationSize: 10, Iterations: 1, NumMales: 3, Alpha: 2}},
		{name: "negative beta", params: Parameters{PopulationSize: 10, Iterations: 1, NumMales: 3, Beta: -0.1}},
		{name: "unknown selection", params: Parameters{PopulationSize: 10, Iterations: 1, NumMales: 3, Selection: "roulette"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedDeerSearch(m, tt.params)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
		})
	}
}

func TestRedDeerRolePartition(t *testing.T) {
	m, err := NewUniformCostModel(4, 12)
	require.NoError(t, err)
	s, err := NewRedDeerSearch(m, Parameters{PopulationSize: 30, Iterations: 1, NumMales: 6, Seed: 4})
	require.NoError(t, err)

	assert.Len(t, s.males, 6)
	assert.Len(t, s.hinds, 24)
	assert.Len(t, s.commanders(), 5)
	assert.Len(t, s.stags(), 1)

	s.roar()
	s.rankMales()
	for i := 1; i < len(s.males); i++ {
		assert.LessOrEqual(t, s.pop.At(s.males[i-1]).Fitness, s.pop.At(s.males[i]).Fitness)
	}

	s.fight()
	harems := s.formHarems()
	total := 0
	for _, h := range harems {
		total += len(h)
	}
	assert.Equal(t, len(s.hinds), total)

	s.selectHinds(s.mate(harems))
	assert.Equal(t, 30, s.pop.Len())
	for i, ind := range s.pop.Individuals() {
		assert.Equal(t, i, ind.ID)
		for _, x := range ind.Position {
			assert.GreaterOrEqual(t, x, s.lb)
			assert.LessOrEqual(t, x, s.ub)
		}
	}
}

func TestTruncationSelect(t *testing.T) {
	p := newTestPopulation(0.4, 0.1, 0.3, 0.2)
	got := truncationSelect(p.Individuals(), 2)

	require.Len(t, got, 2)
	assert.Equal(t, 0.1, got[0].Fitness)
	assert.Equal(t, 0.2, got[1].Fitness)
}

func TestTournamentSelectKeepsBest(t *testing.T) {
	p := newTestPopulation(0.4, 0.1, 0.3, 0.2, 0.8)
	got := tournamentSelect(newRand(3), p.Individuals(), 4, 5)

	require.Len(t, got, 4)
	assert.Equal(t, 0.1, got[0].Fitness)
}

func TestRedDeerSelectionPolicies(t *testing.T) {
	m, err := NewUniformCostModel(5, 10)
	require.NoError(t, err)

	for _, policy := range []SelectionPolicy{SelectionTruncation, SelectionTournament} {
		t.Run(string(policy), func(t *testing.T) {
			s, err := NewRedDeerSearch(m, Parameters{
				PopulationSize: 20,
				Iterations:     15,
				NumMales:       5,
				Selection:      policy,
				Seed:           21,
			})
			require.NoError(t, err)

			res, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.Len(t, res.Assignment, 10)
			assert.Len(t, res.History, 15)
			assert.InDelta(t, res.History[len(res.History)-1], res.Fitness, 1e-12)
		})
	}
}
