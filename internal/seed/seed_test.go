package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBundledClusters(t *testing.T) {
	clusters, err := LoadClusters("data/clusters.yaml")
	require.NoError(t, err)
	require.Len(t, clusters, 3)

	demo := clusters[0]
	assert.Equal(t, "cloudsim-demo", demo.Name)
	mips := make([]float64, len(demo.Workers))
	for i, w := range demo.Workers {
		mips[i] = w.Mips
		assert.Equal(t, 3.0, w.CostPerSecond)
	}
	assert.Equal(t, []float64{1000, 2500, 1000, 2000, 2300}, mips)

	assert.Len(t, clusters[1].Workers, 8)
	assert.Equal(t, "node-7", clusters[1].Workers[7].Name)
	assert.Len(t, clusters[2].Workers, 6)
}

func TestParseClustersRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "unknown field",
			data: "clusters:\n  - name: a\n    workers:\n      - name: w\n        mips: 1000\n        speed: 3\n",
		},
		{
			name: "missing name",
			data: "clusters:\n  - workers:\n      - name: w\n        mips: 1000\n",
		},
		{
			name: "no workers",
			data: "clusters:\n  - name: a\n",
		},
		{
			name: "non-positive mips",
			data: "clusters:\n  - name: a\n    workers:\n      - name: w\n        mips: 0\n",
		},
		{
			name: "duplicate replica names",
			data: "clusters:\n  - name: a\n    workers:\n      - name: w-0\n        mips: 1000\n      - name: w\n        mips: 1000\n        replicas: 2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClusters([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
