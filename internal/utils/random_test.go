package utils

import (
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
)

func TestGenerateRandomOTP(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), GenerateRandomOTP())
}

func TestGenerateRandomPassword(t *testing.T) {
	assert.Len(t, []rune(GenerateRandomPassword(12)), 12)
}

func TestGenerateUsernameFromChineseName(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^[a-z]+\d{1,3}$`), GenerateUsernameFromChineseName("王伟"))
}

func TestGenerateRandomClusterIsValid(t *testing.T) {
	for i := 0; i < 20; i++ {
		cluster := GenerateRandomCluster()
		require.NoError(t, ValidateCluster(cluster))
		assert.GreaterOrEqual(t, len(cluster.Workers), 2)
		assert.LessOrEqual(t, len(cluster.Workers), 10)
	}
}

func TestGenerateRandomRunIsValid(t *testing.T) {
	limits := OptimizerLimits{MaxJobCount: 1000, MaxIterations: 5000, MaxPopulation: 1000}
	for i := 0; i < 20; i++ {
		run := GenerateRandomRun(1, 2)
		assert.True(t, slices.Contains(scheduler.Algorithms, run.Algorithm))
		assert.NoError(t, ValidateRunParameters(run.Algorithm, run.JobCount, run.Parameters, limits))
	}
}
