package utils

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
)

func ValidateCluster(cluster *domain.Cluster) error {
	if len(cluster.Workers) == 0 {
		return errors.New("集群中至少需要一个 worker")
	}

	seen := make(map[string]bool)
	for i, w := range cluster.Workers {
		if !(w.Mips > 0) || math.IsInf(w.Mips, 0) {
			return fmt.Errorf("第 %d 个 worker 的 MIPS 必须为正数", i+1)
		}
		if w.CostPerSecond < 0 || math.IsNaN(w.CostPerSecond) || math.IsInf(w.CostPerSecond, 0) {
			return fmt.Errorf("第 %d 个 worker 的单位时间费用不能为负数", i+1)
		}
		if seen[w.Name] {
			return fmt.Errorf("worker 名称 %s 重复", w.Name)
		}
		seen[w.Name] = true
	}

	return nil
}

// ValidateAssignment 检查分配结果的长度以及每个 worker 下标是否合法
func ValidateAssignment(assignment []int, jobCount, workerCount int) error {
	if len(assignment) != jobCount {
		return fmt.Errorf("分配结果的长度 %d 与任务数 %d 不一致", len(assignment), jobCount)
	}

	for j, w := range assignment {
		if w < 0 || w >= workerCount {
			return fmt.Errorf("第 %d 个任务被分配到了不存在的 worker %d", j+1, w)
		}
	}

	return nil
}

// OptimizerLimits 为单次优化允许的规模上限
type OptimizerLimits struct {
	MaxJobCount    int
	MaxIterations  int
	MaxPopulation  int
	MaxWorkerCount int
}

// ValidateWorkerCount 检查 worker 数，代价模型每次评估都会按 worker 数分配内存
func ValidateWorkerCount(workerCount int, limits OptimizerLimits) error {
	if workerCount <= 0 {
		return errors.New("worker 数必须为正数")
	}
	if workerCount > limits.MaxWorkerCount {
		return fmt.Errorf("worker 数不能超过 %d", limits.MaxWorkerCount)
	}
	return nil
}

func ValidateRunParameters(alg scheduler.Algorithm, jobCount int, params scheduler.Parameters, limits OptimizerLimits) error {
	if !slices.Contains(scheduler.Algorithms, alg) {
		return fmt.Errorf("不支持的算法 %s", alg)
	}
	if jobCount <= 0 {
		return errors.New("任务数必须为正数")
	}
	if jobCount > limits.MaxJobCount {
		return fmt.Errorf("任务数不能超过 %d", limits.MaxJobCount)
	}
	if params.Iterations < 0 || params.Iterations > limits.MaxIterations {
		return fmt.Errorf("迭代次数必须在 0 到 %d 之间", limits.MaxIterations)
	}
	if params.PopulationSize < 0 || params.PopulationSize > limits.MaxPopulation {
		return fmt.Errorf("种群大小必须在 0 到 %d 之间", limits.MaxPopulation)
	}

	return nil
}

// ResolveSeed 请求中的种子优先，其次是配置中的默认种子，都为 0 时使用当前时间
func ResolveSeed(seed, defaultSeed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	if defaultSeed != 0 {
		return defaultSeed
	}
	return uint64(time.Now().UnixNano())
}

// ClusterWorkers 将集群转换为代价模型中的 worker，顺序与集群中的 worker 顺序一致
func ClusterWorkers(cluster *domain.Cluster) []scheduler.Worker {
	workers := make([]scheduler.Worker, len(cluster.Workers))
	for i, w := range cluster.Workers {
		workers[i] = scheduler.Worker{Rate: w.Mips, Cost: w.CostPerSecond}
	}
	return workers
}
