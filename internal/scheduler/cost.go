package scheduler

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Worker 描述一个执行单元的处理能力与单位时间费用
type Worker struct {
	Rate float64 // MIPS
	Cost float64 // 每单位执行时间的费用
}

// Weights 为四个子指标的权重，要求非负且和为 1
type Weights struct {
	Makespan     float64 `json:"makespan"`
	Utilization  float64 `json:"utilization"`
	Cost         float64 `json:"cost"`
	ResponseTime float64 `json:"responseTime"`
}

var DefaultWeights = Weights{
	Makespan:     0.25,
	Utilization:  0.25,
	Cost:         0.25,
	ResponseTime: 0.25,
}

const (
	DefaultJobLength = 500.0
	DefaultVMCost    = 3.0

	// 归一化区间退化（max == min）时返回的中性值
	neutralNorm = 0.0
	weightsEps  = 1e-9
)

// 来自 CloudSim 演示环境的虚拟机 MIPS
var demoMips = []float64{1000, 2500, 1000, 2000, 2300}

// Mapping 将一个连续坐标折叠为 [0, workerCount) 中的 worker 下标
type Mapping func(x float64, workerCount int) int

// ClampRound 截断到 [0, workerCount-1] 后四舍五入
func ClampRound(x float64, workerCount int) int {
	if math.IsNaN(x) {
		return 0
	}
	v := math.Round(math.Max(0, math.Min(float64(workerCount-1), x)))
	return int(v)
}

// FloorMod 向下取整后对 workerCount 取模（环绕映射）
func FloorMod(x float64, workerCount int) int {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	v := int(math.Floor(x)) % workerCount
	if v < 0 {
		v += workerCount
	}
	return v
}

// Metrics 为一次评估的原始指标与归一化指标
type Metrics struct {
	Makespan         float64 `json:"makespan"`
	Utilization      float64 `json:"utilization"`
	Cost             float64 `json:"cost"`
	ResponseTime     float64 `json:"responseTime"`
	NormMakespan     float64 `json:"normMakespan"`
	NormUtilization  float64 `json:"normUtilization"`
	NormCost         float64 `json:"normCost"`
	NormResponseTime float64 `json:"normResponseTime"`
	Fitness          float64 `json:"fitness"`
}

type bounds struct {
	min float64
	max float64
}

// CostModel 是从分配向量到标量适应度的纯函数，构造后不可变
type CostModel struct {
	workers    []Worker
	jobLengths []float64
	weights    Weights

	makespan     bounds
	utilization  bounds
	cost         bounds
	responseTime bounds
}

func NewCostModel(workers []Worker, jobLengths []float64, weights Weights) (*CostModel, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("%w: workerCount must be > 0", ErrInvalidArgument)
	}
	if len(jobLengths) == 0 {
		return nil, fmt.Errorf("%w: jobCount must be > 0", ErrInvalidArgument)
	}
	for i, w := range workers {
		if !(w.Rate > 0) || math.IsInf(w.Rate, 0) {
			return nil, fmt.Errorf("%w: worker %d has non-positive rate %v", ErrInvalidArgument, i, w.Rate)
		}
		if w.Cost < 0 || math.IsNaN(w.Cost) {
			return nil, fmt.Errorf("%w: worker %d has negative cost %v", ErrInvalidArgument, i, w.Cost)
		}
	}
	for j, l := range jobLengths {
		if !(l > 0) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("%w: job %d has non-positive length %v", ErrInvalidArgument, j, l)
		}
	}
	if err := weights.validate(); err != nil {
		return nil, err
	}

	m := &CostModel{
		workers:    append([]Worker(nil), workers...),
		jobLengths: append([]float64(nil), jobLengths...),
		weights:    weights,
	}
	m.computeBounds()
	return m, nil
}

// NewUniformCostModel 按演示环境构造代价模型：MIPS 循环取自演示虚拟机，所有任务长度相同
func NewUniformCostModel(workerCount, jobCount int) (*CostModel, error) {
	if workerCount <= 0 || jobCount <= 0 {
		return nil, fmt.Errorf("%w: workerCount and jobCount must be > 0", ErrInvalidArgument)
	}
	return NewCostModel(DemoWorkers(workerCount), UniformJobs(jobCount, DefaultJobLength), DefaultWeights)
}

// DemoWorkers 返回 n 个演示环境的 worker，MIPS 循环取自演示虚拟机
func DemoWorkers(n int) []Worker {
	workers := make([]Worker, n)
	for i := range workers {
		workers[i] = Worker{Rate: demoMips[i%len(demoMips)], Cost: DefaultVMCost}
	}
	return workers
}

// UniformJobs 返回 n 个长度相同的任务
func UniformJobs(n int, length float64) []float64 {
	jobs := make([]float64, n)
	for i := range jobs {
		jobs[i] = length
	}
	return jobs
}

func (w Weights) validate() error {
	ws := []float64{w.Makespan, w.Utilization, w.Cost, w.ResponseTime}
	for _, v := range ws {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: weights must be non-negative", ErrInvalidArgument)
		}
	}
	if math.Abs(floats.Sum(ws)-1) > weightsEps {
		return fmt.Errorf("%w: weights must sum to 1, got %v", ErrInvalidArgument, floats.Sum(ws))
	}
	return nil
}

func (m *CostModel) WorkerCount() int { return len(m.workers) }

func (m *CostModel) JobCount() int { return len(m.jobLengths) }

func (m *CostModel) Weights() Weights { return m.weights }

// computeBounds 计算各子指标的解析上下界
func (m *CostModel) computeBounds() {
	rates := make([]float64, len(m.workers))
	unitCosts := make([]float64, len(m.workers)) // 单位长度的费用 cost/rate
	for i, w := range m.workers {
		rates[i] = w.Rate
		unitCosts[i] = w.Cost / w.Rate
	}
	minRate, maxRate := floats.Min(rates), floats.Max(rates)
	totalLen := floats.Sum(m.jobLengths)
	n := float64(len(m.jobLengths))

	// makespan：下界为完全均匀切分，上界为全部任务落在最慢的 worker 上
	m.makespan = bounds{
		min: math.Max(totalLen/floats.Sum(rates), floats.Max(m.jobLengths)/maxRate),
		max: totalLen / minRate,
	}

	// 利用率：所有任务集中在一个 worker 时为 1/W，完全均衡时为 1
	m.utilization = bounds{min: 1 / float64(len(m.workers)), max: 1}

	m.cost = bounds{
		min: totalLen * floats.Min(unitCosts),
		max: totalLen * floats.Max(unitCosts),
	}

	// 响应时间：下界为每个任务都独占最快的 worker，上界为全部按序排在最慢的 worker 上
	var best, worst, prefix float64
	for _, l := range m.jobLengths {
		prefix += l
		best += l / maxRate
		worst += prefix / minRate
	}
	m.responseTime = bounds{min: best / n, max: worst / n}
}

// Evaluate 计算适应度，越小越好，position 的要求同 Breakdown
func (m *CostModel) Evaluate(position []float64, mapping Mapping) float64 {
	return m.Breakdown(position, mapping).Fitness
}

// Breakdown 计算全部子指标
//
// position 的长度必须等于 JobCount()，否则 panic
func (m *CostModel) Breakdown(position []float64, mapping Mapping) Metrics {
	jobs := len(m.jobLengths)
	if len(position) != jobs {
		panic(fmt.Sprintf("scheduler: position length %d does not match job count %d", len(position), jobs))
	}

	wc := len(m.workers)
	busy := make([]float64, wc) // 每个 worker 的累计执行时间
	var cost, totalResponse float64

	for j := 0; j < jobs; j++ {
		w := mapping(position[j], wc)
		exec := m.jobLengths[j] / m.workers[w].Rate
		busy[w] += exec
		cost += exec * m.workers[w].Cost
		// 任务按下标顺序排队，完成时刻即该 worker 当前的累计时间
		totalResponse += busy[w]
	}

	makespan := floats.Max(busy)
	var utilization float64
	if makespan > 0 {
		for _, b := range busy {
			utilization += b / makespan
		}
		utilization /= float64(wc)
	}
	var responseTime float64
	if jobs > 0 {
		responseTime = totalResponse / float64(jobs)
	}

	met := Metrics{
		Makespan:         makespan,
		Utilization:      utilization,
		Cost:             cost,
		ResponseTime:     responseTime,
		NormMakespan:     normalize(makespan, m.makespan),
		NormUtilization:  normalize(utilization, m.utilization),
		NormCost:         normalize(cost, m.cost),
		NormResponseTime: normalize(responseTime, m.responseTime),
	}
	met.Fitness = m.weights.Makespan*met.NormMakespan +
		m.weights.Utilization*m.imbalance(met.NormUtilization) +
		m.weights.Cost*met.NormCost +
		m.weights.ResponseTime*met.NormResponseTime
	return met
}

// imbalance 将利用率（越大越好）翻转为待最小化的不均衡度
func (m *CostModel) imbalance(normUtilization float64) float64 {
	if m.utilization.max == m.utilization.min {
		return neutralNorm
	}
	return 1 - normUtilization
}

// Workload 统计每个 worker 分配到的任务数
func (m *CostModel) Workload(assignment []int) []int {
	load := make([]int, len(m.workers))
	for _, w := range assignment {
		if w >= 0 && w < len(load) {
			load[w]++
		}
	}
	return load
}

// normalize 做 min-max 缩放：原始值越大，归一化值越大
func normalize(v float64, b bounds) float64 {
	if b.max == b.min {
		return neutralNorm
	}
	return clamp01((v - b.min) / (b.max - b.min))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
