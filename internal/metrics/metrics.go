package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Recorder 记录优化任务相关的指标，nil Recorder 的所有方法都是空操作
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	bestFitness *prometheus.GaugeVec
	iterations  *prometheus.HistogramVec
}

// NewRecorder 创建并向 registry 注册所有指标
func NewRecorder(registry prometheus.Registerer) *Recorder {
	r := &Recorder{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placement_runs_total",
				Help: "Total number of optimization runs by algorithm and final status",
			},
			[]string{"algorithm", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "placement_run_duration_seconds",
				Help:    "Wall time spent inside the metaheuristic search",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"algorithm"},
		),
		bestFitness: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "placement_best_fitness",
				Help: "Best fitness of the most recent successful run",
			},
			[]string{"algorithm"},
		),
		iterations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "placement_run_iterations",
				Help:    "Iteration budget of finished runs",
				Buckets: prometheus.ExponentialBuckets(1, 2, 14),
			},
			[]string{"algorithm"},
		),
	}

	registry.MustRegister(r.runsTotal)
	registry.MustRegister(r.runDuration)
	registry.MustRegister(r.bestFitness)
	registry.MustRegister(r.iterations)

	return r
}

// ObserveResult 记录一次成功的搜索
func (r *Recorder) ObserveResult(res *scheduler.Result) {
	if r == nil || res == nil {
		return
	}

	alg := string(res.Algorithm)
	r.runsTotal.WithLabelValues(alg, StatusSucceeded).Inc()
	r.runDuration.WithLabelValues(alg).Observe(res.Duration.Seconds())
	r.bestFitness.WithLabelValues(alg).Set(res.Fitness)
	r.iterations.WithLabelValues(alg).Observe(float64(res.Iterations))
}

// ObserveFailure 记录一次失败的任务
func (r *Recorder) ObserveFailure(alg scheduler.Algorithm) {
	if r == nil {
		return
	}

	r.runsTotal.WithLabelValues(string(alg), StatusFailed).Inc()
}
