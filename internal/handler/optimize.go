package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
)

type algorithmInfo struct {
	Name     scheduler.Algorithm  `json:"name"`
	Defaults scheduler.Parameters `json:"defaults"`
}

func (h *Handler) GetAlgorithms(w http.ResponseWriter, r *http.Request) {
	algorithms := make([]algorithmInfo, 0, len(scheduler.Algorithms))
	for _, alg := range scheduler.Algorithms {
		algorithms = append(algorithms, algorithmInfo{
			Name:     alg,
			Defaults: scheduler.DefaultParameters(alg),
		})
	}

	h.successResponse(w, r, "获取算法列表成功", algorithms)
}

type optimizeResponse struct {
	*scheduler.Result
	Workload []int `json:"workload"`
}

// Optimize 同步求解小规模问题，结果不入库
//
// 提供 workers 时按给定的 worker 构造代价模型，否则按 workerCount 使用演示环境的 worker
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Algorithm   string                 `json:"algorithm" validate:"required,oneof=genetic grey_wolf red_deer"`
		Workers     []clusterWorkerRequest `json:"workers" validate:"omitempty,dive"`
		WorkerCount int                    `json:"workerCount" validate:"gte=0"`
		JobCount    int                    `json:"jobCount" validate:"gt=0"`
		JobLength   float64                `json:"jobLength" validate:"gte=0"`
		Parameters  scheduler.Parameters   `json:"parameters"`
	}

	if !h.bindJSON(w, r, &req) {
		return
	}

	alg := scheduler.Algorithm(req.Algorithm)
	limits := h.optimizerLimits()
	limits.MaxJobCount = h.config.Optimizer.SyncJobLimit
	if err := utils.ValidateRunParameters(alg, req.JobCount, req.Parameters, limits); err != nil {
		h.badRequest(w, r, err)
		return
	}

	jobLength := req.JobLength
	if jobLength == 0 {
		jobLength = scheduler.DefaultJobLength
	}

	workerCount := req.WorkerCount
	if len(req.Workers) > 0 {
		workerCount = len(req.Workers)
	}
	if workerCount == 0 {
		h.errorResponse(w, r, "必须提供 workers 或 workerCount")
		return
	}
	if err := utils.ValidateWorkerCount(workerCount, limits); err != nil {
		h.badRequest(w, r, err)
		return
	}

	var (
		model *scheduler.CostModel
		err   error
	)
	switch {
	case len(req.Workers) > 0:
		cluster := &domain.Cluster{Workers: toClusterWorkers(req.Workers)}
		if err := utils.ValidateCluster(cluster); err != nil {
			h.badRequest(w, r, err)
			return
		}
		model, err = scheduler.NewCostModel(utils.ClusterWorkers(cluster), scheduler.UniformJobs(req.JobCount, jobLength), scheduler.DefaultWeights)
	default:
		model, err = scheduler.NewCostModel(scheduler.DemoWorkers(workerCount), scheduler.UniformJobs(req.JobCount, jobLength), scheduler.DefaultWeights)
	}
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	params := req.Parameters
	params.Seed = utils.ResolveSeed(params.Seed, h.config.Optimizer.DefaultSeed)

	s, err := scheduler.New(alg, model, params)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Optimizer.SyncTimeout)*time.Second)
	defer cancel()

	res, err := s.Run(ctx)
	if err != nil {
		h.recorder.ObserveFailure(alg)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			h.errorResponse(w, r, fmt.Sprintf("优化超时（%d 秒），请减少迭代次数或提交后台任务", h.config.Optimizer.SyncTimeout))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	h.recorder.ObserveResult(res)

	h.successResponse(w, r, "优化成功", optimizeResponse{
		Result:   res,
		Workload: model.Workload(res.Assignment),
	})
}
