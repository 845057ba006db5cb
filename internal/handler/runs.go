package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *Handler) optimizerLimits() utils.OptimizerLimits {
	return utils.OptimizerLimits{
		MaxJobCount:    h.config.Optimizer.MaxJobCount,
		MaxIterations:  h.config.Optimizer.MaxIterations,
		MaxPopulation:  h.config.Optimizer.MaxPopulation,
		MaxWorkerCount: h.config.Optimizer.MaxWorkerCount,
	}
}

func runCacheKey(id int64) string {
	return fmt.Sprintf("run_%d", id)
}

func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Algorithm  string               `json:"algorithm" validate:"required,oneof=genetic grey_wolf red_deer"`
		JobCount   int                  `json:"jobCount" validate:"gt=0"`
		JobLength  float64              `json:"jobLength" validate:"gte=0"`
		Parameters scheduler.Parameters `json:"parameters"`
	}

	if !h.bindJSON(w, r, &req) {
		return
	}

	cluster := r.Context().Value(ClusterCtx).(*domain.Cluster)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	alg := scheduler.Algorithm(req.Algorithm)
	if err := utils.ValidateRunParameters(alg, req.JobCount, req.Parameters, h.optimizerLimits()); err != nil {
		h.badRequest(w, r, err)
		return
	}

	jobLength := req.JobLength
	if jobLength == 0 {
		jobLength = scheduler.DefaultJobLength
	}
	params := req.Parameters
	params.Seed = utils.ResolveSeed(params.Seed, h.config.Optimizer.DefaultSeed)

	// 在入库之前构造一次搜索，参数不合法时直接拒绝
	model, err := scheduler.NewCostModel(utils.ClusterWorkers(cluster), scheduler.UniformJobs(req.JobCount, jobLength), scheduler.DefaultWeights)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if _, err := scheduler.New(alg, model, params); err != nil {
		h.badRequest(w, r, err)
		return
	}

	run := &domain.OptimizationRun{
		ClusterID:  cluster.ID,
		Algorithm:  alg,
		JobCount:   req.JobCount,
		JobLength:  jobLength,
		Parameters: params,
		CreatedBy:  myInfo.ID,
	}
	if err := h.repository.CreateRun(r.Context(), run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 将任务投递到优化队列
	if err := h.publisher.PublishJSON(r.Context(), h.config.RabbitMQ.OptimizationQueue, domain.OptimizationMessage{RunID: run.ID}); err != nil {
		if failErr := h.repository.FailRun(r.Context(), run, "投递任务失败"); failErr != nil {
			slog.Error("无法将任务标记为失败", "runID", run.ID, "error", failErr)
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "优化任务已提交", run)
}

func (h *Handler) GetClusterRuns(w http.ResponseWriter, r *http.Request) {
	cluster := r.Context().Value(ClusterCtx).(*domain.Cluster)

	page := 1
	pageSize := defaultPageSize
	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			h.errorResponse(w, r, "页码无效")
			return
		}
		page = p
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		ps, err := strconv.Atoi(v)
		if err != nil || ps < 1 || ps > maxPageSize {
			h.errorResponse(w, r, fmt.Sprintf("每页数量必须在 1 到 %d 之间", maxPageSize))
			return
		}
		pageSize = ps
	}

	runs, err := h.repository.GetRunsByClusterID(r.Context(), cluster.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取优化任务列表成功", runs)
}

// GetRun 已结束的任务不会再变化，结果缓存在 redis 中
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.errorResponse(w, r, "任务ID无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	cached, err := h.redisClient.Get(ctx, runCacheKey(runID)).Bytes()
	switch {
	case err == nil:
		var run domain.OptimizationRun
		if err := json.Unmarshal(cached, &run); err == nil {
			h.successResponse(w, r, "获取优化任务成功", &run)
			return
		}
		slog.Warn("缓存中的优化任务无法解析", "runID", runID)
	case !errors.Is(err, redis.Nil):
		slog.Warn("读取优化任务缓存失败", "runID", runID, "error", err)
	}

	run, err := h.repository.GetRunByID(r.Context(), runID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "优化任务不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if run.Finished() {
		data, err := json.Marshal(run)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		ttl := time.Duration(h.config.Optimizer.ResultCacheTTL) * time.Second
		if err := h.redisClient.Set(ctx, runCacheKey(runID), data, ttl).Err(); err != nil {
			slog.Warn("写入优化任务缓存失败", "runID", runID, "error", err)
		}
	}

	h.successResponse(w, r, "获取优化任务成功", run)
}
