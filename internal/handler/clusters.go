package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
)

type clusterWorkerRequest struct {
	Name          string  `json:"name" validate:"required"`
	Mips          float64 `json:"mips" validate:"gt=0"`
	CostPerSecond float64 `json:"costPerSecond" validate:"gte=0"`
}

func toClusterWorkers(req []clusterWorkerRequest) []domain.ClusterWorker {
	workers := make([]domain.ClusterWorker, len(req))
	for i, w := range req {
		workers[i] = domain.ClusterWorker{
			Name:          w.Name,
			Mips:          w.Mips,
			CostPerSecond: w.CostPerSecond,
		}
	}
	return workers
}

// clusterConstraintError 将集群相关的约束冲突转换为提示信息
func (h *Handler) clusterConstraintError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr):
		switch {
		case pgErr.ConstraintName == "clusters_name_key":
			h.badRequest(w, r, errors.New("集群名称已存在"))
		case pgErr.ConstraintName == "cluster_workers_cluster_id_name_key":
			h.badRequest(w, r, errors.New("worker 名称重复"))
		default:
			h.internalServerError(w, r, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "集群已被修改，请重试")
	default:
		h.internalServerError(w, r, err)
	}
}

func (h *Handler) CreateCluster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string                 `json:"name" validate:"required"`
		Description string                 `json:"description"`
		Workers     []clusterWorkerRequest `json:"workers" validate:"required,min=1,dive"`
	}

	if !h.bindJSON(w, r, &req) {
		return
	}

	cluster := &domain.Cluster{
		Name:        req.Name,
		Description: req.Description,
		Workers:     toClusterWorkers(req.Workers),
	}
	if err := utils.ValidateCluster(cluster); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateWorkerCount(len(cluster.Workers), h.optimizerLimits()); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateCluster(r.Context(), cluster); err != nil {
		h.clusterConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建集群成功", cluster)
}

func (h *Handler) GetAllClusters(w http.ResponseWriter, r *http.Request) {
	clusters, err := h.repository.GetAllClusters(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取集群列表成功", clusters)
}

func (h *Handler) GetCluster(w http.ResponseWriter, r *http.Request) {
	cluster := r.Context().Value(ClusterCtx).(*domain.Cluster)
	h.successResponse(w, r, "获取集群成功", cluster)
}

func (h *Handler) UpdateCluster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string                `json:"name" validate:"omitempty,min=1"`
		Description *string                `json:"description"`
		Workers     []clusterWorkerRequest `json:"workers" validate:"omitempty,min=1,dive"`
	}

	if !h.bindJSON(w, r, &req) {
		return
	}

	cluster := r.Context().Value(ClusterCtx).(*domain.Cluster)

	if req.Name != nil {
		cluster.Name = *req.Name
	}
	if req.Description != nil {
		cluster.Description = *req.Description
	}
	if req.Workers != nil {
		cluster.Workers = toClusterWorkers(req.Workers)
	}
	if err := utils.ValidateCluster(cluster); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateWorkerCount(len(cluster.Workers), h.optimizerLimits()); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.UpdateCluster(r.Context(), cluster); err != nil {
		h.clusterConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新集群成功", cluster)
}

func (h *Handler) DeleteCluster(w http.ResponseWriter, r *http.Request) {
	cluster := r.Context().Value(ClusterCtx).(*domain.Cluster)

	if err := h.repository.DeleteCluster(r.Context(), cluster.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除集群成功", nil)
}
