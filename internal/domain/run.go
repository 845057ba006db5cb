package domain

import (
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
)

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// OptimizationRun 为一次在某个集群上的任务分配优化
type OptimizationRun struct {
	ID           int64                `json:"id"`
	ClusterID    int64                `json:"clusterID"`
	Algorithm    scheduler.Algorithm  `json:"algorithm"`
	JobCount     int                  `json:"jobCount"`
	JobLength    float64              `json:"jobLength"`
	Parameters   scheduler.Parameters `json:"parameters"`
	Status       RunStatus            `json:"status"`
	Assignment   []int                `json:"assignment"` // 第 j 个任务分配到的 worker 在集群中的下标
	Fitness      *float64             `json:"fitness"`
	Metrics      *scheduler.Metrics   `json:"metrics"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	CreatedBy    int64                `json:"createdBy"`
	CreatedAt    time.Time            `json:"createdAt"`
	StartedAt    *time.Time           `json:"startedAt"`
	FinishedAt   *time.Time           `json:"finishedAt"`
	Version      int32                `json:"-"`
}

// Finished 任务是否已经结束（成功或失败）
func (r *OptimizationRun) Finished() bool {
	return r.Status == RunStatusSucceeded || r.Status == RunStatusFailed
}

// OptimizationMessage 为 optimization_queue 中的消息
type OptimizationMessage struct {
	RunID int64 `json:"runID"`
}
