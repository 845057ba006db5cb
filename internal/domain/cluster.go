package domain

import (
	"time"
)

type ClusterWorker struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Mips          float64 `json:"mips"`
	CostPerSecond float64 `json:"costPerSecond"`
}

// Cluster 为一组可接收任务的 worker（虚拟机）
type Cluster struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Workers     []ClusterWorker `json:"workers"`
	CreatedAt   time.Time       `json:"createdAt"`
	Version     int32           `json:"-"`
}
