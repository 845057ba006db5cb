package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
	"gopkg.in/yaml.v3"
)

const DefaultClustersFile = "./internal/seed/data/clusters.yaml"

type clusterFile struct {
	Clusters []clusterSpec `yaml:"clusters"`
}

type clusterSpec struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Workers     []workerSpec `yaml:"workers"`
}

// workerSpec 中 replicas 大于 1 时展开为 name-0, name-1, ...
type workerSpec struct {
	Name          string  `yaml:"name"`
	Mips          float64 `yaml:"mips"`
	CostPerSecond float64 `yaml:"costPerSecond"`
	Replicas      int     `yaml:"replicas"`
}

func (s clusterSpec) toCluster() *domain.Cluster {
	cluster := &domain.Cluster{
		Name:        s.Name,
		Description: s.Description,
		Workers:     make([]domain.ClusterWorker, 0, len(s.Workers)),
	}

	for _, w := range s.Workers {
		if w.Replicas <= 1 {
			cluster.Workers = append(cluster.Workers, domain.ClusterWorker{Name: w.Name, Mips: w.Mips, CostPerSecond: w.CostPerSecond})
			continue
		}
		for i := 0; i < w.Replicas; i++ {
			cluster.Workers = append(cluster.Workers, domain.ClusterWorker{
				Name:          fmt.Sprintf("%s-%d", w.Name, i),
				Mips:          w.Mips,
				CostPerSecond: w.CostPerSecond,
			})
		}
	}

	return cluster
}

// ParseClusters 解析 YAML 格式的集群定义，不认识的字段视为错误
func ParseClusters(data []byte) ([]*domain.Cluster, error) {
	var file clusterFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, err
	}

	clusters := make([]*domain.Cluster, 0, len(file.Clusters))
	for _, cs := range file.Clusters {
		if cs.Name == "" {
			return nil, fmt.Errorf("第 %d 个集群缺少名称", len(clusters)+1)
		}

		cluster := cs.toCluster()
		if err := utils.ValidateCluster(cluster); err != nil {
			return nil, fmt.Errorf("集群 %s: %w", cs.Name, err)
		}
		clusters = append(clusters, cluster)
	}

	return clusters, nil
}

func LoadClusters(path string) ([]*domain.Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseClusters(data)
}

// SeedClusters 插入文件中定义的集群，已存在的同名集群会被跳过
func SeedClusters(ctx context.Context, r *repository.Repository, path string) {
	clusters, err := LoadClusters(path)
	if err != nil {
		slog.Error("读取集群定义失败", "path", path, "error", err)
		return
	}

	existing, err := r.ClusterNames(ctx)
	if err != nil {
		slog.Error("获取已有集群失败", "error", err)
		return
	}

	cnt := 0
	for _, cluster := range clusters {
		if slices.Contains(existing, cluster.Name) {
			slog.Info("集群已存在，跳过", "name", cluster.Name)
			continue
		}

		if err := r.CreateCluster(ctx, cluster); err != nil {
			slog.Error("插入集群失败", "name", cluster.Name, "error", err)
			continue
		}
		cnt++
	}

	slog.Info("插入集群完成", "count", cnt)
}
