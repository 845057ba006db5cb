package repository

import (
	"context"
	"database/sql"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
)

// clusterRow 为 clusters LEFT JOIN cluster_workers 的一行
type clusterRow struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	Version     int32

	WorkerID      sql.NullInt64
	WorkerName    sql.NullString
	Mips          sql.NullFloat64
	CostPerSecond sql.NullFloat64
}

func (row *clusterRow) dst() []any {
	return []any{
		&row.ID,
		&row.Name,
		&row.Description,
		&row.CreatedAt,
		&row.Version,
		&row.WorkerID,
		&row.WorkerName,
		&row.Mips,
		&row.CostPerSecond,
	}
}

const clusterQuery = `
	SELECT
		c.id,
		c.name,
		c.description,
		c.created_at,
		c.version,
		cw.id,
		cw.name,
		cw.mips,
		cw.cost_per_second
	FROM clusters c
	LEFT JOIN cluster_workers cw ON c.id = cw.cluster_id
`

// scanClusters 将按 (集群, worker) 排序的结果合并为集群列表，worker 顺序即其在集群中的下标
func scanClusters(rows *sql.Rows) ([]*domain.Cluster, error) {
	clusters := make([]*domain.Cluster, 0)
	index := make(map[int64]*domain.Cluster)

	for rows.Next() {
		var row clusterRow
		if err := rows.Scan(row.dst()...); err != nil {
			return nil, err
		}

		cluster, exists := index[row.ID]
		if !exists {
			// 第一次查到这个集群
			cluster = &domain.Cluster{
				ID:          row.ID,
				Name:        row.Name,
				Description: row.Description,
				Workers:     make([]domain.ClusterWorker, 0),
				CreatedAt:   row.CreatedAt,
				Version:     row.Version,
			}
			index[row.ID] = cluster
			clusters = append(clusters, cluster)
		}

		// 没有任何 worker 的集群
		if !row.WorkerID.Valid {
			continue
		}

		cluster.Workers = append(cluster.Workers, domain.ClusterWorker{
			ID:            row.WorkerID.Int64,
			Name:          row.WorkerName.String,
			Mips:          row.Mips.Float64,
			CostPerSecond: row.CostPerSecond.Float64,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return clusters, nil
}

func (r *Repository) GetAllClusters(ctx context.Context) ([]*domain.Cluster, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, clusterQuery+` ORDER BY c.id, cw.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanClusters(rows)
}

func (r *Repository) GetClusterByID(ctx context.Context, id int64) (*domain.Cluster, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, clusterQuery+` WHERE c.id = $1 ORDER BY cw.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clusters, err := scanClusters(rows)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, sql.ErrNoRows
	}

	return clusters[0], nil
}

func (r *Repository) CreateCluster(ctx context.Context, cluster *domain.Cluster) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO clusters (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, cluster.Name, cluster.Description).Scan(&cluster.ID, &cluster.CreatedAt, &cluster.Version); err != nil {
		return err
	}

	if err := insertWorkers(ctx, tx, cluster); err != nil {
		return err
	}

	return tx.Commit()
}

func insertWorkers(ctx context.Context, tx *sql.Tx, cluster *domain.Cluster) error {
	query := `
		INSERT INTO cluster_workers (cluster_id, name, mips, cost_per_second)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	for i := range cluster.Workers {
		w := &cluster.Workers[i]
		if err := tx.QueryRowContext(ctx, query, cluster.ID, w.Name, w.Mips, w.CostPerSecond).Scan(&w.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCluster 更新名称、描述，并整体替换 worker 列表
func (r *Repository) UpdateCluster(ctx context.Context, cluster *domain.Cluster) error {
	ctx, cancel := r.txContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE clusters
		SET
			name = $1,
			description = $2,
			version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING version
	`
	params := []any{cluster.Name, cluster.Description, cluster.ID, cluster.Version}
	if err := tx.QueryRowContext(ctx, query, params...).Scan(&cluster.Version); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cluster_workers WHERE cluster_id = $1`, cluster.ID); err != nil {
		return err
	}
	if err := insertWorkers(ctx, tx, cluster); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) DeleteCluster(ctx context.Context, id int64) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM clusters WHERE id = $1`, id)
	return err
}

// ClusterNames 返回所有集群名称，用于生成不重复的随机集群
func (r *Repository) ClusterNames(ctx context.Context) ([]string, error) {
	clusters, err := r.GetAllClusters(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(clusters))
	for _, c := range clusters {
		names = append(names, c.Name)
	}
	slices.Sort(names)
	return names, nil
}
