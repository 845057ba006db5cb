package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
)

const runColumns = `
	id, cluster_id, algorithm, job_count, job_length, parameters, status,
	assignment, fitness, metrics, error_message, created_by, created_at,
	started_at, finished_at, version
`

// runRow 中 JSONB 列先读为字节，再解码到 domain.OptimizationRun
type runRow struct {
	run        domain.OptimizationRun
	parameters []byte
	assignment []byte
	metrics    []byte
	fitness    sql.NullFloat64
	errMsg     sql.NullString
	startedAt  sql.NullTime
	finishedAt sql.NullTime
}

func (row *runRow) dst() []any {
	run := &row.run
	return []any{
		&run.ID,
		&run.ClusterID,
		&run.Algorithm,
		&run.JobCount,
		&run.JobLength,
		&row.parameters,
		&run.Status,
		&row.assignment,
		&row.fitness,
		&row.metrics,
		&row.errMsg,
		&run.CreatedBy,
		&run.CreatedAt,
		&row.startedAt,
		&row.finishedAt,
		&run.Version,
	}
}

func (row *runRow) decode() (*domain.OptimizationRun, error) {
	run := row.run
	if err := json.Unmarshal(row.parameters, &run.Parameters); err != nil {
		return nil, err
	}
	if len(row.assignment) > 0 {
		if err := json.Unmarshal(row.assignment, &run.Assignment); err != nil {
			return nil, err
		}
	}
	if len(row.metrics) > 0 {
		if err := json.Unmarshal(row.metrics, &run.Metrics); err != nil {
			return nil, err
		}
	}
	if row.fitness.Valid {
		run.Fitness = &row.fitness.Float64
	}
	run.ErrorMessage = row.errMsg.String
	if row.startedAt.Valid {
		run.StartedAt = &row.startedAt.Time
	}
	if row.finishedAt.Valid {
		run.FinishedAt = &row.finishedAt.Time
	}
	return &run, nil
}

func (r *Repository) CreateRun(ctx context.Context, run *domain.OptimizationRun) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO optimization_runs (cluster_id, algorithm, job_count, job_length, parameters, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at, version
	`
	args := []any{run.ClusterID, run.Algorithm, run.JobCount, run.JobLength, string(params), run.CreatedBy}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.Status, &run.CreatedAt, &run.Version)
}

func (r *Repository) GetRunByID(ctx context.Context, id int64) (*domain.OptimizationRun, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	var row runRow
	query := `SELECT ` + runColumns + ` FROM optimization_runs WHERE id = $1`
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(row.dst()...); err != nil {
		return nil, err
	}

	return row.decode()
}

// GetRunsByClusterID 按创建时间倒序分页
func (r *Repository) GetRunsByClusterID(ctx context.Context, clusterID int64, limit, offset int) ([]*domain.OptimizationRun, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		SELECT ` + runColumns + `
		FROM optimization_runs
		WHERE cluster_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.dbpool.QueryContext(ctx, query, clusterID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.OptimizationRun, 0)
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.dst()...); err != nil {
			return nil, err
		}
		run, err := row.decode()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// MarkRunRunning 只有处于 pending 的任务才能开始，重复投递的消息会得到 sql.ErrNoRows
func (r *Repository) MarkRunRunning(ctx context.Context, run *domain.OptimizationRun) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		UPDATE optimization_runs
		SET
			status = 'running',
			started_at = NOW(),
			version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'pending'
		RETURNING status, started_at, version
	`
	var startedAt sql.NullTime
	if err := r.dbpool.QueryRowContext(ctx, query, run.ID, run.Version).Scan(&run.Status, &startedAt, &run.Version); err != nil {
		return err
	}
	run.StartedAt = &startedAt.Time

	return nil
}

func (r *Repository) CompleteRun(ctx context.Context, run *domain.OptimizationRun) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	assignment, err := json.Marshal(run.Assignment)
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(run.Metrics)
	if err != nil {
		return err
	}

	query := `
		UPDATE optimization_runs
		SET
			status = 'succeeded',
			assignment = $1,
			fitness = $2,
			metrics = $3,
			finished_at = NOW(),
			version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING status, finished_at, version
	`
	var finishedAt sql.NullTime
	args := []any{string(assignment), run.Fitness, string(metrics), run.ID, run.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.Status, &finishedAt, &run.Version); err != nil {
		return err
	}
	run.FinishedAt = &finishedAt.Time

	return nil
}

// FailRun 不检查版本号，任何阶段出错都可以将任务标记为失败
func (r *Repository) FailRun(ctx context.Context, run *domain.OptimizationRun, reason string) error {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		UPDATE optimization_runs
		SET
			status = 'failed',
			error_message = $1,
			finished_at = NOW(),
			version = version + 1
		WHERE id = $2
		RETURNING status, finished_at, version
	`
	var finishedAt sql.NullTime
	if err := r.dbpool.QueryRowContext(ctx, query, reason, run.ID).Scan(&run.Status, &finishedAt, &run.Version); err != nil {
		return err
	}
	run.ErrorMessage = reason
	run.FinishedAt = &finishedAt.Time

	return nil
}

// FailStaleRuns 将开始时间早于 before 且仍在运行的任务标记为失败，返回被标记的任务
func (r *Repository) FailStaleRuns(ctx context.Context, before time.Time, reason string) ([]*domain.OptimizationRun, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	query := `
		UPDATE optimization_runs
		SET
			status = 'failed',
			error_message = $1,
			finished_at = NOW(),
			version = version + 1
		WHERE status = 'running' AND started_at < $2
		RETURNING ` + runColumns
	rows, err := r.dbpool.QueryContext(ctx, query, reason, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.OptimizationRun, 0)
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.dst()...); err != nil {
			return nil, err
		}
		run, err := row.decode()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
