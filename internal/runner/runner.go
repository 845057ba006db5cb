package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/config"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
)

// Store 为 runner 需要的持久化操作，由 repository.Repository 实现
type Store interface {
	GetRunByID(ctx context.Context, id int64) (*domain.OptimizationRun, error)
	GetClusterByID(ctx context.Context, id int64) (*domain.Cluster, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	MarkRunRunning(ctx context.Context, run *domain.OptimizationRun) error
	CompleteRun(ctx context.Context, run *domain.OptimizationRun) error
	FailRun(ctx context.Context, run *domain.OptimizationRun, reason string) error
	FailStaleRuns(ctx context.Context, before time.Time, reason string) ([]*domain.OptimizationRun, error)
}

const staleRunReason = "任务执行中断（worker 已退出）"

type Publisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

// Runner 执行 optimization_queue 中的优化任务
type Runner struct {
	config    *config.Config
	store     Store
	publisher Publisher
	recorder  *metrics.Recorder
}

func NewRunner(cfg *config.Config, store Store, publisher Publisher, recorder *metrics.Recorder) *Runner {
	return &Runner{
		config:    cfg,
		store:     store,
		publisher: publisher,
		recorder:  recorder,
	}
}

// Execute 执行一次优化任务
//
// 返回 nil 表示该消息已经处理完毕（包括任务失败并已记录的情况），
// 返回错误表示数据库等基础设施出错，由调用方决定是否重新投递
func (r *Runner) Execute(ctx context.Context, runID int64) error {
	run, err := r.store.GetRunByID(ctx, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("优化任务不存在，忽略该消息", "runID", runID)
			return nil
		}
		return err
	}

	// 处于 running 的任务若执行它的 worker 已退出，由 ReclaimStaleRuns 回收
	if run.Status != domain.RunStatusPending {
		slog.Warn("优化任务不处于等待状态，忽略该消息", "runID", runID, "status", run.Status)
		return nil
	}

	cluster, err := r.store.GetClusterByID(ctx, run.ClusterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.fail(ctx, run, nil, errors.New("集群不存在"))
		}
		return err
	}

	if err := r.store.MarkRunRunning(ctx, run); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Warn("优化任务已被其他 worker 处理", "runID", runID)
			return nil
		}
		return err
	}
	slog.Info("开始执行优化任务", "runID", run.ID, "algorithm", run.Algorithm, "jobCount", run.JobCount, "workerCount", len(cluster.Workers))

	res, err := r.search(ctx, run, cluster)
	if err != nil {
		return r.fail(ctx, run, cluster, err)
	}

	fitness := res.Fitness
	run.Assignment = res.Assignment
	run.Fitness = &fitness
	run.Metrics = &res.Metrics
	if err := r.store.CompleteRun(ctx, run); err != nil {
		return r.fail(ctx, run, cluster, fmt.Errorf("保存优化结果失败: %w", err))
	}

	r.recorder.ObserveResult(res)
	slog.Info("优化任务执行成功", "runID", run.ID, "fitness", res.Fitness, "makespan", res.Metrics.Makespan, "duration", res.Duration)

	r.notify(ctx, run, cluster)
	return nil
}

// ReclaimStaleRuns 将超过 RunTimeout 与一个检查间隔仍未结束的任务标记为失败
//
// 正常执行的任务最迟在 RunTimeout 后结束，超出的只可能是 worker 在执行中途退出
func (r *Runner) ReclaimStaleRuns(ctx context.Context) (int, error) {
	grace := time.Duration(r.config.Optimizer.RunTimeout+r.config.Optimizer.ReclaimInterval) * time.Second
	runs, err := r.store.FailStaleRuns(ctx, time.Now().Add(-grace), staleRunReason)
	if err != nil {
		return 0, err
	}

	for _, run := range runs {
		slog.Warn("已回收中断的优化任务", "runID", run.ID, "startedAt", run.StartedAt)
		r.recorder.ObserveFailure(run.Algorithm)

		// 集群可能已被删除，此时邮件中不带集群名称
		cluster, _ := r.store.GetClusterByID(ctx, run.ClusterID)
		r.notify(ctx, run, cluster)
	}

	return len(runs), nil
}

func (r *Runner) search(ctx context.Context, run *domain.OptimizationRun, cluster *domain.Cluster) (*scheduler.Result, error) {
	model, err := scheduler.NewCostModel(
		utils.ClusterWorkers(cluster),
		scheduler.UniformJobs(run.JobCount, run.JobLength),
		scheduler.DefaultWeights,
	)
	if err != nil {
		return nil, err
	}

	s, err := scheduler.New(run.Algorithm, model, run.Parameters)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.config.Optimizer.RunTimeout)*time.Second)
	defer cancel()

	res, err := s.Run(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.New("优化超时")
		}
		return nil, err
	}

	if err := utils.ValidateAssignment(res.Assignment, run.JobCount, len(cluster.Workers)); err != nil {
		return nil, err
	}

	return res, nil
}

func (r *Runner) fail(ctx context.Context, run *domain.OptimizationRun, cluster *domain.Cluster, cause error) error {
	slog.Error("优化任务执行失败", "runID", run.ID, "error", cause)

	if err := r.store.FailRun(ctx, run, cause.Error()); err != nil {
		return err
	}
	r.recorder.ObserveFailure(run.Algorithm)

	r.notify(ctx, run, cluster)
	return nil
}

// notify 通知任务创建者，邮件发送失败不影响任务本身的结果
func (r *Runner) notify(ctx context.Context, run *domain.OptimizationRun, cluster *domain.Cluster) {
	user, err := r.store.GetUserByID(ctx, run.CreatedBy)
	if err != nil {
		slog.Warn("无法获取任务创建者，跳过邮件通知", "runID", run.ID, "error", err)
		return
	}

	data := domain.RunFinishedMailData{
		FullName:     user.FullName,
		RunID:        run.ID,
		Algorithm:    string(run.Algorithm),
		Status:       run.Status,
		ErrorMessage: run.ErrorMessage,
	}
	if cluster != nil {
		data.ClusterName = cluster.Name
	}
	if run.Fitness != nil {
		data.Fitness = *run.Fitness
	}
	if run.Metrics != nil {
		data.Makespan = run.Metrics.Makespan
	}

	mailMessage := domain.MailMessage{
		Type: domain.MailTypeRunFinished,
		To:   user.Email,
		Data: data,
	}
	if err := r.publisher.PublishJSON(ctx, r.config.RabbitMQ.EmailQueue, mailMessage); err != nil {
		slog.Warn("发送任务完成通知失败", "runID", run.ID, "error", err)
	}
}
