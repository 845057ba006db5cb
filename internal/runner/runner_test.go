package runner

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/config"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/scheduler"
)

type fakeStore struct {
	runs        map[int64]*domain.OptimizationRun
	clusters    map[int64]*domain.Cluster
	users       map[int64]*domain.User
	completeErr error
	staleBefore time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs: make(map[int64]*domain.OptimizationRun),
		clusters: map[int64]*domain.Cluster{
			1: {
				ID:   1,
				Name: "demo",
				Workers: []domain.ClusterWorker{
					{Name: "vm-0", Mips: 1000, CostPerSecond: 3},
					{Name: "vm-1", Mips: 2500, CostPerSecond: 3},
					{Name: "vm-2", Mips: 1000, CostPerSecond: 3},
				},
			},
		},
		users: map[int64]*domain.User{
			7: {ID: 7, FullName: "张三", Email: "zhangsan@example.com"},
		},
	}
}

func (s *fakeStore) GetRunByID(_ context.Context, id int64) (*domain.OptimizationRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (s *fakeStore) GetClusterByID(_ context.Context, id int64) (*domain.Cluster, error) {
	cluster, ok := s.clusters[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cluster, nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *fakeStore) MarkRunRunning(_ context.Context, run *domain.OptimizationRun) error {
	if run.Status != domain.RunStatusPending {
		return sql.ErrNoRows
	}
	run.Status = domain.RunStatusRunning
	return nil
}

func (s *fakeStore) CompleteRun(_ context.Context, run *domain.OptimizationRun) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	run.Status = domain.RunStatusSucceeded
	return nil
}

func (s *fakeStore) FailRun(_ context.Context, run *domain.OptimizationRun, reason string) error {
	run.Status = domain.RunStatusFailed
	run.ErrorMessage = reason
	return nil
}

func (s *fakeStore) FailStaleRuns(_ context.Context, before time.Time, reason string) ([]*domain.OptimizationRun, error) {
	s.staleBefore = before
	stale := make([]*domain.OptimizationRun, 0)
	for _, run := range s.runs {
		if run.Status == domain.RunStatusRunning && run.StartedAt != nil && run.StartedAt.Before(before) {
			run.Status = domain.RunStatusFailed
			run.ErrorMessage = reason
			stale = append(stale, run)
		}
	}
	return stale, nil
}

type published struct {
	queue   string
	message any
}

type fakePublisher struct {
	messages []published
}

func (p *fakePublisher) PublishJSON(_ context.Context, queue string, v any) error {
	p.messages = append(p.messages, published{queue: queue, message: v})
	return nil
}

func newTestRunner(t *testing.T, store Store) (*Runner, *fakePublisher, *prometheus.Registry) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Optimizer.RunTimeout = 30
	cfg.Optimizer.ReclaimInterval = 10
	cfg.RabbitMQ.EmailQueue = "email_queue"

	registry := prometheus.NewRegistry()
	publisher := &fakePublisher{}
	return NewRunner(cfg, store, publisher, metrics.NewRecorder(registry)), publisher, registry
}

func pendingRun(id int64, alg scheduler.Algorithm) *domain.OptimizationRun {
	params := scheduler.DefaultParameters(alg)
	params.Iterations = 10
	params.Seed = 3
	if alg == scheduler.AlgorithmRedDeer {
		params.PopulationSize = 20
		params.NumMales = 5
	}
	return &domain.OptimizationRun{
		ID:         id,
		ClusterID:  1,
		Algorithm:  alg,
		JobCount:   6,
		JobLength:  500,
		Parameters: params,
		Status:     domain.RunStatusPending,
		CreatedBy:  7,
	}
}

func TestExecuteSucceeds(t *testing.T) {
	for i, alg := range scheduler.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			store := newFakeStore()
			run := pendingRun(int64(i+1), alg)
			store.runs[run.ID] = run
			r, publisher, registry := newTestRunner(t, store)

			require.NoError(t, r.Execute(context.Background(), run.ID))

			assert.Equal(t, domain.RunStatusSucceeded, run.Status)
			require.Len(t, run.Assignment, 6)
			for _, w := range run.Assignment {
				assert.GreaterOrEqual(t, w, 0)
				assert.Less(t, w, 3)
			}
			require.NotNil(t, run.Fitness)
			require.NotNil(t, run.Metrics)
			assert.InDelta(t, *run.Fitness, run.Metrics.Fitness, 1e-12)

			require.Len(t, publisher.messages, 1)
			assert.Equal(t, "email_queue", publisher.messages[0].queue)
			mail := publisher.messages[0].message.(domain.MailMessage)
			assert.Equal(t, domain.MailTypeRunFinished, mail.Type)
			assert.Equal(t, "zhangsan@example.com", mail.To)
			data := mail.Data.(domain.RunFinishedMailData)
			assert.Equal(t, "demo", data.ClusterName)
			assert.Equal(t, domain.RunStatusSucceeded, data.Status)

			count, err := testutil.GatherAndCount(registry, "placement_runs_total")
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestExecuteIgnoresUnknownAndFinishedRuns(t *testing.T) {
	store := newFakeStore()
	done := pendingRun(1, scheduler.AlgorithmGenetic)
	done.Status = domain.RunStatusSucceeded
	store.runs[done.ID] = done
	r, publisher, _ := newTestRunner(t, store)

	assert.NoError(t, r.Execute(context.Background(), 404))
	assert.NoError(t, r.Execute(context.Background(), done.ID))
	assert.Equal(t, domain.RunStatusSucceeded, done.Status)
	assert.Empty(t, publisher.messages)
}

func TestExecuteMarksInvalidRunFailed(t *testing.T) {
	store := newFakeStore()
	run := pendingRun(1, scheduler.AlgorithmGreyWolf)
	run.Parameters.PopulationSize = 2
	store.runs[run.ID] = run
	r, publisher, registry := newTestRunner(t, store)

	require.NoError(t, r.Execute(context.Background(), run.ID))

	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, scheduler.ErrInvalidArgument.Error())
	assert.Nil(t, run.Assignment)
	require.Len(t, publisher.messages, 1)

	count, err := testutil.GatherAndCount(registry, "placement_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExecuteMissingClusterFails(t *testing.T) {
	store := newFakeStore()
	run := pendingRun(1, scheduler.AlgorithmGenetic)
	run.ClusterID = 99
	store.runs[run.ID] = run
	r, _, _ := newTestRunner(t, store)

	require.NoError(t, r.Execute(context.Background(), run.ID))
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "集群不存在", run.ErrorMessage)
}

func TestExecuteCompleteErrorFailsRun(t *testing.T) {
	store := newFakeStore()
	store.completeErr = errors.New("connection reset")
	run := pendingRun(1, scheduler.AlgorithmGenetic)
	store.runs[run.ID] = run
	r, _, _ := newTestRunner(t, store)

	require.NoError(t, r.Execute(context.Background(), run.ID))
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "connection reset")
}

func TestExecuteWithoutCreatorSkipsMail(t *testing.T) {
	store := newFakeStore()
	run := pendingRun(1, scheduler.AlgorithmGenetic)
	run.CreatedBy = 123
	store.runs[run.ID] = run
	r, publisher, _ := newTestRunner(t, store)

	require.NoError(t, r.Execute(context.Background(), run.ID))
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Empty(t, publisher.messages)
}

func TestReclaimStaleRuns(t *testing.T) {
	store := newFakeStore()
	r, publisher, registry := newTestRunner(t, store)

	longAgo := time.Now().Add(-time.Hour)
	recent := time.Now().Add(-5 * time.Second)

	stale := pendingRun(1, scheduler.AlgorithmGenetic)
	stale.Status = domain.RunStatusRunning
	stale.StartedAt = &longAgo
	store.runs[1] = stale

	active := pendingRun(2, scheduler.AlgorithmGreyWolf)
	active.Status = domain.RunStatusRunning
	active.StartedAt = &recent
	store.runs[2] = active

	store.runs[3] = pendingRun(3, scheduler.AlgorithmRedDeer)

	n, err := r.ReclaimStaleRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.WithinDuration(t, time.Now().Add(-40*time.Second), store.staleBefore, 5*time.Second)

	assert.Equal(t, domain.RunStatusFailed, stale.Status)
	assert.Equal(t, staleRunReason, stale.ErrorMessage)
	assert.Equal(t, domain.RunStatusRunning, active.Status)
	assert.Equal(t, domain.RunStatusPending, store.runs[3].Status)

	require.Len(t, publisher.messages, 1)
	mail := publisher.messages[0].message.(domain.MailMessage)
	assert.Equal(t, domain.MailTypeRunFinished, mail.Type)
	assert.Equal(t, domain.RunStatusFailed, mail.Data.(domain.RunFinishedMailData).Status)

	count, err := testutil.GatherAndCount(registry, "placement_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// 重复投递的消息不会再执行已回收的任务
	require.NoError(t, r.Execute(context.Background(), 1))
	assert.Equal(t, domain.RunStatusFailed, stale.Status)
}
