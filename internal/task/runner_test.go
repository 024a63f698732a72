package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryTaskStore is an in-memory TaskStore for runner tests.
type memoryTaskStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*TaskRecord
	saveErr error
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{records: make(map[uuid.UUID]*TaskRecord)}
}

func (s *memoryTaskStore) SaveTask(ctx context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	now := time.Now().UTC()
	s.records[task.ID()] = &TaskRecord{
		ID:        task.ID(),
		Type:      task.Type(),
		Payload:   task.Payload(),
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *memoryTaskStore) UpdateTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	status TaskStatus,
	errorMsg string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[taskID]
	if !ok {
		return nil
	}
	record.Status = status
	record.ErrorMsg = errorMsg
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryTaskStore) GetPendingTasks(ctx context.Context) ([]TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TaskRecord
	for _, record := range s.records {
		if record.Status == TaskStatusPending {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *memoryTaskStore) GetProcessingTasks(
	ctx context.Context,
	olderThan time.Duration,
) ([]TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []TaskRecord
	for _, record := range s.records {
		if record.Status != TaskStatusProcessing {
			continue
		}
		if olderThan > 0 && record.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, *record)
	}
	return out, nil
}

func (s *memoryTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}

func (s *memoryTaskStore) statusOf(taskID uuid.UUID) TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[taskID]
	if !ok {
		return ""
	}
	return record.Status
}

// testTask is a minimal Task whose Execute behavior is controlled by the
// test.
type testTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	execFunc func(ctx context.Context) error
	executed chan struct{}
	once     sync.Once
}

func newTestTask(execFunc func(ctx context.Context) error) *testTask {
	t := &testTask{
		id:       uuid.New(),
		taskType: "test_task",
		payload:  []byte(`{}`),
		execFunc: execFunc,
		executed: make(chan struct{}),
	}
	if t.execFunc == nil {
		t.execFunc = func(ctx context.Context) error { return nil }
	}
	return t
}

func (t *testTask) ID() uuid.UUID      { return t.id }
func (t *testTask) Type() string       { return t.taskType }
func (t *testTask) Payload() []byte    { return t.payload }
func (t *testTask) Status() TaskStatus { return TaskStatusPending }

func (t *testTask) Execute(ctx context.Context) error {
	defer t.once.Do(func() { close(t.executed) })
	return t.execFunc(ctx)
}

// testHydrator rebuilds testTasks and records what it saw.
type testHydrator struct {
	mu       sync.Mutex
	hydrated []uuid.UUID
	execFunc func(ctx context.Context) error
	failFor  map[string]bool
}

func (h *testHydrator) Hydrate(id uuid.UUID, taskType string, payload []byte) (Task, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failFor[taskType] {
		return nil, errors.New("unknown task type")
	}
	h.hydrated = append(h.hydrated, id)
	task := newTestTask(h.execFunc)
	task.id = id
	task.taskType = taskType
	return task, nil
}

func waitForStatus(t *testing.T, store *memoryTaskStore, id uuid.UUID, want TaskStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return store.statusOf(id) == want
	}, 2*time.Second, 5*time.Millisecond)
}

func testRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		QueueSize:              10,
		StuckTaskAge:           time.Minute,
		StuckTaskCheckInterval: time.Hour, // keep the monitor quiet in tests
	}
}

func TestTaskRunner_SubmitAndProcess(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	runner := NewTaskRunner(store, &testHydrator{}, testRunnerConfig(), slog.Default())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	task := newTestTask(nil)
	require.NoError(t, runner.Submit(context.Background(), task))

	<-task.executed
	waitForStatus(t, store, task.ID(), TaskStatusCompleted)
}

func TestTaskRunner_FailedTaskIsRecorded(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	runner := NewTaskRunner(store, &testHydrator{}, testRunnerConfig(), slog.Default())

	var handlerCalled sync.WaitGroup
	handlerCalled.Add(1)
	runner.SetErrorHandler(func(task Task, err error) {
		handlerCalled.Done()
	})

	require.NoError(t, runner.Start())
	defer runner.Stop()

	task := newTestTask(func(ctx context.Context) error {
		return errors.New("task blew up")
	})
	require.NoError(t, runner.Submit(context.Background(), task))

	handlerCalled.Wait()
	waitForStatus(t, store, task.ID(), TaskStatusFailed)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, "task blew up", store.records[task.ID()].ErrorMsg)
}

func TestTaskRunner_SubmitSaveFailure(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	store.saveErr = errors.New("db down")
	runner := NewTaskRunner(store, &testHydrator{}, testRunnerConfig(), slog.Default())

	err := runner.Submit(context.Background(), newTestTask(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save task")
}

func TestTaskRunner_SubmitFullQueue(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()
	cfg := testRunnerConfig()
	cfg.QueueSize = 1
	// Runner never started: nothing drains the queue.
	runner := NewTaskRunner(store, &testHydrator{}, cfg, slog.Default())

	first := newTestTask(nil)
	require.NoError(t, runner.Submit(context.Background(), first))

	second := newTestTask(nil)
	err := runner.Submit(context.Background(), second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")

	// The rejected task row is still persisted as pending, so recovery will
	// find it.
	assert.Equal(t, TaskStatusPending, store.statusOf(second.ID()))
}

func TestTaskRunner_Recover(t *testing.T) {
	t.Parallel()

	t.Run("requeues pending and processing rows", func(t *testing.T) {
		t.Parallel()
		store := newMemoryTaskStore()

		pendingID := uuid.New()
		processingID := uuid.New()
		payload, err := json.Marshal(map[string]string{})
		require.NoError(t, err)

		store.records[pendingID] = &TaskRecord{
			ID: pendingID, Type: "test_task", Payload: payload, Status: TaskStatusPending,
		}
		store.records[processingID] = &TaskRecord{
			ID: processingID, Type: "test_task", Payload: payload, Status: TaskStatusProcessing,
		}

		hydrator := &testHydrator{}
		runner := NewTaskRunner(store, hydrator, testRunnerConfig(), slog.Default())
		require.NoError(t, runner.Start())
		defer runner.Stop()

		waitForStatus(t, store, pendingID, TaskStatusCompleted)
		waitForStatus(t, store, processingID, TaskStatusCompleted)

		hydrator.mu.Lock()
		defer hydrator.mu.Unlock()
		assert.ElementsMatch(t, []uuid.UUID{pendingID, processingID}, hydrator.hydrated)
	})

	t.Run("marks unhydratable rows failed", func(t *testing.T) {
		t.Parallel()
		store := newMemoryTaskStore()

		badID := uuid.New()
		store.records[badID] = &TaskRecord{
			ID: badID, Type: "bogus_type", Payload: []byte(`{}`), Status: TaskStatusPending,
		}

		hydrator := &testHydrator{failFor: map[string]bool{"bogus_type": true}}
		runner := NewTaskRunner(store, hydrator, testRunnerConfig(), slog.Default())
		require.NoError(t, runner.Start())
		defer runner.Stop()

		waitForStatus(t, store, badID, TaskStatusFailed)
	})
}

func TestTaskRunner_StuckTaskMonitor(t *testing.T) {
	t.Parallel()

	store := newMemoryTaskStore()

	stuckID := uuid.New()
	store.records[stuckID] = &TaskRecord{
		ID:        stuckID,
		Type:      "test_task",
		Payload:   []byte(`{}`),
		Status:    TaskStatusCompleted, // not visible to startup recovery
		UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}

	cfg := testRunnerConfig()
	cfg.StuckTaskAge = 10 * time.Minute
	cfg.StuckTaskCheckInterval = 20 * time.Millisecond

	hydrator := &testHydrator{}
	runner := NewTaskRunner(store, hydrator, cfg, slog.Default())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	// Flip the record to processing after startup so only the monitor, not
	// the startup recovery pass, can pick it up.
	store.mu.Lock()
	store.records[stuckID].Status = TaskStatusProcessing
	store.mu.Unlock()

	waitForStatus(t, store, stuckID, TaskStatusCompleted)
}
