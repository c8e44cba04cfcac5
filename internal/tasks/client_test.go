package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/importcache"
	"github.com/mrlokans/shelfsync/internal/matcher"
	"github.com/mrlokans/shelfsync/internal/services"
)

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, client)

	// Verify tasks database was created
	tasksDBPath := filepath.Join(tmpDir, "test-tasks.db")
	_, err = os.Stat(tasksDBPath)
	assert.NoError(t, err, "tasks database should be created")

	err = client.Close()
	assert.NoError(t, err)
}

func TestClientStartStop(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	// Start client in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Start(ctx)

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	// Stop should complete successfully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	success := client.Stop(stopCtx)
	assert.True(t, success, "stop should succeed gracefully")
}

// TestTask is a simple task for testing
type TestTask struct {
	Value string `json:"value"`
}

func (t TestTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "test_task",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestClientEnqueue(t *testing.T) {
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), Config{Workers: 1, ReleaseAfter: time.Minute, CleanupInterval: time.Hour}, nil)
	require.NoError(t, err)
	defer client.Close()

	executed := make(chan string, 1)
	client.Register(backlite.NewQueue(func(ctx context.Context, task TestTask) error {
		executed <- task.Value
		return nil
	}))

	id, err := client.Enqueue(TestTask{Value: "hello"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	status, err := client.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, backlite.TaskStatusPending, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	select {
	case val := <-executed:
		assert.Equal(t, "hello", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

func TestExecuteImportTaskConfig(t *testing.T) {
	cfg := ExecuteImportTask{ImportID: "01HQ3Z8V6M2Y4K7N9P0R1S2T3U"}.Config()

	assert.Equal(t, "execute_import", cfg.Name)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

type fakeExecutor struct {
	gotID   string
	gotOpts services.ExecuteOptions
	err     error
}

func (f *fakeExecutor) Execute(ctx context.Context, id string, opts services.ExecuteOptions) (*services.ExecutionSummary, error) {
	f.gotID = id
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &services.ExecutionSummary{SessionsCreated: 2}, nil
}

func TestExecuteImportProcessor(t *testing.T) {
	executor := &fakeExecutor{}
	process := ExecuteImportProcessor(executor, nil)

	err := process(context.Background(), ExecuteImportTask{ImportID: "abc", SkipDuplicates: true, MinConfidence: "high"})

	require.NoError(t, err)
	assert.Equal(t, "abc", executor.gotID)
	assert.True(t, executor.gotOpts.SkipDuplicates)
	assert.Equal(t, matcher.ConfidenceHigh, executor.gotOpts.MinConfidence)
}

func TestExecuteImportProcessor_Errors(t *testing.T) {
	executor := &fakeExecutor{err: importcache.ErrBatchNotFound}

	err := ExecuteImportProcessor(executor, nil)(context.Background(), ExecuteImportTask{ImportID: "gone"})
	assert.ErrorIs(t, err, importcache.ErrBatchNotFound)

	err = ExecuteImportProcessor(nil, nil)(context.Background(), ExecuteImportTask{ImportID: "x"})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
}

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "shelfsync-tasks.db"), TasksDBPath(filepath.Join("data", "shelfsync.db")))
}
