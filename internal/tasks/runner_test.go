package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizrent_ledger/internal/models"
)

func histories(t *testing.T, deps *Deps, taskID uint) []models.ScheduledTaskHistory {
	t.Helper()
	var rows []models.ScheduledTaskHistory
	require.NoError(t, deps.DB.Where("scheduled_task_id = ?", taskID).Order("id").Find(&rows).Error)
	return rows
}

func reloadTask(t *testing.T, deps *Deps, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	require.NoError(t, deps.DB.First(&task, id).Error)
	return task
}

func TestRunDueOneTimeSuccess(t *testing.T) {
	deps := newDeps(t)
	registry := NewRegistry()
	var got map[string]interface{}
	registry.Register("echo", func(_ context.Context, _ *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
		got = task.Arguments
		return map[string]interface{}{"ok": true}, nil
	})

	task, err := BuildScheduledTask("echo", map[string]string{"hello": "world"}, testNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 1)
	require.NoError(t, err)
	stored := insertTask(t, deps.DB, task)

	ran, err := NewRunner(registry, deps).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, "world", got["hello"])

	after := reloadTask(t, deps, stored.ID)
	assert.Equal(t, models.ScheduledTaskStatusDone, after.Status)
	require.NotNil(t, after.LastRun)

	rows := histories(t, deps, stored.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.TaskRunSuccess, rows[0].Status)
	assert.Equal(t, 1, rows[0].AttemptNumber)
	assert.Equal(t, true, rows[0].Result["ok"])
}

func TestRunDueSkipsFutureAndInactiveTasks(t *testing.T) {
	deps := newDeps(t)
	registry := NewRegistry()
	calls := 0
	registry.Register("count", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		return nil, nil
	})

	future, _ := BuildScheduledTask("count", nil, testNow.Add(time.Hour), nil, models.ScheduledTaskTypeOneTime, 1)
	insertTask(t, deps.DB, future)
	disabled, _ := BuildScheduledTask("count", nil, testNow.Add(-time.Hour), nil, models.ScheduledTaskTypeOneTime, 1)
	disabled.Status = models.ScheduledTaskStatusDisabled
	insertTask(t, deps.DB, disabled)

	ran, err := NewRunner(registry, deps).RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran)
	assert.Zero(t, calls)
}

func TestRunDueHandlerNotFound(t *testing.T) {
	deps := newDeps(t)
	task, _ := BuildScheduledTask("does_not_exist", nil, testNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 3)
	stored := insertTask(t, deps.DB, task)

	_, err := NewRunner(NewRegistry(), deps).RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ScheduledTaskStatusFailure, reloadTask(t, deps, stored.ID).Status)
	rows := histories(t, deps, stored.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.TaskRunHandlerNotFound, rows[0].Status)
}

func TestExecuteRetriesUntilMaxAttempt(t *testing.T) {
	deps := newDeps(t)
	registry := NewRegistry()
	calls := 0
	registry.Register("flaky", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return map[string]interface{}{"calls": calls}, nil
	})
	registry.Register("broken", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		return nil, errors.New("always broken")
	})

	flaky, _ := BuildScheduledTask("flaky", nil, testNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 3)
	flakyRow := insertTask(t, deps.DB, flaky)
	broken, _ := BuildScheduledTask("broken", nil, testNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 2)
	brokenRow := insertTask(t, deps.DB, broken)

	_, err := NewRunner(registry, deps).RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	after := reloadTask(t, deps, flakyRow.ID)
	assert.Equal(t, models.ScheduledTaskStatusDone, after.Status)
	assert.Equal(t, 3, after.Attempt)
	rows := histories(t, deps, flakyRow.ID)
	require.Len(t, rows, 3)
	assert.Equal(t, models.TaskRunFailure, rows[0].Status)
	assert.Equal(t, "connection reset", rows[0].Result["error"])
	assert.Equal(t, models.TaskRunSuccess, rows[2].Status)
	assert.Equal(t, 3, rows[2].AttemptNumber)

	assert.Equal(t, models.ScheduledTaskStatusFailure, reloadTask(t, deps, brokenRow.ID).Status)
	assert.Len(t, histories(t, deps, brokenRow.ID), 2)
}

func TestExecutePermanentFailureIsNotRetried(t *testing.T) {
	deps := newDeps(t)
	registry := NewRegistry()
	calls := 0
	registry.Register("bad_args", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		return nil, ErrPermanent
	})
	registry.Register("panics", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		panic("nil map")
	})

	bad, _ := BuildScheduledTask("bad_args", nil, testNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 5)
	badRow := insertTask(t, deps.DB, bad)
	panicky, _ := BuildScheduledTask("panics", nil, testNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 5)
	panicRow := insertTask(t, deps.DB, panicky)

	_, err := NewRunner(registry, deps).RunDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, models.ScheduledTaskStatusFailure, reloadTask(t, deps, badRow.ID).Status)
	assert.Len(t, histories(t, deps, panicRow.ID), 1)
	assert.Equal(t, models.ScheduledTaskStatusFailure, reloadTask(t, deps, panicRow.ID).Status)
}

func TestExecuteRecurringReschedules(t *testing.T) {
	deps := newDeps(t)
	registry := NewRegistry()
	registry.Register("hourly", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		return nil, nil
	})
	registry.Register("hourly_broken", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		return nil, errors.New("db down")
	})

	rule := "FREQ=HOURLY"
	ok, _ := BuildScheduledTask("hourly", nil, testNow.Add(-3*time.Hour), &rule, models.ScheduledTaskTypeRecurring, 1)
	okRow := insertTask(t, deps.DB, ok)
	broken, _ := BuildScheduledTask("hourly_broken", nil, testNow.Add(-time.Hour), &rule, models.ScheduledTaskTypeRecurring, 1)
	brokenRow := insertTask(t, deps.DB, broken)

	_, err := NewRunner(registry, deps).RunDue(context.Background())
	require.NoError(t, err)

	after := reloadTask(t, deps, okRow.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, after.Status)
	assert.True(t, after.Due.Equal(testNow.Add(time.Hour)), "next due %s", after.Due)

	afterBroken := reloadTask(t, deps, brokenRow.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, afterBroken.Status)
	assert.True(t, afterBroken.Due.After(testNow))
	assert.Equal(t, models.TaskRunFailure, histories(t, deps, brokenRow.ID)[0].Status)
}

func TestClaimAndRecoverStale(t *testing.T) {
	deps := newDeps(t)
	registry := NewRegistry()
	calls := 0
	registry.Register("once", func(context.Context, *Deps, models.ScheduledTask) (map[string]interface{}, error) {
		calls++
		return nil, nil
	})

	task, _ := BuildScheduledTask("once", nil, testNow.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 1)
	task.Status = models.ScheduledTaskStatusRunning
	stored := insertTask(t, deps.DB, task)

	runner := NewRunner(registry, deps)
	claimed, err := runner.claim(context.Background(), stored)
	require.NoError(t, err)
	assert.False(t, claimed)

	ran, err := runner.RunDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran)

	recovered, err := runner.RecoverStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), recovered)

	ran, err = runner.RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, calls)
}

func TestBuildScheduledTaskRejectsBadRecurrence(t *testing.T) {
	rule := "EVERY TUESDAY"
	_, err := BuildScheduledTask("x", nil, testNow, &rule, models.ScheduledTaskTypeRecurring, 1)
	assert.Error(t, err)

	_, err = BuildScheduledTask("x", nil, testNow, nil, models.ScheduledTaskTypeRecurring, 1)
	assert.Error(t, err)

	task, err := BuildScheduledTask("x", map[string]int{"n": 1}, testNow, nil, models.ScheduledTaskTypeOneTime, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, task.MaxAttempt)
	assert.Equal(t, float64(1), task.Arguments["n"])
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, name := range []string{"log_info", "sweep_overdue", "generate_invoices", "send_notification"} {
		_, ok := r.Get(name)
		assert.True(t, ok, name)
	}
	assert.Len(t, r.Names(), 4)
}
