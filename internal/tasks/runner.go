package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"bizrent_ledger/internal/models"
)

// Runner executes due scheduled tasks and records every attempt
type Runner struct {
	db       *gorm.DB
	registry *Registry
	deps     *Deps
	now      func() time.Time
}

func NewRunner(registry *Registry, deps *Deps) *Runner {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{db: deps.DB, registry: registry, deps: deps, now: now}
}

// RecoverStale puts tasks left running by a crashed worker back into the queue
func (r *Runner) RecoverStale(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("status = ?", models.ScheduledTaskStatusRunning).
		Update("status", models.ScheduledTaskStatusActive)
	return res.RowsAffected, res.Error
}

// RunDue executes every active task whose due time has passed and returns how many were run
func (r *Runner) RunDue(ctx context.Context) (int, error) {
	var pendingTasks []models.ScheduledTask
	now := r.now().UTC()
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, now).
		Order("due, id").
		Find(&pendingTasks).Error
	if err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}
	if len(pendingTasks) == 0 {
		log.Debug("No pending tasks found.")
		return 0, nil
	}

	log.Infof("Found %d pending tasks.", len(pendingTasks))
	ran := 0
	for _, task := range pendingTasks {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		claimed, err := r.claim(ctx, task)
		if err != nil {
			log.Errorf("claim task %d: %v", task.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		r.Execute(ctx, task)
		ran++
	}
	return ran, nil
}

// claim moves the task from active to running; another worker that claimed it first wins
func (r *Runner) claim(ctx context.Context, task models.ScheduledTask) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ScheduledTask{}).
		Where("id = ? AND status = ?", task.ID, models.ScheduledTaskStatusActive).
		Update("status", models.ScheduledTaskStatusRunning)
	return res.RowsAffected == 1, res.Error
}

// Execute runs a claimed task, retrying failures up to its max attempt, and stores the outcome
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) {
	log.Infof("Processing task: %s (ID: %d)", task.TaskName, task.ID)
	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warnf("Task handler not found for: %s. Marking as failure.", task.TaskName)
		now := r.now().UTC()
		r.record(ctx, task, now, 0, models.TaskRunHandlerNotFound, 1, map[string]interface{}{"error": "handler not found"})
		r.finish(ctx, task, map[string]interface{}{
			"status":   models.ScheduledTaskStatusFailure,
			"last_run": &now,
			"attempt":  1,
		})
		return
	}

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	var (
		startTime time.Time
		err       error
		attempt   int
	)
	for attempt = 1; attempt <= maxAttempt; attempt++ {
		var result map[string]interface{}
		startTime = r.now().UTC()
		started := time.Now()
		result, err = r.run(ctx, handler, task)
		runtimeMs := time.Since(started).Milliseconds()

		if err == nil {
			r.record(ctx, task, startTime, runtimeMs, models.TaskRunSuccess, attempt, result)
			log.Infof("Task %s completed successfully.", task.TaskName)
			break
		}

		resultData := map[string]interface{}{"error": err.Error()}
		for k, v := range result {
			resultData[k] = v
		}
		r.record(ctx, task, startTime, runtimeMs, models.TaskRunFailure, attempt, resultData)
		log.Errorf("Task %s failed (attempt %d/%d): %v", task.TaskName, attempt, maxAttempt, err)

		if errors.Is(err, ErrPermanent) || ctx.Err() != nil {
			break
		}
	}
	if attempt > maxAttempt {
		attempt = maxAttempt
	}

	taskUpdates := map[string]interface{}{
		"last_run": &startTime,
		"attempt":  attempt,
	}
	recurring := task.TaskType == models.ScheduledTaskTypeRecurring
	switch {
	case recurring:
		nextDue := task.NextDue(startTime)
		// only reschedule into the future so the task does not loop
		if nextDue.After(startTime) {
			taskUpdates["status"] = models.ScheduledTaskStatusActive
			taskUpdates["due"] = nextDue
		} else if err != nil {
			taskUpdates["status"] = models.ScheduledTaskStatusFailure
		} else {
			taskUpdates["status"] = models.ScheduledTaskStatusDone
		}
	case err != nil:
		taskUpdates["status"] = models.ScheduledTaskStatusFailure
	default:
		taskUpdates["status"] = models.ScheduledTaskStatusDone
	}
	r.finish(ctx, task, taskUpdates)
}

// run calls the handler and turns a panic into an error
func (r *Runner) run(ctx context.Context, handler TaskHandler, task models.ScheduledTask) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: task panicked: %v", ErrPermanent, p)
		}
	}()
	return handler(ctx, r.deps, task)
}

func (r *Runner) record(ctx context.Context, task models.ScheduledTask, runAt time.Time, runtimeMs int64, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		RuntimeMs:       runtimeMs,
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Create(&history).Error; err != nil {
		log.Errorf("record history for task %d: %v", task.ID, err)
	}
}

func (r *Runner) finish(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) {
	err := r.db.WithContext(context.WithoutCancel(ctx)).Model(&models.ScheduledTask{}).
		Where("id = ?", task.ID).
		Updates(updates).Error
	if err != nil {
		log.Errorf("update task %d: %v", task.ID, err)
	}
}
