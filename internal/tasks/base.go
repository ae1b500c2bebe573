package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bizrent_ledger/internal/models"
)

// ErrPermanent marks a handler failure that must not be retried by the runner
var ErrPermanent = errors.New("permanent task failure")

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var mapArgs map[string]interface{}
	if err := json.Unmarshal(argsBytes, &mapArgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}

	if taskType == models.ScheduledTaskTypeRecurring {
		if recurringInterval == nil || !models.ValidRecurrence(*recurringInterval) {
			return nil, fmt.Errorf("recurring task %s needs a valid RRULE", taskName)
		}
	}
	if maxAttempt < 1 {
		maxAttempt = 1
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due.UTC(),
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// EnsureTask inserts task unless a task with the same unique key already exists.
// It reports whether a row was created.
func EnsureTask(db *gorm.DB, uniqueKey string, task *models.ScheduledTask) (bool, error) {
	task.UniqueKey = &uniqueKey
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "unique_key"}},
		DoNothing: true,
	}).Create(task)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// decodeArgs converts the stored JSON argument map into a typed struct
func decodeArgs(task models.ScheduledTask, dest interface{}) error {
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(argsBytes, dest); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", ErrPermanent, err)
	}
	return nil
}
