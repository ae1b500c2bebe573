package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"bizrent_ledger/internal/models"
)

// NotificationRetryDelay is how long failed recipients wait before the next attempt
const NotificationRetryDelay = 5 * time.Minute

// NotificationUser represents the user in the notification payload
type NotificationUser struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}

// SendNotificationArgs defines the arguments for a notification task
type SendNotificationArgs struct {
	Users        []NotificationUser `json:"users"`
	Subject      string             `json:"subject"`
	Message      string             `json:"message"`
	AttemptCount int                `json:"attempt_count"`
}

// SendNotificationTaskDef encapsulates the notification task logic
type SendNotificationTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendNotificationTaskDef) TaskID() string {
	return "send_notification"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendNotificationTaskDef) CreateTask(args SendNotificationArgs, due time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, due, nil, models.ScheduledTaskTypeOneTime, 3)
}

// HandleExecution sends the message to every user on their preferred channel.
// Users that fail are rescheduled as a new task until the attempt budget runs out.
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	var args SendNotificationArgs
	if err := decodeArgs(task, &args); err != nil {
		return nil, err
	}

	successCount := 0
	skippedCount := 0
	var failures []string
	var failedUsers []NotificationUser

	for _, user := range args.Users {
		pref, err := preferenceFor(ctx, deps.DB, user.UserID)
		if err != nil {
			failures = append(failures, fmt.Sprintf("user %d: preference lookup: %v", user.UserID, err))
			failedUsers = append(failedUsers, user)
			continue
		}

		sent, err := t.deliver(ctx, deps, pref, user, args)
		switch {
		case err != nil:
			log.Errorf("[Task: send_notification] user %d via %s: %v", user.UserID, pref.Channel, err)
			failures = append(failures, fmt.Sprintf("user %d via %s: %v", user.UserID, pref.Channel, err))
			failedUsers = append(failedUsers, user)
		case !sent:
			skippedCount++
		default:
			successCount++
		}
	}

	result := map[string]interface{}{
		"total":   len(args.Users),
		"success": successCount,
		"skipped": skippedCount,
		"failed":  len(failedUsers),
	}
	if len(failures) == 0 {
		return result, nil
	}
	result["failures"] = failures

	maxAttempt := task.MaxAttempt
	if maxAttempt < 1 {
		maxAttempt = 1
	}
	if args.AttemptCount+1 >= maxAttempt {
		return result, fmt.Errorf("%w: %d of %d notifications failed after %d attempts", ErrPermanent, len(failedUsers), len(args.Users), args.AttemptCount+1)
	}

	// Retry only the users that failed
	retryArgs := args
	retryArgs.Users = failedUsers
	retryArgs.AttemptCount = args.AttemptCount + 1
	retry, err := BuildScheduledTask(t.TaskID(), retryArgs, deps.now().Add(NotificationRetryDelay), nil, models.ScheduledTaskTypeOneTime, maxAttempt)
	if err != nil {
		return result, fmt.Errorf("%w: build retry: %v", ErrPermanent, err)
	}
	if err := deps.DB.WithContext(ctx).Create(retry).Error; err != nil {
		return result, fmt.Errorf("schedule retry: %w", err)
	}
	result["retry_task_id"] = retry.ID
	return result, nil
}

// deliver reports whether a message was actually sent
func (t *SendNotificationTaskDef) deliver(ctx context.Context, deps *Deps, pref models.UserNotifPreference, user NotificationUser, args SendNotificationArgs) (bool, error) {
	switch pref.Channel {
	case models.NotificationChannelNone:
		return false, nil
	case models.NotificationChannelWhatsapp:
		if deps.Whatsapp == nil {
			return false, errors.New("whatsapp is not configured")
		}
		chatID := user.Phone
		if pref.WhatsappTargetType == models.WhatsappTargetTypeGroup {
			chatID = pref.WhatsappGroupID
		}
		if strings.TrimSpace(chatID) == "" {
			return false, errors.New("no whatsapp chat id")
		}
		text := args.Message
		if args.Subject != "" {
			text = "*" + args.Subject + "*\n\n" + args.Message
		}
		return true, deps.Whatsapp.SendMessage(ctx, chatID, text)
	default:
		if deps.Email == nil {
			return false, errors.New("email is not configured")
		}
		if user.Email == "" {
			return false, errors.New("no email address")
		}
		body := fmt.Sprintf("Hi %s,\n\n%s\n", user.Name, args.Message)
		return true, deps.Email.SendEmail([]string{user.Email}, args.Subject, body)
	}
}

func preferenceFor(ctx context.Context, db *gorm.DB, userID uint) (models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultNotifPreference(userID), nil
	}
	return pref, err
}

// SendNotificationTask is the singleton instance of SendNotificationTaskDef
var SendNotificationTask = &SendNotificationTaskDef{}
