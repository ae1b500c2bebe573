package tasks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
)

// Notifier turns ledger notifications into send_notification tasks written in the caller's transaction
type Notifier struct {
	now func() time.Time
}

func NewNotifier() *Notifier {
	return &Notifier{now: time.Now}
}

// Enqueue implements ledger.Notifier
func (n *Notifier) Enqueue(ctx context.Context, tx *gorm.DB, msg ledger.Notification) error {
	var user models.User
	if err := tx.WithContext(ctx).First(&user, msg.UserID).Error; err != nil {
		return fmt.Errorf("load notification recipient %d: %w", msg.UserID, err)
	}

	task, err := SendNotificationTask.CreateTask(SendNotificationArgs{
		Users: []NotificationUser{{
			UserID: user.ID,
			Name:   user.FullName(),
			Email:  user.Email,
			Phone:  user.Phone,
		}},
		Subject: msg.Subject,
		Message: msg.Message,
	}, n.now().UTC())
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Create(task).Error
}
