package tasks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bizrent_ledger/internal/ledger"
)

// EmailSender delivers plain text email
type EmailSender interface {
	SendEmail(to []string, subject, body string) error
}

// WhatsappSender delivers WhatsApp messages
type WhatsappSender interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// Deps are the collaborators task handlers may use
type Deps struct {
	DB       *gorm.DB
	Ledger   *ledger.Ledger
	Email    EmailSender
	Whatsapp WhatsappSender
	Now      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}
