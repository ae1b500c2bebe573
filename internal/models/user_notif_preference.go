package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationChannel string

const (
	NotificationChannelNone     NotificationChannel = "none"
	NotificationChannelEmail    NotificationChannel = "email"
	NotificationChannelWhatsapp NotificationChannel = "whatsapp"
)

// Valid reports whether c is a known channel
func (c NotificationChannel) Valid() bool {
	return c == NotificationChannelNone || c == NotificationChannelEmail || c == NotificationChannelWhatsapp
}

const (
	WhatsappTargetTypePersonal = "personal"
	WhatsappTargetTypeGroup    = "group"
)

// UserNotifPreference selects how a user hears about invoices and payment reviews.
// Users without a row get email.
type UserNotifPreference struct {
	ID        uint           `gorm:"primarykey" json:"-"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID uint `gorm:"uniqueIndex" json:"userId"`

	Channel NotificationChannel `gorm:"type:varchar(20);default:'email'" json:"channel" validate:"required,oneof=none email whatsapp"`

	WhatsappTargetType string `gorm:"type:varchar(20);default:'personal'" json:"whatsappTargetType" validate:"omitempty,oneof=personal group"`
	WhatsappGroupID    string `gorm:"type:varchar(100)" json:"whatsappGroupId"`
}

// DefaultNotifPreference is used when a user has not saved a preference
func DefaultNotifPreference(userID uint) UserNotifPreference {
	return UserNotifPreference{
		UserID:             userID,
		Channel:            NotificationChannelEmail,
		WhatsappTargetType: WhatsappTargetTypePersonal,
	}
}
