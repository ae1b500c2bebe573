package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/models"
)

type PreferenceInput struct {
	Channel            models.NotificationChannel `json:"channel" validate:"required,oneof=none email whatsapp"`
	WhatsappTargetType string                     `json:"whatsappTargetType" validate:"omitempty,oneof=personal group"`
	WhatsappGroupID    string                     `json:"whatsappGroupId" validate:"max=100"`
}

// PreferenceService reads and stores notification preferences
type PreferenceService struct {
	db *gorm.DB
}

func NewPreferenceService(db *gorm.DB) *PreferenceService {
	return &PreferenceService{db: db}
}

// Get returns the user's preference, or the email default when none was saved
func (s *PreferenceService) Get(ctx context.Context, userID uint) (models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultNotifPreference(userID), nil
	}
	return pref, err
}

func (s *PreferenceService) Update(ctx context.Context, userID uint, in PreferenceInput) (models.UserNotifPreference, error) {
	if !in.Channel.Valid() {
		return models.UserNotifPreference{}, &ledger.ValidationError{Field: "channel", Message: "channel must be none, email or whatsapp"}
	}
	target := in.WhatsappTargetType
	if target == "" {
		target = models.WhatsappTargetTypePersonal
	}
	groupID := strings.TrimSpace(in.WhatsappGroupID)

	var pref models.UserNotifPreference
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Channel == models.NotificationChannelWhatsapp {
			switch target {
			case models.WhatsappTargetTypeGroup:
				if groupID == "" {
					return &ledger.ValidationError{Field: "whatsappGroupId", Message: "group id is required for group delivery"}
				}
			case models.WhatsappTargetTypePersonal:
				var user models.User
				if err := tx.First(&user, userID).Error; err != nil {
					return err
				}
				if strings.TrimSpace(user.Phone) == "" {
					return &ledger.ValidationError{Field: "channel", Message: "add a phone number before choosing WhatsApp"}
				}
			default:
				return &ledger.ValidationError{Field: "whatsappTargetType", Message: "target must be personal or group"}
			}
		}

		// Upsert preference
		err := tx.Where("user_id = ?", userID).First(&pref).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			pref = models.UserNotifPreference{UserID: userID}
		} else if err != nil {
			return err
		}
		pref.Channel = in.Channel
		pref.WhatsappTargetType = target
		pref.WhatsappGroupID = groupID
		return tx.Save(&pref).Error
	})
	return pref, err
}
