package models

import (
	"time"

	"gorm.io/gorm"
)

// Property is a building or lot owned by one landlord
type Property struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	LandlordID uint   `gorm:"index;not null" json:"landlordId"`
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	Address    string `gorm:"type:varchar(255)" json:"address"`
	City       string `gorm:"type:varchar(100)" json:"city"`
	State      string `gorm:"type:varchar(100)" json:"state"`
	ZipCode    string `gorm:"type:varchar(20)" json:"zipCode"`

	// Relationships
	Landlord *User  `gorm:"foreignKey:LandlordID" json:"-"`
	Units    []Unit `gorm:"foreignKey:PropertyID" json:"units"`
}
