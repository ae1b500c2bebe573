package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role discriminates landlords from tenants. It is fixed at registration.
type Role string

const (
	RoleTenant   Role = "TENANT"
	RoleLandlord Role = "LANDLORD"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleTenant || r == RoleLandlord
}

// User represents a landlord or tenant account
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Email        string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FirstName    string  `gorm:"type:varchar(100)" json:"firstName"`
	LastName     string  `gorm:"type:varchar(100)" json:"lastName"`
	Phone        string  `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Role         Role    `gorm:"type:varchar(20);not null;index" json:"role"`
	PasswordHash string  `gorm:"type:varchar(255)" json:"-"`
	FirebaseUID  *string `gorm:"type:varchar(128);uniqueIndex" json:"-"`

	// Relationships
	Properties []Property `gorm:"foreignKey:LandlordID" json:"properties,omitempty"`
	Units      []Unit     `gorm:"foreignKey:TenantID" json:"units,omitempty"`
}

// FullName joins first and last name, skipping empty parts
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail is the form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
