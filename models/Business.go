package models

import (
	"time"
)

// Business statuses.
const (
	BusinessActive    = "active"
	BusinessSuspended = "suspended"
)

// Business is a service provider (guide, hotel, transport or experience
// operator) that can submit proposals against trips.
type Business struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"userID" gorm:"not null;uniqueIndex"`
	User   User `json:"-" gorm:"foreignKey:UserID"`

	Name        string `json:"name" gorm:"not null;size:128"`
	Type        string `json:"type" gorm:"size:32"` // guide, hotel, transport, experience
	LogoURL     string `json:"logoURL" gorm:"size:512"`
	Description string `json:"description" gorm:"type:text"`
	Website     string `json:"website" gorm:"size:256"`
	Phone       string `json:"phone" gorm:"size:32"`

	// active, suspended
	Status string `json:"status" gorm:"index;size:16;default:active"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BusinessPublicInfo is the subset of a business shared with trip owners,
// e.g. inside proposal feed entries.
type BusinessPublicInfo struct {
	ID      uint   `json:"id"`
	UserID  uint   `json:"userID"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	LogoURL string `json:"logoURL"`
}

func (b *Business) PublicInfo() BusinessPublicInfo {
	return BusinessPublicInfo{
		ID:      b.ID,
		UserID:  b.UserID,
		Name:    b.Name,
		Type:    b.Type,
		LogoURL: b.LogoURL,
	}
}
