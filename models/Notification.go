package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a stored in-app notification. Pushes are best-effort; the
// row is what the notification center reads back.
type Notification struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"userID" gorm:"not null;index"`
	User   User `json:"-" gorm:"foreignKey:UserID"`

	Title string         `json:"title" gorm:"size:256"`
	Body  string         `json:"body" gorm:"type:text"`
	Data  datatypes.JSON `json:"data"`

	Read      bool      `json:"read" gorm:"index;default:false"`
	CreatedAt time.Time `json:"createdAt"`
}
