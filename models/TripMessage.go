package models

import (
	"time"

	"gorm.io/datatypes"
)

// TripMessage is one entry in a trip's shared activity feed. Proposal
// lifecycle events land here with a rendered content line plus a structured
// metadata blob for clients that want to draw richer cards.
type TripMessage struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	TripID uint `json:"tripID" gorm:"not null;index"`
	Trip   Trip `json:"-" gorm:"foreignKey:TripID"`

	ActivityID *uint `json:"activityID" gorm:"index"`

	AuthorUserID uint `json:"authorUserID" gorm:"index"`
	Author       User `json:"author" gorm:"foreignKey:AuthorUserID"`

	// proposal_created, proposal_accepted, proposal_declined,
	// proposal_withdrawn, proposal_withdrawal_requested, note
	Kind string `json:"kind" gorm:"index;size:40"`

	Content  string         `json:"content" gorm:"type:text"`
	Metadata datatypes.JSON `json:"metadata"`

	CreatedAt time.Time `json:"createdAt"`
}
