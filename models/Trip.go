package models

import (
	"time"
)

// Trip visibility values. Proposals are only accepted for trips that are
// not private.
const (
	TripVisibilityPublic   = "public"
	TripVisibilityUnlisted = "unlisted"
	TripVisibilityPrivate  = "private"
)

// Service need statuses.
const (
	NeedOpen      = "open"
	NeedHasOffers = "has_offers"
	NeedFulfilled = "fulfilled"
)

type Trip struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"userID" gorm:"not null;index"`
	User   User `json:"-" gorm:"foreignKey:UserID"`

	Title       string     `json:"title" gorm:"not null;size:256"`
	Destination string     `json:"destination" gorm:"size:256"`
	Description string     `json:"description" gorm:"type:text"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`

	// public, unlisted, private
	Visibility string `json:"visibility" gorm:"index;size:16;default:public"`

	Activities   []TripActivity `json:"activities" gorm:"foreignKey:TripID"`
	ServiceNeeds []ServiceNeed  `json:"serviceNeeds" gorm:"foreignKey:TripID"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OpenForProposals reports whether businesses may bid on this trip.
func (t *Trip) OpenForProposals() bool {
	return t.Visibility != TripVisibilityPrivate
}

// TripActivity is a single itinerary item a proposal can target.
type TripActivity struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	TripID uint `json:"tripID" gorm:"not null;index"`
	Trip   Trip `json:"-" gorm:"foreignKey:TripID"`

	Title string `json:"title" gorm:"not null;size:256"`
	Day   int    `json:"day"`
	Notes string `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ServiceNeed is a trip's declared service requirement (e.g. "need a driver
// for day 2") that a proposal may address. The engine only ever moves a need
// from open to has_offers; recomputation on decline/withdrawal is left to
// whoever owns the need.
type ServiceNeed struct {
	ID         uint  `json:"id" gorm:"primaryKey"`
	TripID     uint  `json:"tripID" gorm:"not null;index"`
	Trip       Trip  `json:"-" gorm:"foreignKey:TripID"`
	ActivityID *uint `json:"activityID" gorm:"index"`

	Kind        string `json:"kind" gorm:"size:32"` // guide, lodging, transport, experience, other
	Description string `json:"description" gorm:"type:text"`

	// open, has_offers, fulfilled
	Status string `json:"status" gorm:"index;size:16;default:open"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
