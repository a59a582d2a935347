package models

import (
	"encoding/json"
	"time"

	"golang.org/x/exp/slices"
	"gorm.io/datatypes"
)

// Proposal statuses.
const (
	ProposalPending             = "pending"
	ProposalAccepted            = "accepted"
	ProposalDeclined            = "declined"
	ProposalWithdrawn           = "withdrawn"
	ProposalWithdrawalRequested = "withdrawal_requested"
	ProposalExpired             = "expired"
)

// TerminalProposalStatuses are the statuses that free the (trip, business)
// slot for a new proposal. Everything else counts as active.
var TerminalProposalStatuses = []string{ProposalDeclined, ProposalExpired, ProposalWithdrawn}

// TermsWithdrawalReasonKey is the one reserved key inside the otherwise
// open-ended Terms payload. It is written only when a bidder requests
// withdrawal of an accepted proposal.
const TermsWithdrawalReasonKey = "withdrawalReason"

type Proposal struct {
	ID         uint     `json:"id" gorm:"primaryKey"`
	TripID     uint     `json:"tripID" gorm:"not null;index"`
	Trip       Trip     `json:"-" gorm:"foreignKey:TripID"`
	BusinessID uint     `json:"businessID" gorm:"not null;index"`
	Business   Business `json:"business" gorm:"foreignKey:BusinessID"`

	// nil targets the whole trip rather than a single itinerary item
	ActivityID *uint `json:"activityID" gorm:"index"`

	// JSON array of ServiceNeed IDs this proposal intends to fulfill
	ServiceNeedIDs datatypes.JSON `json:"serviceNeedIDs"`

	// JSON array of ServiceLineItem, non-empty at creation
	ServicesOffered  datatypes.JSON `json:"servicesOffered"`
	PricingBreakdown datatypes.JSON `json:"pricingBreakdown"`

	TotalPrice float64 `json:"totalPrice" gorm:"not null"`
	Currency   string  `json:"currency" gorm:"not null;size:8"`
	Message    string  `json:"message" gorm:"type:text"`

	// Open-ended payload; see TermsWithdrawalReasonKey
	Terms       datatypes.JSON `json:"terms"`
	Attachments datatypes.JSON `json:"attachments"`

	// pending, accepted, declined, withdrawn, withdrawal_requested, expired
	Status string `json:"status" gorm:"index;size:24"`

	ExpiresAt *time.Time `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ServiceLineItem is one offered service inside ServicesOffered.
type ServiceLineItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (p *Proposal) IsTerminal() bool {
	return slices.Contains(TerminalProposalStatuses, p.Status)
}

// EffectiveStatus applies lazy expiry: a pending proposal whose deadline has
// passed is treated as expired for permission decisions even though the
// stored row is not rewritten.
func (p *Proposal) EffectiveStatus(now time.Time) string {
	if p.Status == ProposalPending && p.ExpiresAt != nil && p.ExpiresAt.Before(now) {
		return ProposalExpired
	}
	return p.Status
}

// NeedIDs decodes ServiceNeedIDs; a missing or malformed payload reads as
// no linked needs.
func (p *Proposal) NeedIDs() []uint {
	if p.ServiceNeedIDs == nil {
		return nil
	}
	var ids []uint
	if err := json.Unmarshal(p.ServiceNeedIDs, &ids); err != nil {
		return nil
	}
	return ids
}

// WithdrawalReason reads the reserved terms key, if present.
func (p *Proposal) WithdrawalReason() string {
	if p.Terms == nil {
		return ""
	}
	var terms map[string]interface{}
	if err := json.Unmarshal(p.Terms, &terms); err != nil {
		return ""
	}
	if reason, ok := terms[TermsWithdrawalReasonKey].(string); ok {
		return reason
	}
	return ""
}

// MergeWithdrawalReason writes the reserved key into an existing terms
// payload without discarding any other keys.
func MergeWithdrawalReason(terms datatypes.JSON, reason string) datatypes.JSON {
	merged := map[string]interface{}{}
	if terms != nil {
		// best effort; an unreadable payload is replaced rather than kept
		json.Unmarshal(terms, &merged)
	}
	if merged == nil {
		merged = map[string]interface{}{}
	}
	merged[TermsWithdrawalReasonKey] = reason
	out, err := json.Marshal(merged)
	if err != nil {
		return terms
	}
	return datatypes.JSON(out)
}
