package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/khangkhangg/AI-travel-sub002/models"

	"gorm.io/gorm"
)

// Trip feed event kinds for proposal lifecycle entries.
const (
	EventProposalCreated             = "proposal_created"
	EventProposalAccepted            = "proposal_accepted"
	EventProposalDeclined            = "proposal_declined"
	EventProposalWithdrawn           = "proposal_withdrawn"
	EventProposalWithdrawalRequested = "proposal_withdrawal_requested"
)

// TripFeedService appends proposal lifecycle events to a trip's shared
// activity feed. Everything here is best-effort: a feed entry that cannot be
// written is logged and dropped, never bubbled up to the caller, because the
// proposal mutation it describes has already committed.
type TripFeedService struct {
	DB *gorm.DB
}

func NewTripFeedService(db *gorm.DB) *TripFeedService {
	return &TripFeedService{DB: db}
}

// RecordProposalEvent renders and stores one feed entry. priorStatus is
// empty for creation events.
func (s *TripFeedService) RecordProposalEvent(ctx context.Context, kind string, p *models.Proposal, actorUserID uint, priorStatus string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tripfeed: recovered while recording %s for proposal %d: %v", kind, p.ID, r)
		}
	}()

	business := p.Business
	if business.ID == 0 {
		if err := s.DB.WithContext(ctx).First(&business, p.BusinessID).Error; err != nil {
			log.Printf("tripfeed: could not load business %d: %v", p.BusinessID, err)
			business = models.Business{ID: p.BusinessID, Name: "A business"}
		}
	}

	var activityTitle string
	if p.ActivityID != nil {
		var activity models.TripActivity
		if err := s.DB.WithContext(ctx).First(&activity, *p.ActivityID).Error; err == nil {
			activityTitle = activity.Title
		}
	}

	meta := map[string]interface{}{
		"proposalID":    p.ID,
		"businessID":    business.ID,
		"businessName":  business.Name,
		"businessType":  business.Type,
		"businessLogo":  business.LogoURL,
		"activityID":    p.ActivityID,
		"activityTitle": activityTitle,
		"totalPrice":    p.TotalPrice,
		"currency":      p.Currency,
		"message":       p.Message,
		"priorStatus":   priorStatus,
	}
	if kind == EventProposalWithdrawalRequested {
		meta["withdrawalReason"] = p.WithdrawalReason()
	}
	metadata, _ := json.Marshal(meta)

	entry := models.TripMessage{
		TripID:       p.TripID,
		ActivityID:   p.ActivityID,
		AuthorUserID: actorUserID,
		Kind:         kind,
		Content:      renderProposalEvent(kind, business.Name, activityTitle, p),
		Metadata:     metadata,
	}
	if err := s.DB.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("tripfeed: could not record %s for proposal %d: %v", kind, p.ID, err)
	}
}

func renderProposalEvent(kind string, businessName string, activityTitle string, p *models.Proposal) string {
	subject := "this trip"
	if activityTitle != "" {
		subject = fmt.Sprintf("%q", activityTitle)
	}
	price := fmt.Sprintf("%.2f %s", p.TotalPrice, p.Currency)

	switch kind {
	case EventProposalCreated:
		return fmt.Sprintf("%s sent a proposal of %s for %s", businessName, price, subject)
	case EventProposalAccepted:
		return fmt.Sprintf("The proposal from %s (%s) was accepted", businessName, price)
	case EventProposalDeclined:
		return fmt.Sprintf("The proposal from %s was declined", businessName)
	case EventProposalWithdrawn:
		return fmt.Sprintf("%s withdrew its proposal", businessName)
	case EventProposalWithdrawalRequested:
		if reason := p.WithdrawalReason(); reason != "" {
			return fmt.Sprintf("%s asked to withdraw its accepted proposal: %s", businessName, reason)
		}
		return fmt.Sprintf("%s asked to withdraw its accepted proposal", businessName)
	}
	return fmt.Sprintf("Proposal update from %s", businessName)
}
