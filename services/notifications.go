package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/khangkhangg/AI-travel-sub002/models"
	"github.com/khangkhangg/AI-travel-sub002/utils"

	"gorm.io/gorm"
)

// NotificationService stores in-app notification rows and pushes them to the
// counterparty of a proposal event. Fire-and-forget: a failed push never
// affects the operation that triggered it.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// NotifyProposalEvent routes the event to whoever did not cause it: the trip
// owner hears about new proposals and withdrawal requests, the bidder hears
// about the owner's decisions.
func (ns *NotificationService) NotifyProposalEvent(ctx context.Context, kind string, p *models.Proposal, trip *models.Trip) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("notifications: recovered while notifying %s for proposal %d: %v", kind, p.ID, r)
		}
	}()

	business := p.Business
	if business.ID == 0 {
		if err := ns.DB.WithContext(ctx).First(&business, p.BusinessID).Error; err != nil {
			log.Printf("notifications: could not load business %d: %v", p.BusinessID, err)
			return
		}
	}

	var recipientID uint
	var title, body string
	price := fmt.Sprintf("%.2f %s", p.TotalPrice, p.Currency)

	switch kind {
	case EventProposalCreated:
		recipientID = trip.UserID
		title = "New proposal on your trip"
		body = fmt.Sprintf("%s sent you a proposal of %s for %s", business.Name, price, trip.Title)
	case EventProposalWithdrawalRequested:
		recipientID = trip.UserID
		title = "Withdrawal requested"
		body = fmt.Sprintf("%s wants to withdraw its accepted proposal on %s", business.Name, trip.Title)
	case EventProposalAccepted:
		recipientID = business.UserID
		title = "Proposal accepted"
		body = fmt.Sprintf("Your proposal of %s on %s was accepted", price, trip.Title)
	case EventProposalDeclined:
		recipientID = business.UserID
		title = "Proposal declined"
		body = fmt.Sprintf("Your proposal on %s was declined", trip.Title)
	case EventProposalWithdrawn:
		recipientID = business.UserID
		title = "Proposal withdrawn"
		body = fmt.Sprintf("Your proposal on %s is now withdrawn", trip.Title)
	default:
		return
	}

	data := map[string]string{
		"type":       kind,
		"proposalID": fmt.Sprintf("%d", p.ID),
		"tripID":     fmt.Sprintf("%d", p.TripID),
	}

	ns.store(ctx, recipientID, title, body, data)
	ns.push(ctx, recipientID, title, body, data)
}

func (ns *NotificationService) store(ctx context.Context, userID uint, title, body string, data map[string]string) {
	payload, _ := json.Marshal(data)
	row := models.Notification{UserID: userID, Title: title, Body: body, Data: payload}
	if err := ns.DB.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("notifications: could not store notification for user %d: %v", userID, err)
	}
}

func (ns *NotificationService) push(ctx context.Context, userID uint, title, body string, data map[string]string) {
	var user models.User
	if err := ns.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		log.Printf("notifications: user %d not found: %v", userID, err)
		return
	}
	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		log.Printf("notifications: bad push tokens for user %d: %v", userID, err)
		return
	}

	for _, token := range tokens {
		if err := utils.SendNotification(token, title, body, data); err != nil {
			log.Printf("notifications: push to user %d failed: %v", userID, err)
		}
	}
}
