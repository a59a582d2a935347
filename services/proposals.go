package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/khangkhangg/AI-travel-sub002/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProposalService is the proposal lifecycle engine: creation eligibility,
// state transitions under the guard's permission table, and the side effects
// that ride along (linked-need flags, trip feed entries, notifications).
type ProposalService struct {
	DB            *gorm.DB
	Feed          *TripFeedService
	Notifications *NotificationService
}

func NewProposalService(db *gorm.DB) *ProposalService {
	return &ProposalService{
		DB:            db,
		Feed:          NewTripFeedService(db),
		Notifications: NewNotificationService(db),
	}
}

type SubmitProposalInput struct {
	ActivityID       *uint
	ServiceNeedIDs   []uint
	ServicesOffered  []models.ServiceLineItem
	PricingBreakdown map[string]interface{}
	TotalPrice       float64
	Currency         string
	Message          string
	Terms            map[string]interface{}
	Attachments      []string
	ExpiresAt        *time.Time
}

// Submit creates a pending proposal from the acting user's business against
// a trip. The one-active-proposal rule is checked inside the insert
// transaction and backstopped by a partial unique index, so concurrent
// submissions cannot both land.
func (s *ProposalService) Submit(ctx context.Context, userID uint, tripID uint, in SubmitProposalInput) (*models.Proposal, *Error) {
	if userID == 0 {
		return nil, NewError(CodeUnauthenticated, "you must be signed in to submit a proposal")
	}
	if len(in.ServicesOffered) == 0 {
		return nil, NewError(CodeValidation, "servicesOffered must list at least one service")
	}
	if len(in.PricingBreakdown) == 0 {
		return nil, NewError(CodeValidation, "pricingBreakdown is required")
	}
	if in.TotalPrice <= 0 {
		return nil, NewError(CodeValidation, "totalPrice must be greater than zero")
	}
	if in.Currency == "" {
		return nil, NewError(CodeValidation, "currency is required")
	}

	trip, svcErr := s.loadTrip(ctx, tripID)
	if svcErr != nil {
		return nil, svcErr
	}
	if !trip.OpenForProposals() {
		return nil, NewError(CodeForbidden, "this trip is not open for proposals")
	}

	var business models.Business
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.BusinessActive).
		First(&business).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(CodeForbidden, "you need an active business to submit proposals")
		}
		return nil, NewError(CodeUpstreamFailure, "could not load your business")
	}
	if business.UserID == trip.UserID {
		return nil, NewError(CodeForbidden, "you cannot submit a proposal on your own trip")
	}

	if in.ActivityID != nil {
		var activity models.TripActivity
		if err := s.DB.WithContext(ctx).
			Where("id = ? AND trip_id = ?", *in.ActivityID, trip.ID).
			First(&activity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, NewError(CodeValidation, "the targeted activity does not belong to this trip")
			}
			return nil, NewError(CodeUpstreamFailure, "could not load the targeted activity")
		}
	}

	if len(in.ServiceNeedIDs) > 0 {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.ServiceNeed{}).
			Where("id IN ? AND trip_id = ?", in.ServiceNeedIDs, trip.ID).
			Count(&count).Error; err != nil {
			return nil, NewError(CodeUpstreamFailure, "could not load the linked needs")
		}
		if count != int64(len(in.ServiceNeedIDs)) {
			return nil, NewError(CodeValidation, "a linked service need does not belong to this trip")
		}
	}

	created := models.Proposal{
		TripID:           trip.ID,
		BusinessID:       business.ID,
		ActivityID:       in.ActivityID,
		ServiceNeedIDs:   mustJSON(in.ServiceNeedIDs),
		ServicesOffered:  mustJSON(in.ServicesOffered),
		PricingBreakdown: mustJSON(in.PricingBreakdown),
		TotalPrice:       in.TotalPrice,
		Currency:         in.Currency,
		Message:          in.Message,
		Terms:            mustJSON(in.Terms),
		Attachments:      mustJSON(in.Attachments),
		Status:           models.ProposalPending,
		ExpiresAt:        in.ExpiresAt,
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Proposal
		err := tx.
			Where("trip_id = ? AND business_id = ? AND status NOT IN ?", trip.ID, business.ID, models.TerminalProposalStatuses).
			First(&existing).Error
		if err == nil {
			if existing.Status == models.ProposalWithdrawalRequested {
				return NewError(CodeConflict, "you have a pending withdrawal request on this trip")
			}
			return NewError(CodeConflict, "you already have an active proposal on this trip")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return NewError(CodeUpstreamFailure, "could not check for existing proposals")
		}

		if err := tx.Create(&created).Error; err != nil {
			if isDuplicateKeyError(err) {
				return NewError(CodeConflict, "you already have an active proposal on this trip")
			}
			return NewError(CodeUpstreamFailure, "could not store the proposal")
		}
		return nil
	})
	if txErr != nil {
		return nil, asServiceError(txErr)
	}

	// Linked needs are flagged after the insert commits; the registry is the
	// source of truth for needs, so a failed flag is logged, not fatal.
	for _, needID := range in.ServiceNeedIDs {
		res := s.DB.WithContext(ctx).Model(&models.ServiceNeed{}).
			Where("id = ? AND trip_id = ? AND status = ?", needID, trip.ID, models.NeedOpen).
			Update("status", models.NeedHasOffers)
		if res.Error != nil {
			log.Printf("proposals: could not flag need %d on trip %d: %v", needID, trip.ID, res.Error)
		}
	}

	created.Business = business
	s.Feed.RecordProposalEvent(ctx, EventProposalCreated, &created, userID, "")
	s.Notifications.NotifyProposalEvent(ctx, EventProposalCreated, &created, trip)

	return &created, nil
}

// Transition moves a proposal to target on behalf of userID. The status
// precondition is re-checked by the UPDATE itself, so two competing actors
// cannot both win the same transition.
func (s *ProposalService) Transition(ctx context.Context, userID uint, tripID uint, proposalID uint, target string, message string) (*models.Proposal, *Error) {
	if userID == 0 {
		return nil, NewError(CodeUnauthenticated, "you must be signed in to act on a proposal")
	}

	proposal, svcErr := s.loadProposal(ctx, tripID, proposalID)
	if svcErr != nil {
		return nil, svcErr
	}
	trip, svcErr := s.loadTrip(ctx, tripID)
	if svcErr != nil {
		return nil, svcErr
	}

	actor := s.actorFor(ctx, userID)
	if guardErr := DecideTransition(actor, trip, proposal, target, time.Now()); guardErr != nil {
		return nil, guardErr
	}

	prior := proposal.Status
	updates := map[string]interface{}{"status": target}
	if target == models.ProposalWithdrawalRequested && message != "" {
		updates["terms"] = models.MergeWithdrawalReason(proposal.Terms, message)
	}

	res := s.DB.WithContext(ctx).Model(&models.Proposal{}).
		Where("id = ? AND status = ?", proposal.ID, prior).
		Updates(updates)
	if res.Error != nil {
		return nil, NewError(CodeUpstreamFailure, "could not update the proposal")
	}
	if res.RowsAffected == 0 {
		return nil, NewError(CodeConflict, "the proposal was changed by someone else, reload and retry")
	}

	updated, svcErr := s.loadProposal(ctx, tripID, proposalID)
	if svcErr != nil {
		// the transition itself committed; return what we know
		proposal.Status = target
		updated = proposal
	}

	kind := eventKindFor(target)
	s.Feed.RecordProposalEvent(ctx, kind, updated, userID, prior)
	s.Notifications.NotifyProposalEvent(ctx, kind, updated, trip)

	return updated, nil
}

// Delete permanently removes a proposal. Only the bidder may do this, and
// only while the proposal is still pending; withdrawn is a terminal status
// kept for history, deletion is not.
func (s *ProposalService) Delete(ctx context.Context, userID uint, tripID uint, proposalID uint) *Error {
	if userID == 0 {
		return NewError(CodeUnauthenticated, "you must be signed in to delete a proposal")
	}

	proposal, svcErr := s.loadProposal(ctx, tripID, proposalID)
	if svcErr != nil {
		return svcErr
	}

	actor := s.actorFor(ctx, userID)
	if guardErr := DecideDelete(actor, proposal); guardErr != nil {
		return guardErr
	}

	res := s.DB.WithContext(ctx).
		Where("id = ? AND status = ?", proposal.ID, models.ProposalPending).
		Delete(&models.Proposal{})
	if res.Error != nil {
		return NewError(CodeUpstreamFailure, "could not delete the proposal")
	}
	if res.RowsAffected == 0 {
		return NewError(CodeConflict, "the proposal is no longer pending")
	}
	return nil
}

// ListForTrip returns a trip's proposals. The owner sees everything; a
// business sees only its own submissions.
func (s *ProposalService) ListForTrip(ctx context.Context, userID uint, tripID uint) ([]models.Proposal, *Error) {
	if userID == 0 {
		return nil, NewError(CodeUnauthenticated, "you must be signed in to view proposals")
	}

	trip, svcErr := s.loadTrip(ctx, tripID)
	if svcErr != nil {
		return nil, svcErr
	}

	query := s.DB.WithContext(ctx).Preload("Business").
		Where("trip_id = ?", tripID).
		Order("created_at DESC")

	if trip.UserID != userID {
		actor := s.actorFor(ctx, userID)
		if actor.BusinessID == 0 {
			return nil, NewError(CodeForbidden, "you are not authorized to view proposals on this trip")
		}
		query = query.Where("business_id = ?", actor.BusinessID)
	}

	var proposals []models.Proposal
	if err := query.Find(&proposals).Error; err != nil {
		return nil, NewError(CodeUpstreamFailure, "could not load proposals")
	}
	return proposals, nil
}

// ListForBusiness returns every proposal the acting user's business has
// submitted, newest first.
func (s *ProposalService) ListForBusiness(ctx context.Context, userID uint) ([]models.Proposal, *Error) {
	if userID == 0 {
		return nil, NewError(CodeUnauthenticated, "you must be signed in to view proposals")
	}

	actor := s.actorFor(ctx, userID)
	if actor.BusinessID == 0 {
		return nil, NewError(CodeForbidden, "you need an active business to view submitted proposals")
	}

	var proposals []models.Proposal
	if err := s.DB.WithContext(ctx).Preload("Business").
		Where("business_id = ?", actor.BusinessID).
		Order("created_at DESC").
		Find(&proposals).Error; err != nil {
		return nil, NewError(CodeUpstreamFailure, "could not load proposals")
	}
	return proposals, nil
}

// CanViewFeed reports whether userID may read a trip's activity feed: the
// owner, or any business that has a proposal (in any status) on the trip.
func (s *ProposalService) CanViewFeed(ctx context.Context, userID uint, trip *models.Trip) bool {
	if trip.UserID == userID {
		return true
	}
	actor := s.actorFor(ctx, userID)
	if actor.BusinessID == 0 {
		return false
	}
	var count int64
	s.DB.WithContext(ctx).Model(&models.Proposal{}).
		Where("trip_id = ? AND business_id = ?", trip.ID, actor.BusinessID).
		Count(&count)
	return count > 0
}

func (s *ProposalService) actorFor(ctx context.Context, userID uint) ProposalActor {
	actor := ProposalActor{UserID: userID}
	var business models.Business
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.BusinessActive).
		First(&business).Error; err == nil {
		actor.BusinessID = business.ID
	}
	return actor
}

func (s *ProposalService) loadTrip(ctx context.Context, tripID uint) (*models.Trip, *Error) {
	var trip models.Trip
	if err := s.DB.WithContext(ctx).First(&trip, tripID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(CodeNotFound, "trip not found")
		}
		return nil, NewError(CodeUpstreamFailure, "could not load the trip")
	}
	return &trip, nil
}

func (s *ProposalService) loadProposal(ctx context.Context, tripID uint, proposalID uint) (*models.Proposal, *Error) {
	var proposal models.Proposal
	if err := s.DB.WithContext(ctx).Preload("Business").
		Where("id = ? AND trip_id = ?", proposalID, tripID).
		First(&proposal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewError(CodeNotFound, "proposal not found")
		}
		return nil, NewError(CodeUpstreamFailure, "could not load the proposal")
	}
	return &proposal, nil
}

func eventKindFor(target string) string {
	switch target {
	case models.ProposalAccepted:
		return EventProposalAccepted
	case models.ProposalDeclined:
		return EventProposalDeclined
	case models.ProposalWithdrawn:
		return EventProposalWithdrawn
	case models.ProposalWithdrawalRequested:
		return EventProposalWithdrawalRequested
	}
	return fmt.Sprintf("proposal_%s", target)
}

func mustJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(out)
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

func asServiceError(err error) *Error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return NewError(CodeUpstreamFailure, "the operation could not be completed")
}
