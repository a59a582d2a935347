package services

import (
	"fmt"
	"time"

	"github.com/khangkhangg/AI-travel-sub002/models"
)

// ProposalActor identifies who is acting on a proposal. BusinessID is zero
// when the user has no active business.
type ProposalActor struct {
	UserID     uint
	BusinessID uint
}

func (a ProposalActor) IsOwner(trip *models.Trip) bool {
	return trip != nil && trip.UserID == a.UserID
}

func (a ProposalActor) IsBidder(p *models.Proposal) bool {
	return a.BusinessID != 0 && p.BusinessID == a.BusinessID
}

const (
	actorOwner  = "owner"
	actorBidder = "bidder"
)

type transitionRule struct {
	target string
	actor  string
}

// proposalTransitions is the complete permission table. A pair absent from
// this map is never allowed, for anyone. Note the asymmetry around
// withdrawal: the bidder opens a withdrawal request on an accepted proposal,
// and only the owner resolves it (back to accepted to reject, to withdrawn
// to approve). There is no direct accepted -> declined.
var proposalTransitions = map[string][]transitionRule{
	models.ProposalPending: {
		{models.ProposalAccepted, actorOwner},
		{models.ProposalDeclined, actorOwner},
		{models.ProposalWithdrawn, actorBidder},
	},
	models.ProposalAccepted: {
		{models.ProposalWithdrawalRequested, actorBidder},
	},
	models.ProposalWithdrawalRequested: {
		{models.ProposalAccepted, actorOwner},
		{models.ProposalWithdrawn, actorOwner},
	},
}

// DecideTransition answers whether actor may move the proposal to target.
// Expiry is applied lazily here: a pending proposal past its deadline is
// evaluated as expired even though the stored row still says pending.
func DecideTransition(actor ProposalActor, trip *models.Trip, p *models.Proposal, target string, now time.Time) *Error {
	var role string
	switch {
	case actor.IsOwner(trip):
		role = actorOwner
	case actor.IsBidder(p):
		role = actorBidder
	default:
		return NewError(CodeForbidden, "you are not authorized to act on this proposal")
	}

	current := p.EffectiveStatus(now)

	for _, rule := range proposalTransitions[current] {
		if rule.target != target {
			continue
		}
		if rule.actor != role {
			return NewError(CodeForbidden, fmt.Sprintf("the %s may not move this proposal from %s to %s", role, current, target))
		}
		return nil
	}

	if current == models.ProposalWithdrawalRequested && role == actorBidder {
		return NewError(CodeConflict, "you have a pending withdrawal request on this proposal")
	}
	return NewError(CodeConflict, fmt.Sprintf("forbidden transition: %s cannot move this proposal from %s to %s", role, current, target))
}

// DecideDelete answers whether actor may hard-delete the proposal. Deletion
// is checked against the stored status, not the lazily-expired one: an
// overdue pending proposal can still be cleaned up by its bidder.
func DecideDelete(actor ProposalActor, p *models.Proposal) *Error {
	if !actor.IsBidder(p) {
		return NewError(CodeForbidden, "only the bidding business may delete its proposal")
	}
	if p.Status != models.ProposalPending {
		return NewError(CodeConflict, fmt.Sprintf("only pending proposals can be deleted, this one is %s", p.Status))
	}
	return nil
}
