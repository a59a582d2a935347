package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/khangkhangg/AI-travel-sub002/models"
	"github.com/khangkhangg/AI-travel-sub002/storage"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	storage.Migrate(db)
	return db
}

func createUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{FirstName: "Test", LastName: "User", Email: email, Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createBusiness(t *testing.T, db *gorm.DB, user models.User, name string) models.Business {
	t.Helper()
	business := models.Business{UserID: user.ID, Name: name, Type: "guide", Status: models.BusinessActive}
	require.NoError(t, db.Create(&business).Error)
	return business
}

func createTrip(t *testing.T, db *gorm.DB, owner models.User, title string) models.Trip {
	t.Helper()
	trip := models.Trip{UserID: owner.ID, Title: title, Destination: "Lisbon", Visibility: models.TripVisibilityPublic}
	require.NoError(t, db.Create(&trip).Error)
	return trip
}

func validSubmitInput() SubmitProposalInput {
	return SubmitProposalInput{
		ServicesOffered:  []models.ServiceLineItem{{Name: "City tour", Description: "Full day with a licensed guide"}},
		PricingBreakdown: map[string]interface{}{"guide": 400, "transport": 100},
		TotalPrice:       500,
		Currency:         "USD",
	}
}

type engineFixture struct {
	db     *gorm.DB
	svc    *ProposalService
	owner  models.User
	bidder models.User
	biz    models.Business
	trip   models.Trip
}

func setupEngine(t *testing.T) *engineFixture {
	t.Helper()
	db := setupTestDB(t)
	owner := createUser(t, db, "owner@example.com")
	bidder := createUser(t, db, "bidder@example.com")
	biz := createBusiness(t, db, bidder, "Atlas Tours")
	trip := createTrip(t, db, owner, "Two weeks in Portugal")
	return &engineFixture{db: db, svc: NewProposalService(db), owner: owner, bidder: bidder, biz: biz, trip: trip}
}

func TestSubmitProposal(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	need := models.ServiceNeed{TripID: f.trip.ID, Kind: "guide", Status: models.NeedOpen}
	require.NoError(t, f.db.Create(&need).Error)

	in := validSubmitInput()
	in.ServiceNeedIDs = []uint{need.ID}
	in.Message = "Happy to show you around"

	proposal, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
	require.Nil(t, svcErr)
	assert.Equal(t, models.ProposalPending, proposal.Status)
	assert.Equal(t, float64(500), proposal.TotalPrice)
	assert.Equal(t, f.biz.ID, proposal.BusinessID)

	// linked need was flagged
	var updatedNeed models.ServiceNeed
	require.NoError(t, f.db.First(&updatedNeed, need.ID).Error)
	assert.Equal(t, models.NeedHasOffers, updatedNeed.Status)

	// audit entry landed in the trip feed
	var entry models.TripMessage
	require.NoError(t, f.db.Where("trip_id = ? AND kind = ?", f.trip.ID, EventProposalCreated).First(&entry).Error)
	assert.Contains(t, entry.Content, "Atlas Tours")

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	assert.Equal(t, "Atlas Tours", meta["businessName"])
	assert.Equal(t, float64(500), meta["totalPrice"])
	assert.Equal(t, "USD", meta["currency"])

	// owner got a stored notification
	var notification models.Notification
	require.NoError(t, f.db.Where("user_id = ?", f.owner.ID).First(&notification).Error)
}

func TestSubmitValidationAndEligibility(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	t.Run("missing services", func(t *testing.T) {
		in := validSubmitInput()
		in.ServicesOffered = nil
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeValidation, svcErr.Code)
	})

	t.Run("missing pricing", func(t *testing.T) {
		in := validSubmitInput()
		in.PricingBreakdown = nil
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeValidation, svcErr.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, svcErr := f.svc.Submit(ctx, 0, f.trip.ID, validSubmitInput())
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeUnauthenticated, svcErr.Code)
	})

	t.Run("unknown trip", func(t *testing.T) {
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, 9999, validSubmitInput())
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeNotFound, svcErr.Code)
	})

	t.Run("no business", func(t *testing.T) {
		stranger := createUser(t, f.db, "stranger@example.com")
		_, svcErr := f.svc.Submit(ctx, stranger.ID, f.trip.ID, validSubmitInput())
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeForbidden, svcErr.Code)
	})

	t.Run("own trip", func(t *testing.T) {
		ownTrip := createTrip(t, f.db, f.bidder, "My own getaway")
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, ownTrip.ID, validSubmitInput())
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeForbidden, svcErr.Code)
	})

	t.Run("private trip", func(t *testing.T) {
		private := models.Trip{UserID: f.owner.ID, Title: "Secret trip", Visibility: models.TripVisibilityPrivate}
		require.NoError(t, f.db.Create(&private).Error)
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, private.ID, validSubmitInput())
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeForbidden, svcErr.Code)
	})

	t.Run("foreign need", func(t *testing.T) {
		otherTrip := createTrip(t, f.db, f.owner, "Need host trip")
		need := models.ServiceNeed{TripID: otherTrip.ID, Kind: "guide", Status: models.NeedOpen}
		require.NoError(t, f.db.Create(&need).Error)
		in := validSubmitInput()
		in.ServiceNeedIDs = []uint{need.ID}
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeValidation, svcErr.Code)

		// the foreign need was not flagged
		var stored models.ServiceNeed
		require.NoError(t, f.db.First(&stored, need.ID).Error)
		assert.Equal(t, models.NeedOpen, stored.Status)
	})

	t.Run("unknown need", func(t *testing.T) {
		in := validSubmitInput()
		in.ServiceNeedIDs = []uint{9999}
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeValidation, svcErr.Code)
	})

	t.Run("suspended business", func(t *testing.T) {
		suspendedUser := createUser(t, f.db, "suspended@example.com")
		suspended := models.Business{UserID: suspendedUser.ID, Name: "Paused Tours", Type: "guide", Status: models.BusinessSuspended}
		require.NoError(t, f.db.Create(&suspended).Error)
		_, svcErr := f.svc.Submit(ctx, suspendedUser.ID, f.trip.ID, validSubmitInput())
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeForbidden, svcErr.Code)
	})

	t.Run("foreign activity", func(t *testing.T) {
		otherTrip := createTrip(t, f.db, f.owner, "Another trip")
		activity := models.TripActivity{TripID: otherTrip.ID, Title: "Wine tasting"}
		require.NoError(t, f.db.Create(&activity).Error)
		in := validSubmitInput()
		in.ActivityID = &activity.ID
		_, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
		require.NotNil(t, svcErr)
		assert.Equal(t, CodeValidation, svcErr.Code)
	})
}

func TestAcceptThenDuplicateSubmitConflicts(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	proposal, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)

	accepted, svcErr := f.svc.Transition(ctx, f.owner.ID, f.trip.ID, proposal.ID, models.ProposalAccepted, "")
	require.Nil(t, svcErr)
	assert.Equal(t, models.ProposalAccepted, accepted.Status)

	_, svcErr = f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeConflict, svcErr.Code)
	assert.Contains(t, svcErr.Message, "active proposal")

	var entry models.TripMessage
	require.NoError(t, f.db.Where("trip_id = ? AND kind = ?", f.trip.ID, EventProposalAccepted).First(&entry).Error)
}

func TestWithdrawalNegotiation(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	in := validSubmitInput()
	in.Terms = map[string]interface{}{"deposit": "50% up front"}
	proposal, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
	require.Nil(t, svcErr)

	_, svcErr = f.svc.Transition(ctx, f.owner.ID, f.trip.ID, proposal.ID, models.ProposalAccepted, "")
	require.Nil(t, svcErr)

	// bidder asks to withdraw, reason goes into terms
	requested, svcErr := f.svc.Transition(ctx, f.bidder.ID, f.trip.ID, proposal.ID, models.ProposalWithdrawalRequested, "double-booked")
	require.Nil(t, svcErr)
	assert.Equal(t, models.ProposalWithdrawalRequested, requested.Status)
	assert.Equal(t, "double-booked", requested.WithdrawalReason())

	// other terms keys survive the merge
	var terms map[string]interface{}
	require.NoError(t, json.Unmarshal(requested.Terms, &terms))
	assert.Equal(t, "50% up front", terms["deposit"])

	var entry models.TripMessage
	require.NoError(t, f.db.Where("trip_id = ? AND kind = ?", f.trip.ID, EventProposalWithdrawalRequested).First(&entry).Error)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.Metadata, &meta))
	assert.Equal(t, "double-booked", meta["withdrawalReason"])

	// owner rejects the request; deal stays alive, reason is not erased
	restored, svcErr := f.svc.Transition(ctx, f.owner.ID, f.trip.ID, proposal.ID, models.ProposalAccepted, "")
	require.Nil(t, svcErr)
	assert.Equal(t, models.ProposalAccepted, restored.Status)
	assert.Equal(t, "double-booked", restored.WithdrawalReason())

	// bidder asks again, owner approves this time
	_, svcErr = f.svc.Transition(ctx, f.bidder.ID, f.trip.ID, proposal.ID, models.ProposalWithdrawalRequested, "")
	require.Nil(t, svcErr)
	withdrawn, svcErr := f.svc.Transition(ctx, f.owner.ID, f.trip.ID, proposal.ID, models.ProposalWithdrawn, "")
	require.Nil(t, svcErr)
	assert.Equal(t, models.ProposalWithdrawn, withdrawn.Status)
	assert.Equal(t, "double-booked", withdrawn.WithdrawalReason())

	// withdrawn is terminal, the slot is free again
	fresh, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)
	assert.Equal(t, models.ProposalPending, fresh.Status)
}

func TestTransitionPermissions(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	proposal, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)

	// bidder tries an owner-only action
	_, svcErr = f.svc.Transition(ctx, f.bidder.ID, f.trip.ID, proposal.ID, models.ProposalDeclined, "")
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeForbidden, svcErr.Code)

	// a third party with its own business cannot touch the proposal
	thirdUser := createUser(t, f.db, "third@example.com")
	createBusiness(t, f.db, thirdUser, "Rival Tours")
	_, svcErr = f.svc.Transition(ctx, thirdUser.ID, f.trip.ID, proposal.ID, models.ProposalAccepted, "")
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeForbidden, svcErr.Code)

	// unknown proposal
	_, svcErr = f.svc.Transition(ctx, f.owner.ID, f.trip.ID, 9999, models.ProposalAccepted, "")
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeNotFound, svcErr.Code)
}

func TestExpiredPendingProposalIneligible(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	in := validSubmitInput()
	past := time.Now().Add(-time.Hour)
	in.ExpiresAt = &past

	proposal, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, in)
	require.Nil(t, svcErr)

	_, svcErr = f.svc.Transition(ctx, f.owner.ID, f.trip.ID, proposal.ID, models.ProposalAccepted, "")
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeConflict, svcErr.Code)

	// the stored status was not rewritten
	var stored models.Proposal
	require.NoError(t, f.db.First(&stored, proposal.ID).Error)
	assert.Equal(t, models.ProposalPending, stored.Status)
}

func TestDeleteProposal(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	proposal, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)

	// owner cannot hard-delete
	svcErr = f.svc.Delete(ctx, f.owner.ID, f.trip.ID, proposal.ID)
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeForbidden, svcErr.Code)

	// bidder can, while pending
	require.Nil(t, f.svc.Delete(ctx, f.bidder.ID, f.trip.ID, proposal.ID))

	var count int64
	f.db.Model(&models.Proposal{}).Where("id = ?", proposal.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	// once accepted, deletion is off the table
	proposal, svcErr = f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)
	_, svcErr = f.svc.Transition(ctx, f.owner.ID, f.trip.ID, proposal.ID, models.ProposalAccepted, "")
	require.Nil(t, svcErr)

	svcErr = f.svc.Delete(ctx, f.bidder.ID, f.trip.ID, proposal.ID)
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeConflict, svcErr.Code)
}

func TestListProposals(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	_, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)

	secondUser := createUser(t, f.db, "second@example.com")
	createBusiness(t, f.db, secondUser, "Beta Travel")
	_, svcErr = f.svc.Submit(ctx, secondUser.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)

	// owner sees both
	all, svcErr := f.svc.ListForTrip(ctx, f.owner.ID, f.trip.ID)
	require.Nil(t, svcErr)
	assert.Len(t, all, 2)

	// each bidder only sees its own
	mine, svcErr := f.svc.ListForTrip(ctx, f.bidder.ID, f.trip.ID)
	require.Nil(t, svcErr)
	require.Len(t, mine, 1)
	assert.Equal(t, f.biz.ID, mine[0].BusinessID)

	// a user with no business and no ownership is rejected
	stranger := createUser(t, f.db, "nobody@example.com")
	_, svcErr = f.svc.ListForTrip(ctx, stranger.ID, f.trip.ID)
	require.NotNil(t, svcErr)
	assert.Equal(t, CodeForbidden, svcErr.Code)

	byBusiness, svcErr := f.svc.ListForBusiness(ctx, f.bidder.ID)
	require.Nil(t, svcErr)
	require.Len(t, byBusiness, 1)
	assert.Equal(t, f.trip.ID, byBusiness[0].TripID)
}

func TestConcurrentSubmitKeepsOneActive(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	successes := make(chan uint, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput()); svcErr == nil {
				successes <- p.ID
			}
		}()
	}
	wg.Wait()
	close(successes)

	var active int64
	f.db.Model(&models.Proposal{}).
		Where("trip_id = ? AND business_id = ? AND status NOT IN ?", f.trip.ID, f.biz.ID, models.TerminalProposalStatuses).
		Count(&active)
	assert.Equal(t, int64(1), active, "exactly one active proposal must survive concurrent submission")
	assert.GreaterOrEqual(t, len(successes), 1)
}

func TestFeedFailureDoesNotFailTransition(t *testing.T) {
	f := setupEngine(t)
	ctx := context.Background()

	proposal, svcErr := f.svc.Submit(ctx, f.bidder.ID, f.trip.ID, validSubmitInput())
	require.Nil(t, svcErr)

	// Point the notifier at a database with no schema: every feed write will
	// fail, and the transition must still succeed.
	brokenDSN := fmt.Sprintf("file:%s_broken?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	broken, err := gorm.Open(sqlite.Open(brokenDSN), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	f.svc.Feed = NewTripFeedService(broken)
	f.svc.Notifications = NewNotificationService(broken)

	accepted, svcErr := f.svc.Transition(ctx, f.owner.ID, f.trip.ID, proposal.ID, models.ProposalAccepted, "")
	require.Nil(t, svcErr)
	assert.Equal(t, models.ProposalAccepted, accepted.Status)

	var stored models.Proposal
	require.NoError(t, f.db.First(&stored, proposal.ID).Error)
	assert.Equal(t, models.ProposalAccepted, stored.Status)
}
