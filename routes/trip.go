package routes

import (
	"net/http"
	"time"

	"github.com/khangkhangg/AI-travel-sub002/models"
	"github.com/khangkhangg/AI-travel-sub002/storage"
	"github.com/khangkhangg/AI-travel-sub002/utils"

	"github.com/kataras/iris/v12"
)

type CreateTripInput struct {
	Title       string     `json:"title" validate:"required,max=256"`
	Destination string     `json:"destination" validate:"max=256"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Visibility  string     `json:"visibility" validate:"omitempty,oneof=public unlisted private"`
}

func CreateTrip(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}

	var input CreateTripInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	visibility := input.Visibility
	if visibility == "" {
		visibility = models.TripVisibilityPublic
	}

	trip := models.Trip{
		UserID:      userID,
		Title:       input.Title,
		Destination: input.Destination,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Visibility:  visibility,
	}
	if err := storage.DB.Create(&trip).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(trip)
}

func GetTrip(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}
	tripID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithError(http.StatusBadRequest, err)
		return
	}

	var trip models.Trip
	if err := storage.DB.
		Preload("Activities").
		Preload("ServiceNeeds").
		First(&trip, tripID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if trip.Visibility == models.TripVisibilityPrivate && trip.UserID != userID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	ctx.JSON(trip)
}

func ListMyTrips(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}

	var trips []models.Trip
	storage.DB.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&trips)
	ctx.JSON(iris.Map{"trips": trips})
}

type CreateTripActivityInput struct {
	Title string `json:"title" validate:"required,max=256"`
	Day   int    `json:"day" validate:"gte=0"`
	Notes string `json:"notes"`
}

func CreateTripActivity(ctx iris.Context) {
	trip, ok := ownedTrip(ctx)
	if !ok {
		return
	}

	var input CreateTripActivityInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	activity := models.TripActivity{
		TripID: trip.ID,
		Title:  input.Title,
		Day:    input.Day,
		Notes:  input.Notes,
	}
	if err := storage.DB.Create(&activity).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(activity)
}

type CreateServiceNeedInput struct {
	ActivityID  *uint  `json:"activityID"`
	Kind        string `json:"kind" validate:"required,oneof=guide lodging transport experience other"`
	Description string `json:"description"`
}

func CreateServiceNeed(ctx iris.Context) {
	trip, ok := ownedTrip(ctx)
	if !ok {
		return
	}

	var input CreateServiceNeedInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	need := models.ServiceNeed{
		TripID:      trip.ID,
		ActivityID:  input.ActivityID,
		Kind:        input.Kind,
		Description: input.Description,
		Status:      models.NeedOpen,
	}
	if err := storage.DB.Create(&need).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(need)
}

// ListTripFeed returns the trip's activity feed. Readable by the trip owner
// and by any business that has submitted a proposal on the trip.
func ListTripFeed(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}
	tripID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithError(http.StatusBadRequest, err)
		return
	}

	var trip models.Trip
	if err := storage.DB.First(&trip, tripID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if !proposalService().CanViewFeed(ctx.Request().Context(), userID, &trip) {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	var messages []models.TripMessage
	storage.DB.
		Where("trip_id = ?", tripID).
		Order("created_at DESC").
		Limit(200).
		Find(&messages)
	ctx.JSON(iris.Map{"messages": messages})
}

// ownedTrip loads the {id} trip and stops the request unless the caller owns
// it.
func ownedTrip(ctx iris.Context) (*models.Trip, bool) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return nil, false
	}
	tripID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithError(http.StatusBadRequest, err)
		return nil, false
	}

	var trip models.Trip
	if err := storage.DB.First(&trip, tripID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return nil, false
	}
	if trip.UserID != userID {
		ctx.StopWithStatus(http.StatusForbidden)
		return nil, false
	}
	return &trip, true
}
