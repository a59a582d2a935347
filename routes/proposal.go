package routes

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/khangkhangg/AI-travel-sub002/models"
	"github.com/khangkhangg/AI-travel-sub002/services"
	"github.com/khangkhangg/AI-travel-sub002/storage"
	"github.com/khangkhangg/AI-travel-sub002/utils"

	"github.com/kataras/iris/v12"
)

func proposalService() *services.ProposalService {
	return services.NewProposalService(storage.DB)
}

func respondServiceError(ctx iris.Context, err *services.Error) {
	utils.JSONError(ctx, err.HTTPStatus(), err.Code, err.Message)
}

type SubmitProposalInput struct {
	ActivityID       *uint                    `json:"activityID"`
	ServiceNeedIDs   []uint                   `json:"serviceNeedIDs"`
	ServicesOffered  []models.ServiceLineItem `json:"servicesOffered" validate:"required,min=1"`
	PricingBreakdown map[string]interface{}   `json:"pricingBreakdown" validate:"required"`
	TotalPrice       float64                  `json:"totalPrice" validate:"required,gt=0"`
	Currency         string                   `json:"currency" validate:"required,len=3"`
	Message          string                   `json:"message"`
	Terms            map[string]interface{}   `json:"terms"`
	Attachments      []string                 `json:"attachments"`
	ExpiresAt        *time.Time               `json:"expiresAt"`
}

func SubmitProposal(ctx iris.Context) {
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

	var input SubmitProposalInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	// Base64 attachments are uploaded first; plain URLs pass through.
	attachments := make([]string, 0, len(input.Attachments))
	for i, attachment := range input.Attachments {
		if strings.HasPrefix(attachment, "data:") {
			hosted := storage.UploadBase64File(attachment, fmt.Sprintf("proposals/%d/%d/%d", tripID, userID, i))
			if hosted != "" {
				attachments = append(attachments, hosted)
			}
			continue
		}
		attachments = append(attachments, attachment)
	}

	proposal, svcErr := proposalService().Submit(ctx.Request().Context(), userID, tripID, services.SubmitProposalInput{
		ActivityID:       input.ActivityID,
		ServiceNeedIDs:   input.ServiceNeedIDs,
		ServicesOffered:  input.ServicesOffered,
		PricingBreakdown: input.PricingBreakdown,
		TotalPrice:       input.TotalPrice,
		Currency:         strings.ToUpper(input.Currency),
		Message:          input.Message,
		Terms:            input.Terms,
		Attachments:      attachments,
		ExpiresAt:        input.ExpiresAt,
	})
	if svcErr != nil {
		respondServiceError(ctx, svcErr)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(proposal)
}

type TransitionProposalInput struct {
	Status  string `json:"status" validate:"required,oneof=accepted declined withdrawn withdrawal_requested"`
	Message string `json:"message"`
}

func TransitionProposal(ctx iris.Context) {
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
	proposalID, err := ctx.Params().GetUint("proposalID")
	if err != nil {
		ctx.StopWithError(http.StatusBadRequest, err)
		return
	}

	var input TransitionProposalInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	proposal, svcErr := proposalService().Transition(ctx.Request().Context(), userID, tripID, proposalID, input.Status, input.Message)
	if svcErr != nil {
		respondServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(proposal)
}

func DeleteProposal(ctx iris.Context) {
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
	proposalID, err := ctx.Params().GetUint("proposalID")
	if err != nil {
		ctx.StopWithError(http.StatusBadRequest, err)
		return
	}

	if svcErr := proposalService().Delete(ctx.Request().Context(), userID, tripID, proposalID); svcErr != nil {
		respondServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

func ListTripProposals(ctx iris.Context) {
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

	proposals, svcErr := proposalService().ListForTrip(ctx.Request().Context(), userID, tripID)
	if svcErr != nil {
		respondServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(iris.Map{"proposals": proposals})
}

func ListMyProposals(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}

	proposals, svcErr := proposalService().ListForBusiness(ctx.Request().Context(), userID)
	if svcErr != nil {
		respondServiceError(ctx, svcErr)
		return
	}
	ctx.JSON(iris.Map{"proposals": proposals})
}
