package routes

import (
	"net/http"

	"github.com/khangkhangg/AI-travel-sub002/models"
	"github.com/khangkhangg/AI-travel-sub002/storage"
	"github.com/khangkhangg/AI-travel-sub002/utils"

	"github.com/kataras/iris/v12"
)

func AdminListBusinesses(ctx iris.Context) {
	var businesses []models.Business
	storage.DB.Order("created_at DESC").Find(&businesses)
	ctx.JSON(iris.Map{"businesses": businesses})
}

type UpdateBusinessStatusInput struct {
	Status string `json:"status" validate:"required,oneof=active suspended"`
}

// AdminUpdateBusinessStatus suspends or reactivates a business. A suspended
// business keeps its history but can no longer submit proposals.
func AdminUpdateBusinessStatus(ctx iris.Context) {
	businessID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithError(http.StatusBadRequest, err)
		return
	}

	var input UpdateBusinessStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var business models.Business
	if err := storage.DB.First(&business, businessID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if err := storage.DB.Model(&business).Update("status", input.Status).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(business)
}
