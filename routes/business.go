package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/khangkhangg/AI-travel-sub002/models"
	"github.com/khangkhangg/AI-travel-sub002/storage"
	"github.com/khangkhangg/AI-travel-sub002/utils"

	"github.com/kataras/iris/v12"
)

type CreateBusinessInput struct {
	Name        string `json:"name" validate:"required,max=128"`
	Type        string `json:"type" validate:"required,oneof=guide hotel transport experience"`
	Logo        string `json:"logo"` // base64 data URI or hosted URL
	Description string `json:"description"`
	Website     string `json:"website" validate:"omitempty,url"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
}

func CreateBusiness(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}

	var input CreateBusinessInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var existing models.Business
	if err := storage.DB.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		utils.JSONError(ctx, iris.StatusConflict, "CONFLICT", "you already have a registered business")
		return
	}

	logoURL := input.Logo
	if strings.HasPrefix(input.Logo, "data:") {
		logoURL = storage.UploadBase64File(input.Logo, fmt.Sprintf("businesses/%d/logo", userID))
	}

	business := models.Business{
		UserID:      userID,
		Name:        input.Name,
		Type:        input.Type,
		LogoURL:     logoURL,
		Description: input.Description,
		Website:     input.Website,
		Phone:       input.Phone,
		Status:      models.BusinessActive,
	}
	if err := storage.DB.Create(&business).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(business)
}

func GetMyBusiness(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}

	var business models.Business
	if err := storage.DB.Where("user_id = ?", userID).First(&business).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(business)
}

// GetBusiness exposes only the public slice of a business record.
func GetBusiness(ctx iris.Context) {
	businessID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithError(http.StatusBadRequest, err)
		return
	}

	var business models.Business
	if err := storage.DB.First(&business, businessID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	ctx.JSON(business.PublicInfo())
}
