package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/khangkhangg/AI-travel-sub002/storage"
	"github.com/khangkhangg/AI-travel-sub002/utils"

	"github.com/kataras/iris/v12"
)

type UploadLogoInput struct {
	File string `json:"file" validate:"required"` // base64 data URI
}

// UploadLogo hosts a business logo ahead of time so clients can register or
// update a business with a plain URL instead of inlining the image.
func UploadLogo(ctx iris.Context) {
	userID, ok := utils.ContextUserID(ctx)
	if !ok {
		ctx.StopWithStatus(http.StatusUnauthorized)
		return
	}

	var input UploadLogoInput
	if err := ctx.ReadJSON(&input); err != nil {
		if errors.Is(err, io.EOF) {
			utils.CreateEmptyBodyError(ctx)
			return
		}
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !strings.HasPrefix(input.File, "data:") {
		utils.JSONError(ctx, iris.StatusBadRequest, "VALIDATION", "file must be a base64 data URI")
		return
	}

	hosted := storage.UploadBase64File(input.File, fmt.Sprintf("businesses/%d/logo", userID))
	if hosted == "" {
		utils.JSONError(ctx, iris.StatusBadGateway, "UPSTREAM_FAILURE", "the upload could not be completed")
		return
	}

	ctx.JSON(iris.Map{"url": hosted})
}
