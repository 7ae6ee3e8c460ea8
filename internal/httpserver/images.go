package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/retail_console/internal/middleware"
	"github.com/Skotchmaster/retail_console/internal/service"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

type ImagesHTTP struct {
	Svc *service.ImageService
}

func (h *ImagesHTTP) UploadAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "images.upload_avatar")

	member, _ := middleware.CurrentMember(c)
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(l, "avatar_upload_failed", "file is required", err)
	}
	if fh.Size > service.MaxAvatarSize {
		return badRequest(l, "avatar_upload_failed", "file is too large", nil)
	}
	src, err := fh.Open()
	if err != nil {
		return badRequest(l, "avatar_upload_failed", "cannot read file", err)
	}
	defer src.Close()

	img, err := h.Svc.UploadAvatar(ctx, member.ID, fh.Filename, fh.Header.Get(echo.HeaderContentType), fh.Size, src)
	if err != nil {
		return fail(l, "avatar_upload_failed", err)
	}
	return c.JSON(http.StatusCreated, img)
}
