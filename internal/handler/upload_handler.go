package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shinyyama/lynxx-backend/internal/reqctx"
	"github.com/shinyyama/lynxx-backend/internal/storage"
)

type UploadHandler struct {
	uploader storage.Uploader
	maxBytes int64
}

// NewUploadHandler accepts a nil uploader; uploads then answer 503.
func NewUploadHandler(uploader storage.Uploader, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &UploadHandler{uploader: uploader, maxBytes: maxBytes}
}

type UploadResponse struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// UploadImage stores a chat image. The returned path is what the client sends as
// the content of an image message.
func (h *UploadHandler) UploadImage(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	if h.uploader == nil {
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "uploads are not configured"))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "file is required"))
	}
	if fh.Size > h.maxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse("too_large", "image is too large"))
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unreadable file"))
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "unreadable file"))
	}
	if int64(len(data)) > h.maxBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse("too_large", "image is too large"))
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("unsupported_type", "only images can be uploaded"))
	}

	ctx := c.Request().Context()
	path := storage.ChatImagePath(uid, mt.Extension())
	url, err := h.uploader.Upload(ctx, path, data, mt.String())
	if err != nil {
		log.Error().Err(err).Str("rid", reqctx.RID(ctx)).Str("path", path).Msg("image upload failed")
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("transient", "upload failed, try again"))
	}
	return c.JSON(http.StatusCreated, UploadResponse{Path: path, URL: url, ContentType: mt.String()})
}
