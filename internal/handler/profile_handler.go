package handler

import (
	"context"
	"errors"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/lynxx-backend/internal/model"
	"github.com/shinyyama/lynxx-backend/internal/service"
)

// UserDirectory fills in names and photos the profile row does not have.
// *auth.Client satisfies it.
type UserDirectory interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type ProfileHandler struct {
	svc service.ProfileService
	dir UserDirectory
}

func NewProfileHandler(svc service.ProfileService, dir UserDirectory) *ProfileHandler {
	return &ProfileHandler{svc: svc, dir: dir}
}

type CreateProfileRequest struct {
	Role        string  `json:"role"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoUrl"`
}

type PublicUserResponse struct {
	UID         string  `json:"uid"`
	Role        string  `json:"role"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func (h *ProfileHandler) Create(c echo.Context) error {
	uid, ok := requireUID(c)
	if !ok {
		return unauthorized(c)
	}
	var req CreateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	ctx := c.Request().Context()
	if req.DisplayName == "" || req.PhotoURL == nil {
		if u := h.lookup(ctx, uid); u != nil {
			if req.DisplayName == "" {
				req.DisplayName = u.DisplayName
			}
			if req.PhotoURL == nil {
				req.PhotoURL = strPtrOrNil(u.PhotoURL)
			}
		}
	}
	p, err := h.svc.Create(ctx, uid, model.Role(req.Role), req.DisplayName, req.PhotoURL)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, toPublicUser(p))
}

func (h *ProfileHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
		}
		return writeError(c, err)
	}
	resp := toPublicUser(p)
	if resp.DisplayName == "" || resp.PhotoURL == nil {
		if u := h.lookup(ctx, uid); u != nil {
			if resp.DisplayName == "" {
				resp.DisplayName = u.DisplayName
			}
			if resp.PhotoURL == nil {
				resp.PhotoURL = strPtrOrNil(u.PhotoURL)
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ProfileHandler) lookup(ctx context.Context, uid string) *auth.UserInfo {
	if h.dir == nil {
		return nil
	}
	u, err := h.dir.GetUser(ctx, uid)
	if err != nil || u == nil || u.UserInfo == nil {
		return nil
	}
	return u.UserInfo
}

func toPublicUser(p *model.Profile) PublicUserResponse {
	return PublicUserResponse{
		UID:         p.UID,
		Role:        string(p.Role),
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
	}
}
