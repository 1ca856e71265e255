package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/repositories"
	"github.com/channelhub/backend/internal/response"
)

// AccountHandler serves profile maintenance and channel pages.
type AccountHandler struct {
	Accounts       AccountStore
	Graph          GraphService
	Media          MediaLibrary
	MaxUploadBytes int64
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	fullName := strings.TrimSpace(req.FullName)
	email := models.NormalizeHandle(req.Email)
	if fullName == "" || email == "" {
		response.Error(ctx, w, apperr.Validation("all fields are required"))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		response.Error(ctx, w, apperr.Validation("invalid email address"))
		return
	}

	updated, err := h.Accounts.UpdateDetails(ctx, account.ID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrEmailTaken), errors.Is(err, repositories.ErrConflict):
			err = apperr.Conflict("email already taken")
		case errors.Is(err, repositories.ErrNotFound):
			err = apperr.NotFound("user does not exist")
		default:
			err = apperr.Internal("failed to update account", err)
		}
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, updated.Sanitized(), "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", avatarFolder, h.Accounts.ReplaceAvatar, "Avatar updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image.
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", coverFolder, h.Accounts.ReplaceCoverImage, "Cover image updated successfully")
}

type imageReplacer func(ctx context.Context, id, location string) (string, error)

// replaceImage stores the new upload, points the account at it and hands the
// superseded asset to the janitor.
func (h AccountHandler) replaceImage(w http.ResponseWriter, r *http.Request, field, folder string, replace imageReplacer, message string) {
	ctx := r.Context()

	account, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		response.Error(ctx, w, err)
		return
	}

	upload, file, err := formUpload(r, field)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	defer file.Close()
	if upload == nil {
		response.Error(ctx, w, apperr.Validation(field+" file is missing"))
		return
	}

	asset, err := h.Media.SaveImage(ctx, folder, *upload)
	if err != nil {
		response.Error(ctx, w, mediaError(field, err))
		return
	}

	previous, err := replace(ctx, account.ID, asset.Location)
	if err != nil {
		h.Media.Discard(ctx, asset.Location)
		if errors.Is(err, repositories.ErrNotFound) {
			response.Error(ctx, w, apperr.NotFound("user does not exist"))
			return
		}
		response.Error(ctx, w, apperr.Internal("failed to update "+field, err))
		return
	}
	h.Media.Discard(ctx, previous)

	switch field {
	case "avatar":
		account.Avatar = asset.Location
	default:
		account.CoverImage = asset.Location
	}
	response.Write(ctx, w, http.StatusOK, account, message)
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h AccountHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	profile, err := h.Graph.ChannelProfile(ctx, r.PathValue("username"), viewer.ID)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, profile, "User channel fetched successfully")
}

// WatchHistory handles GET /api/v1/users/history.
func (h AccountHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	history, err := h.Accounts.WatchHistory(ctx, account.ID)
	if err != nil {
		response.Error(ctx, w, apperr.Internal("failed to load watch history", err))
		return
	}
	if history == nil {
		history = []models.WatchHistoryEntry{}
	}

	response.Write(ctx, w, http.StatusOK, history, "Watch history fetched successfully")
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}
