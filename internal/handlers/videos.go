package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/response"
	"github.com/channelhub/backend/internal/videos"
)

// VideoHandler implements the video catalog endpoints.
type VideoHandler struct {
	Videos         VideoService
	MaxUploadBytes int64
}

// List handles GET /api/v1/videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	page, err := pageParams(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	q := r.URL.Query()
	ownerID := strings.TrimSpace(q.Get("userId"))
	if ownerID != "" {
		parsed, err := uuid.Parse(ownerID)
		if err != nil {
			response.Error(ctx, w, apperr.Validation("invalid userId"))
			return
		}
		ownerID = parsed.String()
	}

	listing, err := h.Videos.List(ctx, videos.ListQuery{
		Page:     page.Number,
		Limit:    page.Limit,
		Query:    q.Get("query"),
		SortBy:   q.Get("sortBy"),
		SortType: q.Get("sortType"),
		OwnerID:  ownerID,
		ViewerID: viewer.ID,
	})
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, listing, "Videos fetched successfully")
}

// Publish handles POST /api/v1/videos.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		response.Error(ctx, w, err)
		return
	}

	video, videoFile, err := formUpload(r, "videoFile")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	defer videoFile.Close()

	thumbnail, thumbFile, err := formUpload(r, "thumbnail")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	defer thumbFile.Close()

	created, err := h.Videos.Publish(ctx, owner.ID, videos.PublishInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Video:       video,
		Thumbnail:   thumbnail,
	})
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusCreated, created, "Video published successfully")
}

// Get handles GET /api/v1/videos/{videoID}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	videoID, err := pathID(r, "videoID")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.Get(ctx, viewer.ID, videoID)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, video, "Video fetched successfully")
}

// Update handles PATCH /api/v1/videos/{videoID}. The body is multipart so a
// replacement thumbnail can travel with the text fields.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	videoID, err := pathID(r, "videoID")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		response.Error(ctx, w, err)
		return
	}

	thumbnail, thumbFile, err := formUpload(r, "thumbnail")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	defer thumbFile.Close()

	updated, err := h.Videos.Update(ctx, actor.ID, videoID, videos.UpdateInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Thumbnail:   thumbnail,
	})
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, updated, "Video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoID}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	videoID, err := pathID(r, "videoID")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := h.Videos.Delete(ctx, actor.ID, videoID); err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, struct{}{}, "Video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoID}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	videoID, err := pathID(r, "videoID")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	video, err := h.Videos.TogglePublish(ctx, actor.ID, videoID)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, video, "Publish status toggled successfully")
}
