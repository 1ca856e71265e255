package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/videos"
)

func publishVideo(t *testing.T, env *testEnv, owner session, title string) models.Video {
	t.Helper()

	rec := env.do(multipartRequest(t, http.MethodPost, "/api/v1/videos", owner.access,
		map[string]string{"title": title, "description": "about " + title},
		filePart{field: "videoFile", filename: "clip.mp4", contentType: "video/mp4", body: "mp4"},
		filePart{field: "thumbnail", filename: "thumb.png", contentType: "image/png", body: "png"},
	))
	expectStatus(t, rec, http.StatusCreated)

	var out struct {
		Data models.Video `json:"data"`
	}
	decodeBody(t, rec, &out)
	return out.Data
}

func TestPublishVideoEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")

	video := publishVideo(t, env, alice, "Intro")
	if video.OwnerID != alice.account.ID || !video.IsPublished || video.Duration != 12.5 {
		t.Fatalf("unexpected video %+v", video)
	}

	rec := env.do(multipartRequest(t, http.MethodPost, "/api/v1/videos", alice.access,
		map[string]string{"title": "No file", "description": "missing upload"},
		filePart{field: "thumbnail", filename: "thumb.png", contentType: "image/png", body: "png"},
	))
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestListVideosEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")

	for _, title := range []string{"Charlie", "Alpha", "Bravo"} {
		publishVideo(t, env, alice, title)
	}
	hidden := publishVideo(t, env, alice, "Delta")
	rec := env.do(jsonRequest(t, http.MethodPatch, "/api/v1/videos/toggle/publish/"+hidden.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos?sortBy=title&sortType=asc&limit=2", bob.access, nil))
	expectStatus(t, rec, http.StatusOK)

	var out struct {
		Data videos.Listing `json:"data"`
	}
	decodeBody(t, rec, &out)
	if out.Data.TotalDocs != 3 || out.Data.TotalPages != 2 || !out.Data.HasNextPage || out.Data.HasPrevPage {
		t.Fatalf("unexpected pagination %+v", out.Data)
	}
	if len(out.Data.Docs) != 2 || out.Data.Docs[0].Title != "Alpha" || out.Data.Docs[1].Title != "Bravo" {
		t.Fatalf("unexpected docs %+v", out.Data.Docs)
	}

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos?userId="+alice.account.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)
	out.Data = videos.Listing{}
	decodeBody(t, rec, &out)
	if out.Data.TotalDocs != 4 {
		t.Fatalf("owner should see unpublished videos, got %d", out.Data.TotalDocs)
	}

	for _, query := range []string{"?userId=nope", "?sortType=sideways", "?sortBy=password", "?limit=-1"} {
		rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos"+query, bob.access, nil))
		expectStatus(t, rec, http.StatusBadRequest)
	}
}

func TestGetVideoEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	video := publishVideo(t, env, alice, "Intro")

	rec := env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos/"+video.ID, bob.access, nil))
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos/"+uuid.NewString(), bob.access, nil))
	expectStatus(t, rec, http.StatusNotFound)

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos/not-a-uuid", bob.access, nil))
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(jsonRequest(t, http.MethodPatch, "/api/v1/videos/toggle/publish/"+video.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos/"+video.ID, bob.access, nil))
	expectStatus(t, rec, http.StatusNotFound)

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/videos/"+video.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)
}

func TestUpdateVideoEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	video := publishVideo(t, env, alice, "Intro")

	rec := env.do(multipartRequest(t, http.MethodPatch, "/api/v1/videos/"+video.ID, bob.access,
		map[string]string{"title": "Hijacked", "description": "nope"}))
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(multipartRequest(t, http.MethodPatch, "/api/v1/videos/"+video.ID, alice.access,
		map[string]string{"title": "Intro v2", "description": "updated"},
		filePart{field: "thumbnail", filename: "new.png", contentType: "image/png", body: "png"},
	))
	expectStatus(t, rec, http.StatusOK)

	var out struct {
		Data models.Video `json:"data"`
	}
	decodeBody(t, rec, &out)
	if out.Data.Title != "Intro v2" || out.Data.Thumbnail == video.Thumbnail {
		t.Fatalf("unexpected update %+v", out.Data)
	}

	discarded := env.media.Discarded()
	if len(discarded) != 1 || discarded[0] != video.Thumbnail {
		t.Fatalf("expected old thumbnail to be discarded, got %v", discarded)
	}
}

func TestDeleteVideoEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	video := publishVideo(t, env, alice, "Intro")

	rec := env.do(jsonRequest(t, http.MethodDelete, "/api/v1/videos/"+video.ID, bob.access, nil))
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(jsonRequest(t, http.MethodDelete, "/api/v1/videos/"+video.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(jsonRequest(t, http.MethodDelete, "/api/v1/videos/"+video.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusNotFound)
}

func TestTogglePublishEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	video := publishVideo(t, env, alice, "Intro")

	rec := env.do(jsonRequest(t, http.MethodPatch, "/api/v1/videos/toggle/publish/"+video.ID, bob.access, nil))
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(jsonRequest(t, http.MethodPatch, "/api/v1/videos/toggle/publish/"+video.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)

	var out struct {
		Data models.Video `json:"data"`
	}
	decodeBody(t, rec, &out)
	if out.Data.IsPublished {
		t.Fatal("expected video to be unpublished")
	}
}
