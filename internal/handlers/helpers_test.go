package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/channelhub/backend/internal/auth"
	"github.com/channelhub/backend/internal/graph"
	"github.com/channelhub/backend/internal/media"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/videos"
)

type stubMedia struct {
	mu        sync.Mutex
	saved     []string
	discarded []string
	imageErr  error
}

func (m *stubMedia) SaveImage(_ context.Context, folder string, upload media.Upload) (media.Asset, error) {
	if m.imageErr != nil {
		return media.Asset{}, m.imageErr
	}
	return media.Asset{Location: m.record(folder, upload.Filename)}, nil
}

func (m *stubMedia) SaveVideo(_ context.Context, folder string, upload media.Upload) (media.Asset, error) {
	return media.Asset{Location: m.record(folder, upload.Filename), Duration: 12.5}, nil
}

func (m *stubMedia) Discard(_ context.Context, location string) {
	if location == "" {
		return
	}
	m.mu.Lock()
	m.discarded = append(m.discarded, location)
	m.mu.Unlock()
}

func (m *stubMedia) record(folder, name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	location := fmt.Sprintf("mem://%s/%d-%s", folder, len(m.saved)+1, name)
	m.saved = append(m.saved, location)
	return location
}

func (m *stubMedia) Discarded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.discarded...)
}

// accountFixture adds watch history on top of the in-memory account store.
type accountFixture struct {
	*auth.InMemoryAccountStore
	videos *videos.InMemoryStore

	mu      sync.Mutex
	watched map[string][]string
}

func (a *accountFixture) RecordWatch(_ context.Context, accountID, videoID string, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.watched[accountID] = append(a.watched[accountID], videoID)
	return nil
}

func (a *accountFixture) WatchHistory(ctx context.Context, accountID string) ([]models.WatchHistoryEntry, error) {
	a.mu.Lock()
	ids := append([]string(nil), a.watched[accountID]...)
	a.mu.Unlock()

	entries := make([]models.WatchHistoryEntry, 0, len(ids))
	for _, id := range ids {
		video, err := a.videos.FindByID(ctx, id)
		if err != nil {
			continue
		}
		owner, err := a.FindByID(ctx, video.OwnerID)
		if err != nil {
			continue
		}
		entries = append(entries, models.WatchHistoryEntry{Video: video, Owner: owner.Summary()})
	}
	return entries, nil
}

type testEnv struct {
	mux      *http.ServeMux
	accounts *accountFixture
	edges    *graph.InMemoryStore
	media    *stubMedia
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	videoStore := videos.NewInMemoryStore()
	accounts := &accountFixture{
		InMemoryAccountStore: auth.NewInMemoryAccountStore(),
		videos:               videoStore,
		watched:              make(map[string][]string),
	}
	edges := graph.NewInMemoryStore(accounts)
	library := &stubMedia{}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Sessions:      auth.NewManager(accounts, issuer),
		Authenticator: auth.NewAuthenticator(issuer, accounts),
		Accounts:      accounts,
		Graph:         graph.NewEngine(edges, accounts),
		Videos:        videos.NewService(videoStore, library, accounts),
		Media:         library,
	})

	return &testEnv{mux: mux, accounts: accounts, edges: edges, media: library}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

type session struct {
	account models.Account
	access  string
	refresh string
}

// signUp registers and logs in username, returning the issued tokens.
func (e *testEnv) signUp(t *testing.T, username string) session {
	t.Helper()

	rec := e.do(registerRequest(t, map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"fullName": strings.ToUpper(username[:1]) + username[1:],
		"password": "correct-horse",
	}, true))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, rec.Code, rec.Body.String())
	}

	rec = e.do(jsonRequest(t, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"username": username,
		"password": "correct-horse",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}

	var out struct {
		Data loginResponse `json:"data"`
	}
	decodeBody(t, rec, &out)
	return session{account: out.Data.User, access: out.Data.AccessToken, refresh: out.Data.RefreshToken}
}

type filePart struct {
	field       string
	filename    string
	contentType string
	body        string
}

func multipartRequest(t *testing.T, method, target, token string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		header.Set("Content-Type", f.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := io.WriteString(part, f.body); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func registerRequest(t *testing.T, fields map[string]string, withAvatar bool) *http.Request {
	t.Helper()
	var files []filePart
	if withAvatar {
		files = append(files, filePart{field: "avatar", filename: "me.png", contentType: "image/png", body: "png"})
	}
	return multipartRequest(t, http.MethodPost, "/api/v1/users/register", "", fields, files...)
}

func jsonRequest(t *testing.T, method, target, token string, body any) *http.Request {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Message string `json:"message"`
		Success bool   `json:"success"`
	}
	decodeBody(t, rec, &out)
	if out.Success {
		t.Fatal("expected success=false on error envelope")
	}
	return out.Message
}
