package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/models"
)

func TestToggleSubscriptionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	target := "/api/v1/subscriptions/c/" + alice.account.ID

	rec := env.do(jsonRequest(t, http.MethodPost, target, bob.access, nil))
	expectStatus(t, rec, http.StatusOK)

	var out struct {
		Data    models.ToggleResult `json:"data"`
		Message string              `json:"message"`
	}
	decodeBody(t, rec, &out)
	if !out.Data.Subscribed || out.Message != "Subscribed successfully" {
		t.Fatalf("unexpected toggle result %+v %q", out.Data, out.Message)
	}
	if env.edges.Len() != 1 {
		t.Fatalf("expected one edge, got %d", env.edges.Len())
	}

	rec = env.do(jsonRequest(t, http.MethodPost, target, bob.access, nil))
	expectStatus(t, rec, http.StatusOK)
	out.Data = models.ToggleResult{}
	decodeBody(t, rec, &out)
	if out.Data.Subscribed || out.Message != "Unsubscribed successfully" {
		t.Fatalf("unexpected toggle result %+v %q", out.Data, out.Message)
	}
	if env.edges.Len() != 0 {
		t.Fatalf("expected no edges, got %d", env.edges.Len())
	}
}

func TestToggleSubscriptionRejections(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")

	tests := []struct {
		name   string
		target string
		token  string
		status int
	}{
		{name: "unauthenticated", target: "/api/v1/subscriptions/c/" + alice.account.ID, status: http.StatusUnauthorized},
		{name: "invalid id", target: "/api/v1/subscriptions/c/not-a-uuid", token: alice.access, status: http.StatusBadRequest},
		{name: "self", target: "/api/v1/subscriptions/c/" + alice.account.ID, token: alice.access, status: http.StatusBadRequest},
		{name: "unknown channel", target: "/api/v1/subscriptions/c/" + uuid.NewString(), token: alice.access, status: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(jsonRequest(t, http.MethodPost, tc.target, tc.token, nil))
			expectStatus(t, rec, tc.status)
		})
	}
	if env.edges.Len() != 0 {
		t.Fatalf("rejected toggles must not create edges, got %d", env.edges.Len())
	}
}

func TestListSubscribersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	carol := env.signUp(t, "carol")

	for _, s := range []session{bob, carol} {
		rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/subscriptions/c/"+alice.account.ID, s.access, nil))
		expectStatus(t, rec, http.StatusOK)
	}
	rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/subscriptions/c/"+bob.account.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/c/"+alice.account.ID+"?page=1&limit=10", alice.access, nil))
	expectStatus(t, rec, http.StatusOK)

	var out struct {
		Data []models.SubscriberEntry `json:"data"`
	}
	decodeBody(t, rec, &out)
	if len(out.Data) != 2 {
		t.Fatalf("expected two subscribers, got %+v", out.Data)
	}
	mutual := map[string]bool{}
	for _, entry := range out.Data {
		mutual[entry.Subscriber.Username] = entry.IsMutuallySubscribed
	}
	if !mutual["bob"] || mutual["carol"] {
		t.Fatalf("unexpected mutual flags %v", mutual)
	}

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/c/"+alice.account.ID+"?limit=1&page=2", alice.access, nil))
	expectStatus(t, rec, http.StatusOK)
	out.Data = nil
	decodeBody(t, rec, &out)
	if len(out.Data) != 1 || out.Data[0].Subscriber.Username != "carol" {
		t.Fatalf("unexpected second page %+v", out.Data)
	}

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/c/"+alice.account.ID, bob.access, nil))
	expectStatus(t, rec, http.StatusForbidden)

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/c/"+alice.account.ID+"?page=0", alice.access, nil))
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestListSubscribersPageOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/subscriptions/c/"+alice.account.ID, bob.access, nil))
	expectStatus(t, rec, http.StatusOK)

	huge := strconv.Itoa(math.MaxInt)
	for _, query := range []string{"?page=" + huge, "?page=" + huge + "&limit=1000"} {
		rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/c/"+alice.account.ID+query, alice.access, nil))
		expectStatus(t, rec, http.StatusBadRequest)
		if msg := errorMessage(t, rec); msg != "page is out of range" {
			t.Fatalf("query %s: unexpected message %q", query, msg)
		}
	}

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/u/"+bob.account.ID+"?page="+huge, alice.access, nil))
	expectStatus(t, rec, http.StatusBadRequest)

	// The last addressable page for limit=1 is still served, and is empty.
	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/c/"+alice.account.ID+"?limit=1&page="+huge, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)
	var out struct {
		Data []models.SubscriberEntry `json:"data"`
	}
	decodeBody(t, rec, &out)
	if len(out.Data) != 0 {
		t.Fatalf("expected empty page, got %+v", out.Data)
	}
}

func TestListSubscribedChannelsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signUp(t, "alice")
	bob := env.signUp(t, "bob")
	carol := env.signUp(t, "carol")

	for _, s := range []session{bob, carol} {
		rec := env.do(jsonRequest(t, http.MethodPost, "/api/v1/subscriptions/c/"+alice.account.ID, s.access, nil))
		expectStatus(t, rec, http.StatusOK)
	}

	rec := env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/u/"+bob.account.ID, carol.access, nil))
	expectStatus(t, rec, http.StatusOK)

	var out struct {
		Data []models.SubscribedChannel `json:"data"`
	}
	decodeBody(t, rec, &out)
	if len(out.Data) != 1 || out.Data[0].Channel.Username != "alice" || out.Data[0].CountSubscribers != 2 {
		t.Fatalf("unexpected subscribed channels %+v", out.Data)
	}

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/u/"+alice.account.ID, alice.access, nil))
	expectStatus(t, rec, http.StatusOK)
	if body := rec.Body.String(); !strings.Contains(body, `"data":[]`) {
		t.Fatalf("expected empty data array, got %s", body)
	}

	rec = env.do(jsonRequest(t, http.MethodGet, "/api/v1/subscriptions/u/"+uuid.NewString(), alice.access, nil))
	expectStatus(t, rec, http.StatusNotFound)
}
