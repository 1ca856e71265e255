package handlers

import (
	"net/http"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/response"
)

// SubscriptionHandler exposes the subscription graph.
type SubscriptionHandler struct {
	Graph GraphService
}

// Toggle handles POST /api/v1/subscriptions/c/{channelID}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	channelID, err := pathID(r, "channelID")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	result, err := h.Graph.Toggle(ctx, account.ID, channelID)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	message := "Unsubscribed successfully"
	if result.Subscribed {
		message = "Subscribed successfully"
	}
	response.Write(ctx, w, http.StatusOK, result, message)
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelID}. Only the
// channel owner may list its subscribers.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	channelID, err := pathID(r, "channelID")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	page, err := pageParams(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if channelID != account.ID {
		response.Error(ctx, w, apperr.Forbidden("only the channel owner can list its subscribers"))
		return
	}

	subscribers, err := h.Graph.ListSubscribers(ctx, channelID, page)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, subscribers, "Subscribers fetched successfully")
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberID}.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, err := currentAccount(r); err != nil {
		response.Error(ctx, w, err)
		return
	}

	subscriberID, err := pathID(r, "subscriberID")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	page, err := pageParams(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	channels, err := h.Graph.ListSubscribedChannels(ctx, subscriberID, page)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, channels, "Subscribed channels fetched successfully")
}
