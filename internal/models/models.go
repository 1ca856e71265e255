package models

import (
	"strings"
	"time"
)

// Account represents a registered user, which doubles as a channel.
type Account struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	PasswordHash string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of the account without credential material.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	a.RefreshToken = ""
	return a
}

// Summary returns the public fields shown in listings.
func (a Account) Summary() AccountSummary {
	return AccountSummary{
		ID:       a.ID,
		Username: a.Username,
		FullName: a.FullName,
		Avatar:   a.Avatar,
	}
}

// AccountSummary is the projection of an account embedded in graph listings.
type AccountSummary struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Avatar   string `json:"avatar"`
}

// Subscription is a directed edge from a subscriber to a channel.
type Subscription struct {
	ID           string    `json:"_id"`
	SubscriberID string    `json:"subscriber"`
	ChannelID    string    `json:"channel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubscriberEntry is one row of a channel's subscriber listing.
type SubscriberEntry struct {
	Subscriber           AccountSummary `json:"subscriber"`
	IsMutuallySubscribed bool           `json:"isMutuallySubscribed"`
}

// SubscribedChannel is one row of the channels an account follows.
type SubscribedChannel struct {
	Channel          AccountSummary `json:"channel"`
	CountSubscribers int64          `json:"countSubscribers"`
}

// ChannelStats aggregates the relationship counts for one channel.
type ChannelStats struct {
	SubscriberCount    int64
	SubscribedToCount  int64
	IsViewerSubscribed bool
}

// ChannelProfile is the public view of a channel.
type ChannelProfile struct {
	ID                 string    `json:"_id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	FullName           string    `json:"fullName"`
	Avatar             string    `json:"avatar"`
	CoverImage         string    `json:"coverImage"`
	CreatedAt          time.Time `json:"createdAt"`
	SubscriberCount    int64     `json:"subscribersCount"`
	SubscribedToCount  int64     `json:"channelsSubscribedToCount"`
	IsViewerSubscribed bool      `json:"isSubscribed"`
}

// ToggleResult reports the state of an edge after a toggle.
type ToggleResult struct {
	Subscribed   bool          `json:"subscribed"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Video is a media record owned by one account.
type Video struct {
	ID          string    `json:"_id"`
	OwnerID     string    `json:"owner"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	IsPublished bool      `json:"isPublished"`
	Views       int64     `json:"views"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WatchHistoryEntry is a watched video joined with its owner.
type WatchHistoryEntry struct {
	Video
	Owner     AccountSummary `json:"ownerDetails"`
	WatchedAt time.Time      `json:"watchedAt"`
}

// VideoFilter narrows a video listing.
type VideoFilter struct {
	OwnerID  string
	Query    string
	SortBy   string
	Desc     bool
	Offset   int
	Limit    int
	OnlyLive bool
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// NormalizeHandle canonicalises usernames and emails for storage and lookup.
func NormalizeHandle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
