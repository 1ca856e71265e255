package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/auth"
	"github.com/channelhub/backend/internal/logging"
	"github.com/channelhub/backend/internal/middleware"
	"github.com/channelhub/backend/internal/models"
	"github.com/channelhub/backend/internal/response"
)

// RefreshTokenCookie carries the refresh token for browser clients.
const RefreshTokenCookie = "refreshToken"

const (
	avatarFolder = "avatars"
	coverFolder  = "covers"
)

// AuthHandler implements the account session endpoints.
type AuthHandler struct {
	Sessions       SessionService
	Media          MediaLibrary
	CookieSecure   bool
	MaxUploadBytes int64
}

// Register handles POST /api/v1/users/register. Credentials are validated
// before any file is uploaded.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := parseMultipart(w, r, h.MaxUploadBytes); err != nil {
		response.Error(ctx, w, err)
		return
	}

	reg := auth.Registration{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Password: r.FormValue("password"),
	}
	reg.Normalize()
	if err := reg.ValidateCredentials(); err != nil {
		response.Error(ctx, w, err)
		return
	}

	avatar, avatarFile, err := formUpload(r, "avatar")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	defer avatarFile.Close()
	if avatar == nil {
		response.Error(ctx, w, apperr.Validation("avatar file is required"))
		return
	}

	cover, coverFile, err := formUpload(r, "coverImage")
	if err != nil {
		response.Error(ctx, w, err)
		return
	}
	defer coverFile.Close()

	avatarAsset, err := h.Media.SaveImage(ctx, avatarFolder, *avatar)
	if err != nil {
		response.Error(ctx, w, mediaError("avatar", err))
		return
	}
	reg.Avatar = avatarAsset.Location

	if cover != nil {
		coverAsset, err := h.Media.SaveImage(ctx, coverFolder, *cover)
		if err != nil {
			h.Media.Discard(ctx, avatarAsset.Location)
			response.Error(ctx, w, mediaError("cover image", err))
			return
		}
		reg.CoverImage = coverAsset.Location
	}

	account, err := h.Sessions.Register(ctx, reg)
	if err != nil {
		h.Media.Discard(ctx, reg.Avatar)
		h.Media.Discard(ctx, reg.CoverImage)
		response.Error(ctx, w, err)
		return
	}

	logging.FromContext(ctx).Info("account registered", "accountId", account.ID)
	response.Write(ctx, w, http.StatusCreated, account, "User registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	identifier := req.Email
	if strings.TrimSpace(identifier) == "" {
		identifier = req.Username
	}

	result, err := h.Sessions.Login(ctx, identifier, req.Password)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	h.setSessionCookies(w, result.Tokens)
	response.Write(ctx, w, http.StatusOK, loginResponse{
		User:         result.Account,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Refresh handles POST /api/v1/users/refresh-token. The token is read from
// the refresh cookie, falling back to the JSON body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	presented := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		presented = strings.TrimSpace(cookie.Value)
	}
	if presented == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			response.Error(ctx, w, err)
			return
		}
		presented = strings.TrimSpace(req.RefreshToken)
	}

	tokens, err := h.Sessions.Refresh(ctx, presented)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	h.setSessionCookies(w, tokens)
	response.Write(ctx, w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}

// Logout handles POST /api/v1/users/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := h.Sessions.Logout(ctx, account.ID); err != nil {
		response.Error(ctx, w, err)
		return
	}

	h.clearSessionCookies(w)
	response.Write(ctx, w, http.StatusOK, struct{}{}, "User logged out")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, err := currentAccount(r)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(ctx, w, err)
		return
	}

	if err := h.Sessions.ChangePassword(ctx, account.ID, req.OldPassword, req.NewPassword); err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Write(ctx, w, http.StatusOK, struct{}{}, "Password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		response.Error(r.Context(), w, err)
		return
	}
	response.Write(r.Context(), w, http.StatusOK, account, "User fetched successfully")
}

func (h AuthHandler) setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, h.Sessions.AccessTTL()))
	http.SetCookie(w, h.cookie(RefreshTokenCookie, tokens.RefreshToken, h.Sessions.RefreshTTL()))
}

func (h AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type loginResponse struct {
	User         models.Account `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
