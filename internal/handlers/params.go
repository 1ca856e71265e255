package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/apperr"
	"github.com/channelhub/backend/internal/auth"
	"github.com/channelhub/backend/internal/graph"
	"github.com/channelhub/backend/internal/media"
	"github.com/channelhub/backend/internal/models"
)

const (
	defaultMaxUploadBytes = 200 << 20
	multipartMemory       = 32 << 20
)

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	return nil
}

// pageParams reads page and limit. Both must be positive integers when
// present; limit is capped at graph.MaxPageLimit. A page whose offset does not
// fit in an int is rejected.
func pageParams(r *http.Request) (graph.Page, error) {
	page, err := positiveQueryInt(r, "page", 1)
	if err != nil {
		return graph.Page{}, err
	}
	limit, err := positiveQueryInt(r, "limit", graph.DefaultPageLimit)
	if err != nil {
		return graph.Page{}, err
	}
	p := graph.Page{Number: 1, Limit: limit}.Normalize()
	if page > graph.LastAddressablePage(p.Limit) {
		return graph.Page{}, apperr.Validation("page is out of range")
	}
	p.Number = page
	return p, nil
}

func positiveQueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.Validation(name + " must be a positive integer")
	}
	return n, nil
}

// pathID validates a UUID path segment before any lookup.
func pathID(r *http.Request, name string) (string, error) {
	raw := strings.TrimSpace(r.PathValue(name))
	if raw == "" {
		return "", apperr.Validation(name + " is missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperr.Validation("invalid " + name)
	}
	return id.String(), nil
}

func currentAccount(r *http.Request) (models.Account, error) {
	account, ok := auth.AccountFromContext(r.Context())
	if !ok {
		return models.Account{}, apperr.Unauthorized("unauthorized request")
	}
	return account, nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("upload exceeds the size limit")
		}
		return apperr.Wrap(apperr.KindValidation, "invalid multipart form", err)
	}
	return nil
}

// formUpload opens the file sent under field. It returns a nil upload when
// the field is absent; the caller closes the returned closer.
func formUpload(r *http.Request, field string) (*media.Upload, io.Closer, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, io.NopCloser(nil), nil
		}
		return nil, nil, apperr.Wrap(apperr.KindValidation, "invalid "+field+" upload", err)
	}
	return &media.Upload{
		Filename:    header.Filename,
		ContentType: uploadContentType(header),
		Body:        file,
	}, file, nil
}

func uploadContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func mediaError(what string, err error) error {
	if errors.Is(err, media.ErrUnsupportedMedia) {
		return apperr.Wrap(apperr.KindValidation, "unsupported "+what+" type", err)
	}
	return apperr.Internal("failed to upload "+what, err)
}
