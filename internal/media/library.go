package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/channelhub/backend/internal/logging"
)

// Store persists uploaded media and returns a public location.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// Prober extracts the playback length of a local media file.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Asset describes a stored upload.
type Asset struct {
	Location string
	Duration float64
}

// Library stores uploads and retires the assets they replace.
type Library struct {
	store   Store
	prober  Prober
	janitor *Janitor
	tempDir string
}

// NewLibrary constructs a Library. A nil store makes every upload fail with
// ErrStoreUnavailable.
func NewLibrary(store Store, prober Prober, janitor *Janitor) *Library {
	return &Library{store: store, prober: prober, janitor: janitor}
}

// SaveImage stores an image under folder.
func (l *Library) SaveImage(ctx context.Context, folder string, upload Upload) (Asset, error) {
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return Asset{}, fmt.Errorf("%w: %q is not an image", ErrUnsupportedMedia, upload.ContentType)
	}
	location, err := l.save(ctx, folder, upload, upload.Body)
	if err != nil {
		return Asset{}, err
	}
	return Asset{Location: location}, nil
}

// SaveVideo spools the upload to disk to probe its duration, then stores it
// under folder.
func (l *Library) SaveVideo(ctx context.Context, folder string, upload Upload) (Asset, error) {
	if !strings.HasPrefix(upload.ContentType, "video/") {
		return Asset{}, fmt.Errorf("%w: %q is not a video", ErrUnsupportedMedia, upload.ContentType)
	}
	if l.store == nil {
		return Asset{}, ErrStoreUnavailable
	}
	if l.prober == nil {
		return Asset{}, ErrProberUnavailable
	}

	tmp, err := os.CreateTemp(l.tempDir, "upload-*"+filepath.Ext(upload.Filename))
	if err != nil {
		return Asset{}, fmt.Errorf("spool upload: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, upload.Body); err != nil {
		return Asset{}, fmt.Errorf("spool upload: %w", err)
	}

	duration, err := l.prober.Duration(ctx, tmp.Name())
	if err != nil {
		return Asset{}, err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return Asset{}, fmt.Errorf("rewind upload: %w", err)
	}

	location, err := l.save(ctx, folder, upload, tmp)
	if err != nil {
		return Asset{}, err
	}
	return Asset{Location: location, Duration: duration}, nil
}

// Discard schedules removal of a superseded asset. Scheduling failures are
// logged only.
func (l *Library) Discard(ctx context.Context, location string) {
	if l.janitor == nil || strings.TrimSpace(location) == "" {
		return
	}
	if err := l.janitor.Discard(ctx, location); err != nil {
		logging.FromContext(ctx).Warn("schedule asset cleanup", "location", location, "error", err)
	}
}

func (l *Library) save(ctx context.Context, folder string, upload Upload, body io.Reader) (string, error) {
	if l.store == nil {
		return "", ErrStoreUnavailable
	}
	name := path.Join(folder, uuid.NewString()+strings.ToLower(filepath.Ext(upload.Filename)))
	location, err := l.store.Save(ctx, name, upload.ContentType, body)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return location, nil
}
