package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type recordingDeleter struct {
	keys []string
	err  error
}

func (d *recordingDeleter) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	d.keys = append(d.keys, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, d.err
}

func TestS3StorageDeleteDerivesKeyFromLocation(t *testing.T) {
	deleter := &recordingDeleter{}
	store := &S3Storage{client: deleter, bucket: "media", baseURL: "https://cdn.example.com/media"}

	if got := store.location("avatars/a.png"); got != "https://cdn.example.com/media/avatars/a.png" {
		t.Fatalf("unexpected location %q", got)
	}

	if err := store.Delete(context.Background(), "https://cdn.example.com/media/avatars/a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleter.keys) != 1 || deleter.keys[0] != "avatars/a.png" {
		t.Fatalf("unexpected deleted keys %v", deleter.keys)
	}

	if err := store.Delete(context.Background(), "https://elsewhere.example.com/avatars/a.png"); err == nil {
		t.Fatal("expected foreign location to be rejected")
	}
	if len(deleter.keys) != 1 {
		t.Fatal("foreign location must not reach the bucket")
	}
}

func TestS3StorageDeleteWithoutBaseURL(t *testing.T) {
	deleter := &recordingDeleter{}
	store := &S3Storage{client: deleter, bucket: "media"}

	if err := store.Delete(context.Background(), "/videos/v.mp4"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleter.keys[0] != "videos/v.mp4" {
		t.Fatalf("unexpected key %q", deleter.keys[0])
	}

	if err := store.Delete(context.Background(), "  "); err == nil {
		t.Fatal("expected empty location to be rejected")
	}

	deleter.err = errors.New("access denied")
	if err := store.Delete(context.Background(), "videos/v.mp4"); err == nil {
		t.Fatal("expected client error to surface")
	}
}
