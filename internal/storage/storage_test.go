package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFileStoreUpload(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	url, err := store.Upload(context.Background(), "slips/u1/abc.png", pngHeader, "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "http://localhost:8080/static/slips/u1/abc.png" {
		t.Fatalf("url = %q", url)
	}
	got, err := os.ReadFile(filepath.Join(root, "slips", "u1", "abc.png"))
	if err != nil || !bytes.Equal(got, pngHeader) {
		t.Fatalf("stored bytes mismatch: %v", err)
	}
}

func TestFileStoreIsWriteOnce(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Upload(context.Background(), "slips/a.png", pngHeader, "image/png"); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if _, err := store.Upload(context.Background(), "slips/a.png", pngHeader, "image/png"); !errors.Is(err, ErrObjectExists) {
		t.Fatalf("second upload: expected ErrObjectExists, got %v", err)
	}
}

func TestSanitizeKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "..", "../etc/passwd", "  ", "slips/../../x", "/"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
	got, err := sanitizeKey("/slips//u1/./a.png")
	if err != nil || got != "slips/u1/a.png" {
		t.Fatalf("sanitizeKey = %q, %v", got, err)
	}
}

func TestDetectSlipType(t *testing.T) {
	ct, ext, err := DetectSlipType(pngHeader)
	if err != nil || ct != "image/png" || ext != ".png" {
		t.Fatalf("png: %q %q %v", ct, ext, err)
	}
	ct, ext, err = DetectSlipType([]byte("%PDF-1.7\n"))
	if err != nil || ext != ".pdf" {
		t.Fatalf("pdf: %q %q %v", ct, ext, err)
	}
	if _, _, err := DetectSlipType([]byte("plain text slip")); !errors.Is(err, ErrUnsupportedContent) {
		t.Fatalf("expected ErrUnsupportedContent, got %v", err)
	}
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), Options{Driver: "memory", BaseURL: "https://cdn.guru.lk"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	url, err := store.Upload(context.Background(), "slips/a.pdf", []byte("%PDF"), "application/pdf")
	if err != nil || url != "https://cdn.guru.lk/slips/a.pdf" {
		t.Fatalf("Upload = %q, %v", url, err)
	}
	if _, err := Open(context.Background(), Options{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestS3StoreUpload(t *testing.T) {
	var gotPath, gotType string
	client := s3.New(s3.Options{
		Region: "ap-south-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}, nil
		}),
		BaseEndpoint: aws.String("https://minio.local"),
		UsePathStyle: true,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotPath = r.URL.Path
			gotType = r.Header.Get("Content-Type")
			_, _ = io.Copy(io.Discard, r.Body)
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("")), Header: http.Header{"Etag": {"\"etag\""}}}, nil
		})},
	})
	cfg := S3Config{Bucket: "slips", Endpoint: "https://minio.local", PathStyle: true}
	store := newS3StoreWithClient(client, cfg, "ap-south-1")

	url, err := store.Upload(context.Background(), "slips/u1/a.png", pngHeader, "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotPath != "/slips/slips/u1/a.png" || gotType != "image/png" {
		t.Fatalf("request path=%q type=%q", gotPath, gotType)
	}
	if url != "https://minio.local/slips/slips/u1/a.png" {
		t.Fatalf("url = %q", url)
	}
}

func TestObjectBaseURL(t *testing.T) {
	if got := objectBaseURL(S3Config{Bucket: "b"}, "ap-south-1"); got != "https://b.s3.ap-south-1.amazonaws.com" {
		t.Fatalf("aws url = %q", got)
	}
	if got := objectBaseURL(S3Config{Bucket: "b", Endpoint: "http://minio:9000"}, "x"); got != "http://b.minio:9000" {
		t.Fatalf("virtual host url = %q", got)
	}
}
