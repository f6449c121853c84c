package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
)

// BlobStore persists slip images and returns a URL operators can open.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ErrUnsupportedContent is returned for uploads that are not an image or PDF.
var ErrUnsupportedContent = errors.New("storage: unsupported content type")

// MaxSlipBytes bounds a single slip upload.
const MaxSlipBytes = 8 << 20

var slipExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// DetectSlipType sniffs data and returns its content type and file extension.
func DetectSlipType(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: empty upload", ErrUnsupportedContent)
	}
	if len(data) > MaxSlipBytes {
		return "", "", fmt.Errorf("%w: upload exceeds %d bytes", ErrUnsupportedContent, MaxSlipBytes)
	}
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ext, ok := slipExtensions[ct]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedContent, ct)
	}
	return ct, ext, nil
}

// Options selects and configures a BlobStore.
type Options struct {
	Driver    string
	FSRoot    string
	BaseURL   string
	S3Bucket  string
	S3Region  string
	S3Server  string
	PathStyle bool
}

// Open constructs the store named by opts.Driver (fs, s3 or memory).
func Open(ctx context.Context, opts Options) (BlobStore, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "fs":
		return NewFileStore(opts.FSRoot, opts.BaseURL)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:    opts.S3Bucket,
			Region:    opts.S3Region,
			Endpoint:  opts.S3Server,
			PathStyle: opts.PathStyle,
		})
	case "memory":
		return NewMemoryStore(opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", opts.Driver)
	}
}

func joinURL(base, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "/" + key
	}
	return base + "/" + key
}

// sanitizeKey normalizes a key to a relative slash path inside the store.
func sanitizeKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || strings.HasPrefix(key, "..") || strings.Contains(key, "/../") || strings.HasSuffix(key, "/..") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
