package storage

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// MaxListCap is the upper bound on blobs returned by a single List call.
const MaxListCap int32 = 5000

// BlobMeta describes a stored blob without its content.
type BlobMeta struct {
	Key           string    `json:"key"`
	ContentType   string    `json:"content_type"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
	ETag          string    `json:"etag"`
}

// BlobList is one page of a prefix listing. NextMarker is empty on the last page.
type BlobList struct {
	Blobs      []BlobMeta `json:"blobs"`
	NextMarker string     `json:"next_marker,omitempty"`
}

// BlobResult is an open blob stream. The caller must close Body.
type BlobResult struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// ParseMaxResults parses a max_results query value, returning fallback when
// empty and clamping to MaxListCap.
func ParseMaxResults(s string, fallback int32) (int32, error) {
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxResults, s)
	}
	if n > int(MaxListCap) {
		return MaxListCap, nil
	}
	return int32(n), nil
}
