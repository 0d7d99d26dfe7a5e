// Package imagecodec turns uploaded image bytes into self-contained data URIs
// and enforces the upload constraints checked before any encoding happens.
package imagecodec

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vbonduro/gallery/internal/domain"
)

// MaxUploadSize is the largest accepted image, in bytes.
const MaxUploadSize = 20 << 20

const dataURIPrefix = "data:"

// Validate rejects uploads that are not images or exceed MaxUploadSize.
func Validate(mimeType string, size int64) error {
	if !strings.HasPrefix(mimeType, "image/") {
		return &domain.ValidationError{Message: "please choose an image file (JPG, PNG, GIF, WebP)"}
	}
	if size > MaxUploadSize {
		return &domain.ValidationError{Message: "file too large, maximum is 20MB"}
	}
	return nil
}

// DetectMIME returns the declared content type unless it is missing or the
// generic octet-stream, in which case the type is sniffed from head.
func DetectMIME(declared string, head []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		if i := strings.IndexByte(declared, ';'); i >= 0 {
			declared = strings.TrimSpace(declared[:i])
		}
		return strings.ToLower(declared)
	}
	m := mimetype.Detect(head)
	s := m.String()
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return s
}

// Encode reads r to completion and returns a data URI for mimeType.
// A failed read is reported as domain.ErrRead.
func Encode(ctx context.Context, r io.Reader, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRead, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRead, err)
	}

	var b strings.Builder
	b.Grow(len(dataURIPrefix) + len(mimeType) + len(";base64,") + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(dataURIPrefix)
	b.WriteString(mimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String(), nil
}

// Decode splits a base64 data URI back into its MIME type and bytes.
func Decode(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return "", nil, fmt.Errorf("not a data uri")
	}
	meta, payload, ok := strings.Cut(uri[len(dataURIPrefix):], ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data uri")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data uri is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data uri: %w", err)
	}
	return mimeType, data, nil
}
