// Package uploads normalizes inline base64 image payloads into blob-store
// URLs during issue creation.
package uploads

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"time"
)

var dataURIPattern = regexp.MustCompile(`^data:image/([a-zA-Z+]+);base64,(.+)$`)

// ParseImageDataURI extracts the image extension and decoded bytes from a
// data-URI payload. ok is false for anything that is not a base64 image URI.
func ParseImageDataURI(s string) (ext string, data []byte, ok bool) {
	matches := dataURIPattern.FindStringSubmatch(s)
	if len(matches) != 3 {
		return "", nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(matches[2])
	if err != nil {
		return "", nil, false
	}
	return matches[1], decoded, true
}

// FileName generates a collision-resistant object name for an upload.
func FileName(ext string) string {
	return fmt.Sprintf("%d-%d.%s", time.Now().UnixMilli(), rand.Intn(1_000_000_000), ext)
}

// Resolve turns an inline base64 image into a public URL via the uploader.
// Non-data-URI values pass through unchanged, and an upload failure falls
// back to the original value rather than failing issue creation.
func Resolve(ctx context.Context, up Uploader, imageLink string) string {
	ext, data, ok := ParseImageDataURI(imageLink)
	if !ok || up == nil {
		return imageLink
	}

	url, err := up.Upload(ctx, FileName(ext), "image/"+ext, data)
	if err != nil {
		slog.Warn("image upload failed, keeping inline payload", "error", err)
		return imageLink
	}
	return url
}
