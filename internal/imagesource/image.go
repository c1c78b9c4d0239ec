package imagesource

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	// ErrCancelled is returned by a Picker when the user closed the picker without choosing a file
	ErrCancelled = errors.New("image selection cancelled")

	// ErrDeviceUnavailable is returned when the camera is denied, missing or already claimed
	ErrDeviceUnavailable = errors.New("camera device unavailable")
)

// AcquiredImage is a label photo or upload ready for submission
type AcquiredImage struct {
	Name     string
	Data     []byte
	MimeType string
}

// Validate checks that the image carries data and a MIME type
func (a *AcquiredImage) Validate() error {
	if a == nil || len(a.Data) == 0 {
		return fmt.Errorf("image has no data")
	}
	if a.MimeType == "" {
		return fmt.Errorf("image %q has no mime type", a.Name)
	}
	return nil
}

// DetectMimeType resolves the MIME type of an image from its declared type, its
// file extension and finally its content
func DetectMimeType(name string, declared string, data []byte) string {
	mimeType := strings.ToLower(strings.TrimSpace(declared))
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	}

	// DetectContentType never returns an empty string
	sniffed := http.DetectContentType(data)
	if i := strings.Index(sniffed, ";"); i != -1 {
		sniffed = sniffed[:i]
	}
	return sniffed
}
