package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"

	"github.com/zombor/label-scan/internal/imagesource"
)

// toPNG normalizes an acquired image to PNG for the model backends.
// Phone uploads arrive as HEIC, JPEG or occasionally a PDF scan of the label.
// Every failure wraps ErrUnreadableImage.
func toPNG(img *imagesource.AcquiredImage) ([]byte, error) {
	data, err := convertPNG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableImage, err)
	}
	return data, nil
}

func convertPNG(img *imagesource.AcquiredImage) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	mimeType := strings.ToLower(strings.TrimSpace(img.MimeType))

	var (
		decoded image.Image
		err     error
	)
	switch {
	case mimeType == "image/png" && !isHEIC(img.Data):
		return img.Data, nil
	case mimeType == "application/pdf":
		decoded, err = renderFirstPage(img.Data)
	case isHEIC(img.Data) || strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif"):
		decoded, err = heic.Decode(bytes.NewReader(img.Data))
		if err != nil {
			err = fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	default:
		decoded, _, err = image.Decode(bytes.NewReader(img.Data))
		if err != nil {
			err = fmt.Errorf("unsupported image format %q: %w", mimeType, err)
		}
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func renderFirstPage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	page, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return page, nil
}

// isHEIC checks for an ftyp box with a HEIC-family brand
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
