package imagesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Picker selects an existing image, the "choose from gallery" half of ImageSource
type Picker interface {
	// Pick returns the chosen image or ErrCancelled
	Pick(ctx context.Context) (*AcquiredImage, error)
}

// FilePicker picks an image from the local filesystem
type FilePicker struct {
	Path string
}

// Pick reads the file at Path. An empty path counts as a cancelled pick.
func (p FilePicker) Pick(ctx context.Context) (*AcquiredImage, error) {
	if p.Path == "" {
		return nil, ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrCancelled
	}

	name := filepath.Base(p.Path)
	return &AcquiredImage{
		Name:     name,
		Data:     data,
		MimeType: DetectMimeType(name, "", data),
	}, nil
}

// UploadPicker wraps a file the view has already received from the user
type UploadPicker struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Pick returns the uploaded file, or ErrCancelled when the upload was empty
func (p UploadPicker) Pick(ctx context.Context) (*AcquiredImage, error) {
	if len(p.Data) == 0 {
		return nil, ErrCancelled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := make([]byte, len(p.Data))
	copy(data, p.Data)

	return &AcquiredImage{
		Name:     p.Filename,
		Data:     data,
		MimeType: DetectMimeType(p.Filename, p.ContentType, data),
	}, nil
}
