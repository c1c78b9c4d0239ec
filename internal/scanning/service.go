package scanning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/zombor/label-scan/internal/imagesource"
)

// maxResponseSize bounds how much of a service response is read
const maxResponseSize = 1 << 20

// Service implements the Analyzer interface against the remote analysis service
type Service struct {
	baseURL string
	client  *http.Client
}

// NewService creates a new Service client. A zero timeout leaves cancellation to the caller's context.
func NewService(baseURL string, timeout time.Duration) (*Service, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("analysis service url is required")
	}

	return &Service{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Analyze posts the image and category as a multipart form to /analyze
func (s *Service) Analyze(ctx context.Context, img *imagesource.AcquiredImage, category Category) (*SafetyReport, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	body, contentType, err := analysisForm(img, category)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/analyze", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: calling analysis service: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrNetworkFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrNetworkFailure, resp.StatusCode, excerpt(data))
	}

	return parseReport(string(data))
}

// Close is a no-op for the HTTP client
func (s *Service) Close() error {
	return nil
}

func analysisForm(img *imagesource.AcquiredImage, category Category) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := img.Name
	if name == "" {
		name = "label"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", img.MimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("writing file part: %w", err)
	}
	if err := writer.WriteField("category", string(category)); err != nil {
		return nil, "", fmt.Errorf("writing category field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func excerpt(data []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(data))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
