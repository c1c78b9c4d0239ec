package scanning

import (
	"context"

	"github.com/zombor/label-scan/internal/imagesource"
)

// Analyzer defines the interface for ingredient-safety analysis
type Analyzer interface {
	// Analyze submits a label image for the given category and returns the safety report.
	// It makes a single attempt and fails with ErrNetworkFailure or ErrMalformedResponse.
	Analyze(ctx context.Context, img *imagesource.AcquiredImage, category Category) (*SafetyReport, error)
	// Close closes the analyzer and releases resources
	Close() error
}
