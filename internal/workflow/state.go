package workflow

import (
	"github.com/zombor/label-scan/internal/history"
	"github.com/zombor/label-scan/internal/scanning"
)

// State is the single active view. Only the variants below implement it.
type State interface {
	// Name identifies the view: dashboard, scan, report or history
	Name() string
	isState()
}

// Dashboard is the initial view where a category is chosen
type Dashboard struct{}

// Scan is the acquisition view for one category
type Scan struct {
	Category   scanning.Category `json:"category"`
	HasImage   bool              `json:"has_image"`
	ImageName  string            `json:"image_name,omitempty"`
	ImageMime  string            `json:"image_mime,omitempty"`
	CameraOpen bool              `json:"camera_open"`
	Pending    bool              `json:"pending"`
	Failure    *Failure          `json:"failure,omitempty"`
}

// Report shows one safety report, either fresh or replayed from history
type Report struct {
	Category      scanning.Category     `json:"category"`
	CategoryLabel string                `json:"category_label"`
	Report        scanning.SafetyReport `json:"report"`
	Risk          scanning.Risk         `json:"risk"`
	EntryID       string                `json:"entry_id,omitempty"`
	Replay        bool                  `json:"replay"`
}

// History lists past scans, most recent first
type History struct {
	Entries []history.Entry `json:"entries"`
}

func (Dashboard) Name() string { return "dashboard" }
func (Scan) Name() string      { return "scan" }
func (Report) Name() string    { return "report" }
func (History) Name() string   { return "history" }

func (Dashboard) isState() {}
func (Scan) isState()      {}
func (Report) isState()    {}
func (History) isState()   {}

func reportState(entry history.Entry, replay bool) Report {
	return Report{
		Category:      entry.Category,
		CategoryLabel: entry.CategoryLabel,
		Report:        entry.Report,
		Risk:          scanning.RiskFromScore(entry.Report.SafetyScore),
		EntryID:       entry.ID,
		Replay:        replay,
	}
}
