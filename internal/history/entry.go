package history

import (
	"time"

	"github.com/zombor/label-scan/internal/scanning"
)

// Entry is a persisted summary plus the full report of one past scan
type Entry struct {
	ID            string                `json:"id"`
	Category      scanning.Category     `json:"category"`
	CategoryLabel string                `json:"category_label"`
	RiskLevel     scanning.Risk         `json:"risk_level"`
	Score         int                   `json:"score"`
	DateCreated   time.Time             `json:"date_created"`
	Report        scanning.SafetyReport `json:"report"`
}

// NewEntry builds the entry recorded when an analysis succeeds
func NewEntry(id string, category scanning.Category, report scanning.SafetyReport, created time.Time) Entry {
	return Entry{
		ID:            id,
		Category:      category,
		CategoryLabel: category.Label(),
		RiskLevel:     report.Risk(),
		Score:         report.SafetyScore,
		DateCreated:   created.UTC(),
		Report:        report,
	}
}
