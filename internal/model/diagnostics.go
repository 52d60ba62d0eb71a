package model

// SourceStatus summarises how a single source fared during a scrape.
type SourceStatus string

const (
	SourceOK       SourceStatus = "ok"
	SourceDegraded SourceStatus = "degraded" // stopped early, partial results kept
	SourceFailed   SourceStatus = "failed"
)

// ScrapeDiagnostics reports what one model's scrape found.
type ScrapeDiagnostics struct {
	Total        int                     `json:"total"`
	SourceCounts map[Source]int          `json:"source_counts"`
	SourceStatus map[Source]SourceStatus `json:"source_status"`
}

// NewScrapeDiagnostics returns diagnostics with initialised maps.
func NewScrapeDiagnostics() ScrapeDiagnostics {
	return ScrapeDiagnostics{
		SourceCounts: make(map[Source]int),
		SourceStatus: make(map[Source]SourceStatus),
	}
}

// KindCounts tallies outcomes per record kind.
type KindCounts struct {
	Vehicles int64 `json:"vehicles"`
	Listings int64 `json:"listings"`
}

// InsertDiagnostics reports persistence outcomes for one batch of listings.
type InsertDiagnostics struct {
	InsertCounts KindCounts `json:"insert_counts"`
	DupeCounts   KindCounts `json:"dupe_counts"`
	Skipped      int64      `json:"skipped"`
}

// ModelDiagnostics pairs the scrape and insert diagnostics of one model.
type ModelDiagnostics struct {
	Scrape ScrapeDiagnostics `json:"scrape_diagnostics"`
	Insert InsertDiagnostics `json:"insert_diagnostics"`
}

// RunDiagnostics maps model keys to their diagnostics for a collection run.
type RunDiagnostics map[string]ModelDiagnostics

// AugmentDiagnostics reports the outcome of an augmentation batch.
type AugmentDiagnostics struct {
	Total        int            `json:"total"`
	Augmented    int64          `json:"augmented"`
	Skipped      int64          `json:"skipped"`
	Pauses       int64          `json:"pauses"`
	SourceCounts map[Source]int `json:"source_counts"`
}
