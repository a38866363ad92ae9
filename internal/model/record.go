package model

import "time"

// QualityTier is a coarse categorical quality label derived from confidence.
type QualityTier string

const (
	TierExcellent     QualityTier = "EXCELLENT"
	TierGood          QualityTier = "GOOD"
	TierAcceptable    QualityTier = "ACCEPTABLE"
	TierReviewNeeded  QualityTier = "REVIEW_NEEDED"
	TierFailed        QualityTier = "FAILED"
)

// tierRank orders tiers worst-to-best for regression/improvement detection.
var tierRank = map[QualityTier]int{
	TierFailed:       0,
	TierReviewNeeded: 1,
	TierAcceptable:   2,
	TierGood:         3,
	TierExcellent:    4,
}

// Rank returns the tier's ordinal, worst first. Unknown tiers rank lowest.
func (t QualityTier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return -1
}

// ReviewPriority is an orthogonal label driving the human review queue.
type ReviewPriority string

const (
	PriorityNone     ReviewPriority = "NONE"
	PriorityLow      ReviewPriority = "LOW"
	PriorityMedium   ReviewPriority = "MEDIUM"
	PriorityHigh     ReviewPriority = "HIGH"
	PriorityCritical ReviewPriority = "CRITICAL"
)

var priorityRank = map[ReviewPriority]int{
	PriorityNone:     0,
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// Rank returns the priority's ordinal, lowest first.
func (p ReviewPriority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return -1
}

// GeocodeRecord is the unit of cached state: one version of one ticket's
// geocoding result.
type GeocodeRecord struct {
	TicketNumber string `json:"ticket_number"`
	Version      int    `json:"version"`
	GeocodeKey   string `json:"geocode_key"`

	// Input snapshot.
	Street       string `json:"street,omitempty"`
	Intersection string `json:"intersection,omitempty"`
	City         string `json:"city,omitempty"`
	County       string `json:"county,omitempty"`
	TicketType   string `json:"ticket_type,omitempty"`
	Duration     string `json:"duration,omitempty"`
	WorkType     string `json:"work_type,omitempty"`
	Excavator    string `json:"excavator,omitempty"`

	// Result.
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	Method       string   `json:"method,omitempty"`
	Approach     string   `json:"approach,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`

	// Quality.
	QualityTier     QualityTier    `json:"quality_tier"`
	ReviewPriority  ReviewPriority `json:"review_priority"`
	ValidationFlags []string       `json:"validation_flags,omitempty"`

	// Lineage.
	Supersedes     *string   `json:"supersedes,omitempty"`
	IsCurrent      bool      `json:"is_current"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedByStage string    `json:"created_by_stage"`

	// Lock.
	Locked     bool       `json:"locked"`
	LockReason string     `json:"lock_reason,omitempty"`
	LockedAt   *time.Time `json:"locked_at,omitempty"`
	LockedBy   string     `json:"locked_by,omitempty"`

	// Extensible bag — stages append, never overwrite.
	Metadata map[string]any `json:"metadata,omitempty"`

	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// HasCoordinates reports whether the record carries a result point.
func (r *GeocodeRecord) HasCoordinates() bool {
	return r != nil && r.Latitude != nil && r.Longitude != nil
}

// SetMetadata appends a key to the metadata bag without overwriting an
// existing entry — matching the "stages append, never overwrite" rule.
func (r *GeocodeRecord) SetMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	if _, exists := r.Metadata[key]; exists {
		return
	}
	r.Metadata[key] = value
}

// NewFailedRecord synthesizes a FAILED record for a ticket that a stage
// could not process, bearing the error's message as reasoning.
func NewFailedRecord(t Ticket, stageID string, cause error) *GeocodeRecord {
	rec := &GeocodeRecord{
		TicketNumber: t.TicketNumber,
		Street:       t.Street,
		Intersection: t.Intersection,
		City:         t.City,
		County:       t.County,
		TicketType:   t.TicketType,
		Duration:     t.Duration,
		WorkType:     t.WorkType,
		Excavator:    t.Excavator,
		Method:       stageID,
		ErrorMessage: cause.Error(),
		Reasoning:    "stage failed: " + cause.Error(),
	}
	zero := 0.0
	rec.Confidence = &zero
	return rec
}
