package models

import (
	"time"

	"github.com/google/uuid"
)

// Experiment lifecycle states.
const (
	ExperimentStatusDraft     = "draft"
	ExperimentStatusRunning   = "running"
	ExperimentStatusPaused    = "paused"
	ExperimentStatusCompleted = "completed"
	ExperimentStatusArchived  = "archived"
)

// Experiment categories.
const (
	ExperimentTypeEmailSubject = "email_subject"
	ExperimentTypeEmailContent = "email_content"
	ExperimentTypeLandingPage  = "landing_page"
	ExperimentTypeCTAButton    = "cta_button"
	ExperimentTypePricingPage  = "pricing_page"
	ExperimentTypeAdCreative   = "ad_creative"
	ExperimentTypeSocialPost   = "social_post"
	ExperimentTypeCustom       = "custom"
)

// Defaults applied at experiment creation.
const (
	DefaultMinimumSampleSize = 100
	DefaultConfidenceLevel   = 0.95
)

// AllocationTolerance is how far the variant traffic allocations may drift
// from summing to exactly 1.0 before creation is rejected.
const AllocationTolerance = 0.001

// ValidExperimentStatus reports whether s is a known lifecycle state.
func ValidExperimentStatus(s string) bool {
	switch s {
	case ExperimentStatusDraft, ExperimentStatusRunning, ExperimentStatusPaused,
		ExperimentStatusCompleted, ExperimentStatusArchived:
		return true
	}
	return false
}

// ValidExperimentType reports whether t is a known experiment category.
func ValidExperimentType(t string) bool {
	switch t {
	case ExperimentTypeEmailSubject, ExperimentTypeEmailContent, ExperimentTypeLandingPage,
		ExperimentTypeCTAButton, ExperimentTypePricingPage, ExperimentTypeAdCreative,
		ExperimentTypeSocialPost, ExperimentTypeCustom:
		return true
	}
	return false
}

// Variant is one tested alternative within an experiment. Variants are
// embedded in their experiment record and are never addressed independently
// at the storage layer.
type Variant struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	TrafficAllocation float64 `json:"traffic_allocation"`

	Impressions int     `json:"impressions"`
	Conversions int     `json:"conversions"`
	Revenue     float64 `json:"revenue"`

	// Derived from the counters above; recomputed on every mutation.
	ConversionRate    float64 `json:"conversion_rate"`     // percent
	RevenuePerVisitor float64 `json:"revenue_per_visitor"` // currency units
}

// Recalculate refreshes the derived metrics from the raw counters.
// Both derived fields are zero when there are no impressions.
func (v *Variant) Recalculate() {
	if v.Impressions > 0 {
		v.ConversionRate = float64(v.Conversions) / float64(v.Impressions) * 100
		v.RevenuePerVisitor = v.Revenue / float64(v.Impressions)
	} else {
		v.ConversionRate = 0
		v.RevenuePerVisitor = 0
	}
}

// Experiment is an A/B test. Stored in growth_experiments, one row per
// experiment with the variant list embedded as JSONB.
type Experiment struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`

	Variants []Variant `json:"variants"`

	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	PrimaryMetric     string  `json:"primary_metric"`
	MinimumSampleSize int     `json:"minimum_sample_size"`
	ConfidenceLevel   float64 `json:"confidence_level"`

	// Set by the completion algorithm; nil until then.
	Winner                  *string  `json:"winner,omitempty"`
	StatisticalSignificance *float64 `json:"statistical_significance,omitempty"`
}

// FindVariant returns the variant with the given id, or nil.
func (e *Experiment) FindVariant(variantID string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == variantID {
			return &e.Variants[i]
		}
	}
	return nil
}

// SampleSizeMet reports whether every variant has reached the experiment's
// minimum sample size.
func (e *Experiment) SampleSizeMet() bool {
	for i := range e.Variants {
		if e.Variants[i].Impressions < e.MinimumSampleSize {
			return false
		}
	}
	return true
}
