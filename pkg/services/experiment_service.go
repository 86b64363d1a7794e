package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/apperrors"
	"github.com/smartflowhq/growth-engine/pkg/models"
	"github.com/smartflowhq/growth-engine/pkg/repositories"
	"github.com/smartflowhq/growth-engine/pkg/stats"
)

// CreateExperimentInput carries the parameters for a new experiment.
// TrafficAllocation may be nil for an equal split across variants.
type CreateExperimentInput struct {
	TenantID            string    `json:"-"`
	Name                string    `json:"name"`
	Description         string    `json:"description"`
	Type                string    `json:"type"`
	VariantNames        []string  `json:"variant_names"`
	VariantDescriptions []string  `json:"variant_descriptions"`
	TrafficAllocation   []float64 `json:"traffic_allocation,omitempty"`
	PrimaryMetric       string    `json:"primary_metric,omitempty"`
	MinimumSampleSize   int       `json:"minimum_sample_size,omitempty"`
	ConfidenceLevel     float64   `json:"confidence_level,omitempty"`
}

// VariantResult is a variant's metrics plus its Wilson confidence interval
// at the experiment's configured confidence level.
type VariantResult struct {
	models.Variant
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
}

// Results is the full analysis bundle for an experiment. It is computed
// on demand and never mutates stored state.
type Results struct {
	Experiment              *models.Experiment `json:"experiment"`
	Variants                []VariantResult    `json:"variants"`
	Winner                  *string            `json:"winner"`
	StatisticalSignificance *float64           `json:"statistical_significance"`
	IsSignificant           bool               `json:"is_significant"`
	SampleSizeMet           bool               `json:"sample_size_met"`
	Recommendations         []string           `json:"recommendations"`
}

// ExperimentService owns the experiment lifecycle, counter recording and
// statistical analysis.
type ExperimentService interface {
	Create(ctx context.Context, input CreateExperimentInput) (*models.Experiment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	List(ctx context.Context, tenantID string, status string) ([]*models.Experiment, error)
	Start(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	Pause(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	RecordImpression(ctx context.Context, id uuid.UUID, variantID string) error
	RecordConversion(ctx context.Context, id uuid.UUID, variantID string, revenue float64) error
	Results(ctx context.Context, id uuid.UUID) (*Results, error)
}

type experimentService struct {
	repo   repositories.ExperimentRepository
	logger *zap.Logger

	// Per-experiment locks serialize load-modify-persist cycles so that
	// concurrent counter recordings for the same experiment are not lost
	// to last-write-wins.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewExperimentService creates a new ExperimentService.
func NewExperimentService(repo repositories.ExperimentRepository, logger *zap.Logger) ExperimentService {
	return &experimentService{
		repo:   repo,
		logger: logger.Named("experiment-service"),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

var _ ExperimentService = (*experimentService)(nil)

func (s *experimentService) lock(id uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *experimentService) Create(ctx context.Context, input CreateExperimentInput) (*models.Experiment, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: experiment name is required", apperrors.ErrValidation)
	}
	if !models.ValidExperimentType(input.Type) {
		return nil, fmt.Errorf("%w: unknown experiment type %q", apperrors.ErrValidation, input.Type)
	}
	if len(input.VariantNames) < 2 {
		return nil, fmt.Errorf("%w: at least 2 variants are required", apperrors.ErrValidation)
	}
	if len(input.VariantDescriptions) != len(input.VariantNames) {
		return nil, fmt.Errorf("%w: variant names and descriptions must have the same length", apperrors.ErrValidation)
	}

	numVariants := len(input.VariantNames)
	allocation := input.TrafficAllocation
	if allocation == nil {
		allocation = make([]float64, numVariants)
		for i := range allocation {
			allocation[i] = 1.0 / float64(numVariants)
		}
	}
	if len(allocation) != numVariants {
		return nil, fmt.Errorf("%w: traffic allocation must have one entry per variant", apperrors.ErrValidation)
	}

	sum := 0.0
	for _, a := range allocation {
		sum += a
	}
	if math.Abs(sum-1.0) > models.AllocationTolerance {
		return nil, fmt.Errorf("%w: traffic allocation must sum to 1.0, got %g", apperrors.ErrValidation, sum)
	}

	variants := make([]models.Variant, numVariants)
	for i := range variants {
		variants[i] = models.Variant{
			ID:                fmt.Sprintf("variant_%d", i),
			Name:              input.VariantNames[i],
			Description:       input.VariantDescriptions[i],
			TrafficAllocation: allocation[i],
		}
	}

	minSampleSize := input.MinimumSampleSize
	if minSampleSize <= 0 {
		minSampleSize = models.DefaultMinimumSampleSize
	}
	confidence := input.ConfidenceLevel
	if confidence <= 0 {
		confidence = models.DefaultConfidenceLevel
	}
	primaryMetric := input.PrimaryMetric
	if primaryMetric == "" {
		primaryMetric = "conversion_rate"
	}

	exp := &models.Experiment{
		ID:                uuid.New(),
		TenantID:          input.TenantID,
		Name:              input.Name,
		Description:       input.Description,
		Type:              input.Type,
		Status:            models.ExperimentStatusDraft,
		Variants:          variants,
		CreatedAt:         time.Now().UTC(),
		PrimaryMetric:     primaryMetric,
		MinimumSampleSize: minSampleSize,
		ConfidenceLevel:   confidence,
	}

	if err := s.repo.Save(ctx, exp); err != nil {
		s.logger.Error("Failed to persist experiment",
			zap.String("experiment_id", exp.ID.String()),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Experiment created",
		zap.String("experiment_id", exp.ID.String()),
		zap.String("tenant_id", exp.TenantID),
		zap.String("type", exp.Type),
		zap.Int("variants", len(exp.Variants)))

	return exp, nil
}

func (s *experimentService) Get(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *experimentService) List(ctx context.Context, tenantID string, status string) ([]*models.Experiment, error) {
	if status != "" && !models.ValidExperimentStatus(status) {
		return nil, fmt.Errorf("%w: unknown status filter %q", apperrors.ErrValidation, status)
	}
	return s.repo.List(ctx, tenantID, status)
}

// Start transitions the experiment to running and stamps the start date.
// Re-invocation overwrites both; the engine trusts the caller on lifecycle
// ordering.
func (s *experimentService) Start(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	unlock := s.lock(id)
	defer unlock()

	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	exp.Status = models.ExperimentStatusRunning
	exp.StartDate = &now

	if err := s.repo.Save(ctx, exp); err != nil {
		return nil, err
	}

	s.logger.Info("Experiment started", zap.String("experiment_id", id.String()))
	return exp, nil
}

func (s *experimentService) Pause(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	unlock := s.lock(id)
	defer unlock()

	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	exp.Status = models.ExperimentStatusPaused

	if err := s.repo.Save(ctx, exp); err != nil {
		return nil, err
	}

	s.logger.Info("Experiment paused", zap.String("experiment_id", id.String()))
	return exp, nil
}

// Complete transitions the experiment to completed, stamps the end date and
// stores the winner determination.
func (s *experimentService) Complete(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	unlock := s.lock(id)
	defer unlock()

	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	exp.Status = models.ExperimentStatusCompleted
	exp.EndDate = &now

	winner, significance := determineWinner(exp)
	exp.Winner = winner
	exp.StatisticalSignificance = significance

	if err := s.repo.Save(ctx, exp); err != nil {
		return nil, err
	}

	s.logger.Info("Experiment completed",
		zap.String("experiment_id", id.String()),
		zap.Stringp("winner", winner),
		zap.Float64p("significance", significance))

	return exp, nil
}

func (s *experimentService) RecordImpression(ctx context.Context, id uuid.UUID, variantID string) error {
	return s.record(ctx, id, variantID, func(v *models.Variant) {
		v.Impressions++
	})
}

func (s *experimentService) RecordConversion(ctx context.Context, id uuid.UUID, variantID string, revenue float64) error {
	return s.record(ctx, id, variantID, func(v *models.Variant) {
		v.Conversions++
		v.Revenue += revenue
	})
}

// record applies a counter mutation under the per-experiment lock. An
// unknown variant id is a deliberate no-op: impression beacons fire from
// client-side snippets and a stale variant id must not break the page.
func (s *experimentService) record(ctx context.Context, id uuid.UUID, variantID string, mutate func(*models.Variant)) error {
	unlock := s.lock(id)
	defer unlock()

	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	variant := exp.FindVariant(variantID)
	if variant == nil {
		s.logger.Debug("Ignoring recording for unknown variant",
			zap.String("experiment_id", id.String()),
			zap.String("variant_id", variantID))
		return nil
	}

	mutate(variant)
	variant.Recalculate()

	return s.repo.Save(ctx, exp)
}

func (s *experimentService) Results(ctx context.Context, id uuid.UUID) (*Results, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	winner, significance := determineWinner(exp)

	variants := make([]VariantResult, len(exp.Variants))
	for i, v := range exp.Variants {
		lower, upper := stats.WilsonInterval(v.Conversions, v.Impressions, exp.ConfidenceLevel)
		variants[i] = VariantResult{Variant: v, CILower: lower, CIUpper: upper}
	}

	return &Results{
		Experiment:              exp,
		Variants:                variants,
		Winner:                  winner,
		StatisticalSignificance: significance,
		IsSignificant:           significance != nil && *significance >= exp.ConfidenceLevel,
		SampleSizeMet:           exp.SampleSizeMet(),
		Recommendations:         recommendations(exp, winner, significance),
	}, nil
}

// determineWinner runs the pairwise chi-squared analysis. Only the first two
// variants are compared; experiments with more variants get the same pairwise
// treatment, which is a documented limitation of the analysis, not an
// oversight to generalize away.
func determineWinner(exp *models.Experiment) (*string, *float64) {
	if len(exp.Variants) < 2 {
		return nil, nil
	}
	if !exp.SampleSizeMet() {
		return nil, nil
	}

	a := exp.Variants[0]
	b := exp.Variants[1]

	chi, ok := stats.ChiSquared2x2(a.Conversions, a.Impressions, b.Conversions, b.Impressions)
	if !ok {
		return nil, nil
	}

	pValue := stats.PValue(chi, 1)
	significance := 1 - pValue

	// Strictly-higher rate wins; a tie goes to the second variant.
	winnerID := b.ID
	if a.ConversionRate > b.ConversionRate {
		winnerID = a.ID
	}

	return &winnerID, &significance
}

// recommendations renders the human-readable guidance attached to results.
func recommendations(exp *models.Experiment, winner *string, significance *float64) []string {
	if !exp.SampleSizeMet() {
		return []string{
			fmt.Sprintf("Continue running the test. Need at least %d impressions per variant for reliable results.",
				exp.MinimumSampleSize),
		}
	}

	var recs []string

	isSignificant := significance != nil && *significance >= exp.ConfidenceLevel
	if isSignificant && winner != nil {
		if w := exp.FindVariant(*winner); w != nil {
			recs = append(recs,
				fmt.Sprintf("%s is the clear winner with %.1f%% confidence. Roll out this variant to 100%% of traffic.",
					w.Name, *significance*100),
				fmt.Sprintf("%s achieved a %.2f%% conversion rate, which is statistically significant.",
					w.Name, w.ConversionRate),
			)
		}
	} else {
		recs = append(recs,
			"No statistically significant winner yet. Consider:",
			"  - Running the test longer to collect more data",
			"  - Increasing traffic to the experiment",
			"  - Testing more dramatic changes between variants",
		)
	}

	hasRevenue := false
	for i := range exp.Variants {
		if exp.Variants[i].Revenue > 0 {
			hasRevenue = true
			break
		}
	}
	if hasRevenue {
		best := &exp.Variants[0]
		for i := range exp.Variants {
			if exp.Variants[i].RevenuePerVisitor > best.RevenuePerVisitor {
				best = &exp.Variants[i]
			}
		}
		recs = append(recs,
			fmt.Sprintf("%s has the highest revenue per visitor ($%.2f).", best.Name, best.RevenuePerVisitor))
	}

	return recs
}
