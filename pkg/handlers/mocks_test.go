package handlers

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/apperrors"
	"github.com/smartflowhq/growth-engine/pkg/auth"
	"github.com/smartflowhq/growth-engine/pkg/config"
	"github.com/smartflowhq/growth-engine/pkg/models"
	"github.com/smartflowhq/growth-engine/pkg/services"
)

// testAuthMW runs with verification disabled so tests authenticate with a
// bare X-Tenant-ID header.
func testAuthMW() *auth.Middleware {
	return auth.NewMiddleware(config.AuthConfig{EnableVerification: false}, zap.NewNop())
}

// mockExperimentService is a hand-rolled ExperimentService with per-method
// stubs. Unset stubs return ErrNotFound.
type mockExperimentService struct {
	createFn  func(ctx context.Context, input services.CreateExperimentInput) (*models.Experiment, error)
	getFn     func(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	listFn    func(ctx context.Context, tenantID, status string) ([]*models.Experiment, error)
	startFn   func(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	resultsFn func(ctx context.Context, id uuid.UUID) (*services.Results, error)

	recordedImpressions []string
	recordedConversions []string
	recordedRevenue     []float64
	recordErr           error
}

var _ services.ExperimentService = (*mockExperimentService)(nil)

func (m *mockExperimentService) Create(ctx context.Context, input services.CreateExperimentInput) (*models.Experiment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, input)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockExperimentService) Get(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockExperimentService) List(ctx context.Context, tenantID, status string) ([]*models.Experiment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, tenantID, status)
	}
	return nil, nil
}

func (m *mockExperimentService) Start(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	if m.startFn != nil {
		return m.startFn(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockExperimentService) Pause(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	return m.Start(ctx, id)
}

func (m *mockExperimentService) Complete(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	return m.Start(ctx, id)
}

func (m *mockExperimentService) RecordImpression(_ context.Context, _ uuid.UUID, variantID string) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recordedImpressions = append(m.recordedImpressions, variantID)
	return nil
}

func (m *mockExperimentService) RecordConversion(_ context.Context, _ uuid.UUID, variantID string, revenue float64) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.recordedConversions = append(m.recordedConversions, variantID)
	m.recordedRevenue = append(m.recordedRevenue, revenue)
	return nil
}

func (m *mockExperimentService) Results(ctx context.Context, id uuid.UUID) (*services.Results, error) {
	if m.resultsFn != nil {
		return m.resultsFn(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

// mockSettingsRepo backs the settings handler tests.
type mockSettingsRepo struct {
	byTenant map[string]*models.NotificationSettings
	getErr   error
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{byTenant: make(map[string]*models.NotificationSettings)}
}

func (m *mockSettingsRepo) GetOrCreate(_ context.Context, tenantID string) (*models.NotificationSettings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if s, ok := m.byTenant[tenantID]; ok {
		return s, nil
	}
	s := models.DefaultNotificationSettings(tenantID)
	m.byTenant[tenantID] = s
	return s, nil
}

func (m *mockSettingsRepo) Update(_ context.Context, settings *models.NotificationSettings) error {
	m.byTenant[settings.TenantID] = settings
	return nil
}
