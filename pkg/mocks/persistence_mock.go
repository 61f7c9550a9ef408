package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Runs() persistence.RunRepository {
	args := m.Called()

	return args.Get(0).(persistence.RunRepository)
}

func (m *MockPersistence) Campaigns() persistence.CampaignRepository {
	args := m.Called()

	return args.Get(0).(persistence.CampaignRepository)
}

func (m *MockPersistence) Alerts() persistence.AlertRepository {
	args := m.Called()

	return args.Get(0).(persistence.AlertRepository)
}

func (m *MockPersistence) Reports() persistence.ReportRepository {
	args := m.Called()

	return args.Get(0).(persistence.ReportRepository)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockRunRepository is a mock implementation of persistence.RunRepository.
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockRunRepository) SaveRun(ctx context.Context, run *models.Run, expectedVersion int64) error {
	args := m.Called(ctx, run, expectedVersion)

	return args.Error(0)
}

func (m *MockRunRepository) RunByID(ctx context.Context, runID string) (*models.Run, error) {
	args := m.Called(ctx, runID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Run), args.Error(1)
}

func (m *MockRunRepository) ActiveRunByCampaign(ctx context.Context, campaignID string) (*models.Run, error) {
	args := m.Called(ctx, campaignID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Run), args.Error(1)
}

func (m *MockRunRepository) ActiveRuns(ctx context.Context) ([]*models.Run, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Run), args.Error(1)
}

func (m *MockRunRepository) RunsByCampaign(ctx context.Context, campaignID string) ([]*models.Run, error) {
	args := m.Called(ctx, campaignID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Run), args.Error(1)
}

// MockCampaignRepository is a mock implementation of
// persistence.CampaignRepository.
type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) SaveCampaign(ctx context.Context, campaign *models.Campaign) error {
	args := m.Called(ctx, campaign)

	return args.Error(0)
}

func (m *MockCampaignRepository) CampaignByID(ctx context.Context, campaignID string) (*models.Campaign, error) {
	args := m.Called(ctx, campaignID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Campaigns(ctx context.Context) ([]*models.Campaign, error) {
	args := m.Called(ctx)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Campaign), args.Error(1)
}

// MockAlertRepository is a mock implementation of persistence.AlertRepository.
type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) SaveAlert(ctx context.Context, alert *models.Alert) error {
	args := m.Called(ctx, alert)

	return args.Error(0)
}

func (m *MockAlertRepository) AlertByID(ctx context.Context, alertID string) (*models.Alert, error) {
	args := m.Called(ctx, alertID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockAlertRepository) AlertsByCampaign(ctx context.Context, campaignID string, status *models.AlertStatus) ([]*models.Alert, error) {
	args := m.Called(ctx, campaignID, status)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Alert), args.Error(1)
}

// MockReportRepository is a mock implementation of
// persistence.ReportRepository.
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) SaveReport(ctx context.Context, artifact *models.ReportArtifact) error {
	args := m.Called(ctx, artifact)

	return args.Error(0)
}

func (m *MockReportRepository) LatestVersion(ctx context.Context, campaignID, period string) (int, error) {
	args := m.Called(ctx, campaignID, period)

	return args.Int(0), args.Error(1)
}

func (m *MockReportRepository) ReportsByCampaign(ctx context.Context, campaignID string) ([]*models.ReportArtifact, error) {
	args := m.Called(ctx, campaignID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ReportArtifact), args.Error(1)
}

// MockAlertRaiser is a mock implementation of protocol.AlertRaiser.
type MockAlertRaiser struct {
	mock.Mock
}

func (m *MockAlertRaiser) Raise(ctx context.Context, campaignID string, category models.AlertCategory, severity models.AlertSeverity, message string) (string, error) {
	args := m.Called(ctx, campaignID, category, severity, message)

	return args.String(0), args.Error(1)
}
