package file

import (
	"testing"
	"time"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())

	if err := p.HealthCheck(t.Context()); err != nil {
		t.Errorf("Expected health check to pass: %v", err)
	}

	missing := NewPersistence("/nonexistent/adflow-test")
	if err := missing.HealthCheck(t.Context()); err == nil {
		t.Error("Expected health check to fail for a missing root")
	}
}

func TestPersistence_StripsFileScheme(t *testing.T) {
	root := t.TempDir()
	p := NewPersistence("file://" + root)

	if err := p.HealthCheck(t.Context()); err != nil {
		t.Errorf("Expected the file:// prefix to be stripped: %v", err)
	}
}

func TestCampaignRepository_SaveAndList(t *testing.T) {
	repo := NewCampaignRepository(t.TempDir())

	campaign := &models.Campaign{
		ID:          "camp-1",
		Name:        "Spring Sale",
		Status:      models.CampaignStatusActive,
		Budget:      7000,
		DailyBudget: 1000,
	}

	if err := repo.SaveCampaign(t.Context(), campaign); err != nil {
		t.Fatalf("SaveCampaign failed: %v", err)
	}

	stored, err := repo.CampaignByID(t.Context(), "camp-1")
	if err != nil {
		t.Fatalf("CampaignByID failed: %v", err)
	}

	if stored.Name != "Spring Sale" {
		t.Errorf("Expected stored campaign name, got %q", stored.Name)
	}

	// Save is an upsert.
	campaign.Status = models.CampaignStatusPaused
	if err := repo.SaveCampaign(t.Context(), campaign); err != nil {
		t.Fatalf("SaveCampaign failed: %v", err)
	}

	all, err := repo.Campaigns(t.Context())
	if err != nil {
		t.Fatalf("Campaigns failed: %v", err)
	}

	if len(all) != 1 || all[0].Status != models.CampaignStatusPaused {
		t.Errorf("Expected one paused campaign, got %+v", all)
	}
}

func TestCampaignRepository_NotFound(t *testing.T) {
	repo := NewCampaignRepository(t.TempDir())

	_, err := repo.CampaignByID(t.Context(), "ghost")
	if !persistence.IsCampaignNotFound(err) {
		t.Errorf("Expected ErrCampaignNotFound, got %v", err)
	}
}

func TestAlertRepository_UpsertAndFilter(t *testing.T) {
	repo := NewAlertRepository(t.TempDir())
	now := time.Now().UTC()

	open := &models.Alert{
		ID:         "alert-1",
		CampaignID: "camp-1",
		Category:   models.AlertCategoryPacing,
		Severity:   models.SeverityWarning,
		Status:     models.AlertStatusOpen,
		CreatedAt:  now,
	}
	resolved := &models.Alert{
		ID:         "alert-2",
		CampaignID: "camp-1",
		Category:   models.AlertCategoryBudget,
		Severity:   models.SeverityWarning,
		Status:     models.AlertStatusResolved,
		CreatedAt:  now.Add(time.Minute),
	}

	for _, alert := range []*models.Alert{open, resolved} {
		if err := repo.SaveAlert(t.Context(), alert); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	all, err := repo.AlertsByCampaign(t.Context(), "camp-1", nil)
	if err != nil {
		t.Fatalf("AlertsByCampaign failed: %v", err)
	}

	if len(all) != 2 {
		t.Fatalf("Expected two alerts, got %d", len(all))
	}

	if all[0].ID != "alert-2" {
		t.Errorf("Expected newest first, got %s", all[0].ID)
	}

	status := models.AlertStatusOpen

	filtered, err := repo.AlertsByCampaign(t.Context(), "camp-1", &status)
	if err != nil {
		t.Fatalf("AlertsByCampaign failed: %v", err)
	}

	if len(filtered) != 1 || filtered[0].ID != "alert-1" {
		t.Errorf("Expected only the open alert, got %+v", filtered)
	}

	// Upsert by identifier.
	open.Severity = models.SeverityCritical
	if err := repo.SaveAlert(t.Context(), open); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}

	stored, err := repo.AlertByID(t.Context(), "alert-1")
	if err != nil {
		t.Fatalf("AlertByID failed: %v", err)
	}

	if stored.Severity != models.SeverityCritical {
		t.Errorf("Expected escalated severity, got %s", stored.Severity)
	}
}

func TestReportRepository_LatestVersion(t *testing.T) {
	repo := NewReportRepository(t.TempDir())

	latest, err := repo.LatestVersion(t.Context(), "camp-1", "last_7_days")
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}

	if latest != 0 {
		t.Errorf("Expected 0 with no artifacts, got %d", latest)
	}

	now := time.Now().UTC()
	for v := 1; v <= 3; v++ {
		artifact := &models.ReportArtifact{
			CampaignID: "camp-1",
			Period:     "last_7_days",
			Format:     "json",
			ContentRef: "camp-1/last_7_days/v1.json",
			Version:    v,
			CreatedAt:  now.Add(time.Duration(v) * time.Minute),
		}
		if err := repo.SaveReport(t.Context(), artifact); err != nil {
			t.Fatalf("SaveReport failed: %v", err)
		}
	}

	other := &models.ReportArtifact{
		CampaignID: "camp-1",
		Period:     "last_30_days",
		Version:    9,
		CreatedAt:  now,
	}
	if err := repo.SaveReport(t.Context(), other); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	latest, err = repo.LatestVersion(t.Context(), "camp-1", "last_7_days")
	if err != nil {
		t.Fatalf("LatestVersion failed: %v", err)
	}

	// Versions are tracked per campaign+period.
	if latest != 3 {
		t.Errorf("Expected latest version 3, got %d", latest)
	}

	artifacts, err := repo.ReportsByCampaign(t.Context(), "camp-1")
	if err != nil {
		t.Fatalf("ReportsByCampaign failed: %v", err)
	}

	if len(artifacts) != 4 {
		t.Errorf("Expected four artifacts, got %d", len(artifacts))
	}
}
