package coordinator_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/adopshq/adflow/pkg/alerts"
	"github.com/adopshq/adflow/pkg/cmd"
	"github.com/adopshq/adflow/pkg/coordinator"
	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/persistence/file"
	"github.com/adopshq/adflow/pkg/provider"
	"github.com/adopshq/adflow/pkg/reports"
)

func waitFor(t *testing.T, p persistence.Persistence, runID string, want models.RunStatus) *models.Run {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		run, err := p.Runs().RunByID(t.Context(), runID)
		if err != nil {
			t.Fatalf("Failed to read run: %v", err)
		}

		if run.Status == want {
			return run
		}

		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("Run %s never reached %s", runID, want)

	return nil
}

// Full monitoring pass over the real graph catalog: elevated pacing raises a
// warning, the quality review runs, a versioned report is archived. A second
// sweep inside the same dedup bucket updates the alert in place instead of
// duplicating it, and archives the next report version.
func TestMonitoringScenario_AlertDedupAndReportVersions(t *testing.T) {
	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())

	var clockMu sync.Mutex

	at := time.Date(2026, 3, 14, 10, 5, 0, 0, time.UTC)
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()

		return at
	}

	alertService := alerts.NewService(p.Alerts(), nil, logger).WithClock(clock)
	reportService := reports.NewService(reports.NewFileArchive(t.TempDir()), p.Reports(), nil, logger)

	reg := cmd.NewRegistry(logger, p, alertService, reportService, provider.NewStubProvider())

	catalog, err := graph.Catalog(reg)
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}

	coord := coordinator.NewCoordinator(p, catalog, coordinator.Options{
		Alerts: alertService,
		Config: coordinator.Config{
			Workers:   2,
			BaseDelay: time.Millisecond,
			MaxDelay:  5 * time.Millisecond,
		},
	})
	coord.Start(t.Context())
	t.Cleanup(func() { coord.Stop(context.Background()) })

	// Spending at 160% of daily budget; everything else healthy.
	campaign := &models.Campaign{
		ID:          "camp-1",
		Name:        "Spring Sale",
		Status:      models.CampaignStatusActive,
		Budget:      7000,
		DailyBudget: 1000,
		Targeting:   map[string]any{"age_min": 25.0, "geo": "US"},
		AdGroups: []models.AdGroup{{
			Name: "main",
			Ads:  []models.Ad{{Headline: "Spring savings", Description: "Fresh deals all month"}},
		}},
		Metrics: map[string]float64{
			"daily_spend": 1600,
			"impressions": 10000,
			"clicks":      300,
			"ctr":         0.03,
			"cpc":         1.1,
			"conversions": 40,
		},
	}
	if err := p.Campaigns().SaveCampaign(t.Context(), campaign); err != nil {
		t.Fatalf("Failed to save campaign: %v", err)
	}

	run1, err := coord.Trigger(t.Context(), "camp-1", graph.GraphMonitoring, map[string]any{"triggered_by": "test"})
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	final1 := waitFor(t, p, run1.ID, models.RunStatusSucceeded)

	wantNodes := []string{"monitor", "quality", "report"}
	if len(final1.Steps) != len(wantNodes) {
		t.Fatalf("Expected %d step records, got %d", len(wantNodes), len(final1.Steps))
	}

	for i, rec := range final1.Steps {
		if rec.Node != wantNodes[i] {
			t.Errorf("Expected step %d to be %s, got %s", i, wantNodes[i], rec.Node)
		}
	}

	raised, err := alertService.List(t.Context(), "camp-1", nil)
	if err != nil {
		t.Fatalf("Failed to list alerts: %v", err)
	}

	if len(raised) != 1 {
		t.Fatalf("Expected one alert after the first sweep, got %d", len(raised))
	}

	if raised[0].Category != models.AlertCategoryPacing || raised[0].Severity != models.SeverityWarning {
		t.Errorf("Expected a pacing warning, got %s/%s", raised[0].Category, raised[0].Severity)
	}

	alertID := raised[0].ID
	firstUpdated := raised[0].UpdatedAt

	version, err := p.Reports().LatestVersion(t.Context(), "camp-1", "last_7_days")
	if err != nil || version != 1 {
		t.Fatalf("Expected report version 1 after the first sweep, got %d (%v)", version, err)
	}

	// Second sweep ten minutes later, inside the same hourly dedup bucket.
	clockMu.Lock()
	at = at.Add(10 * time.Minute)
	clockMu.Unlock()

	run2, err := coord.Trigger(t.Context(), "camp-1", graph.GraphMonitoring, map[string]any{"triggered_by": "test"})
	if err != nil {
		t.Fatalf("Second trigger failed: %v", err)
	}

	waitFor(t, p, run2.ID, models.RunStatusSucceeded)

	raised, err = alertService.List(t.Context(), "camp-1", nil)
	if err != nil {
		t.Fatalf("Failed to list alerts: %v", err)
	}

	if len(raised) != 1 {
		t.Fatalf("Expected the re-detection to deduplicate, got %d alerts", len(raised))
	}

	if raised[0].ID != alertID {
		t.Errorf("Expected the same alert identifier, got %s and %s", alertID, raised[0].ID)
	}

	if !raised[0].UpdatedAt.After(firstUpdated) {
		t.Errorf("Expected updated_at to refresh on re-detection, got %s then %s", firstUpdated, raised[0].UpdatedAt)
	}

	version, err = p.Reports().LatestVersion(t.Context(), "camp-1", "last_7_days")
	if err != nil || version != 2 {
		t.Fatalf("Expected report version 2 after the second sweep, got %d (%v)", version, err)
	}

	artifacts, err := p.Reports().ReportsByCampaign(t.Context(), "camp-1")
	if err != nil {
		t.Fatalf("Failed to list reports: %v", err)
	}

	if len(artifacts) != 2 {
		t.Errorf("Expected both report versions retained, got %d", len(artifacts))
	}
}
