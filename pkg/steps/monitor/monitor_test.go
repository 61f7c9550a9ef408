package monitor

import (
	"context"
	"testing"

	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence/file"
	"github.com/adopshq/adflow/pkg/protocol"
)

type raisedAlert struct {
	category models.AlertCategory
	severity models.AlertSeverity
}

type alertRecorder struct {
	raised []raisedAlert
}

func (r *alertRecorder) Raise(_ context.Context, _ string, category models.AlertCategory, severity models.AlertSeverity, _ string) (string, error) {
	r.raised = append(r.raised, raisedAlert{category: category, severity: severity})

	return "alert-1", nil
}

func setup(t *testing.T, campaign *models.Campaign) (*Step, *alertRecorder) {
	t.Helper()

	campaigns := file.NewPersistence(t.TempDir()).Campaigns()

	if err := campaigns.SaveCampaign(t.Context(), campaign); err != nil {
		t.Fatalf("Failed to save campaign: %v", err)
	}

	recorder := &alertRecorder{}

	return NewStep(campaigns, recorder), recorder
}

func campaignWithMetrics(metrics map[string]float64) *models.Campaign {
	return &models.Campaign{
		ID:          "camp-1",
		Name:        "Spring Sale",
		Status:      models.CampaignStatusActive,
		Budget:      7000,
		DailyBudget: 1000,
		Metrics:     metrics,
	}
}

func execute(t *testing.T, step *Step) *models.StepOutcome {
	t.Helper()

	out, err := step.Execute(t.Context(), protocol.RunContext{RunID: "run-1", CampaignID: "camp-1"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	return out
}

func TestStep_HealthyCampaign(t *testing.T) {
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 900,
		"impressions": 10000,
		"ctr":         0.03,
		"cpc":         1.2,
	}))

	out := execute(t, step)

	if out.Signal != models.SignalOK {
		t.Errorf("Expected ok signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 0 {
		t.Errorf("Expected no alerts, got %v", recorder.raised)
	}
}

func TestStep_OverspendWarning(t *testing.T) {
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 1500, // 150% of daily budget
	}))

	out := execute(t, step)

	if out.Signal != models.SignalAlertsRaised {
		t.Errorf("Expected alerts_raised signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 1 {
		t.Fatalf("Expected one alert, got %d", len(recorder.raised))
	}

	if recorder.raised[0].category != models.AlertCategoryPacing || recorder.raised[0].severity != models.SeverityWarning {
		t.Errorf("Expected pacing warning, got %+v", recorder.raised[0])
	}

	if out.Data["utilization"] != 1.5 {
		t.Errorf("Expected utilization 1.5, got %v", out.Data["utilization"])
	}
}

func TestStep_OverspendCritical(t *testing.T) {
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 2000, // 200% of daily budget
	}))

	out := execute(t, step)

	if out.Signal != models.SignalAlertsRaised {
		t.Errorf("Expected alerts_raised signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 1 || recorder.raised[0].severity != models.SeverityCritical {
		t.Errorf("Expected one critical pacing alert, got %v", recorder.raised)
	}
}

func TestStep_Underspend(t *testing.T) {
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 300, // 30% of daily budget
	}))

	out := execute(t, step)

	if out.Signal != models.SignalAlertsRaised {
		t.Errorf("Expected alerts_raised signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 1 || recorder.raised[0].category != models.AlertCategoryBudget {
		t.Errorf("Expected one budget alert, got %v", recorder.raised)
	}
}

func TestStep_LowCTR(t *testing.T) {
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 900,
		"impressions": 5000,
		"ctr":         0.004,
	}))

	out := execute(t, step)

	if out.Signal != models.SignalAlertsRaised {
		t.Errorf("Expected alerts_raised signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 1 || recorder.raised[0].category != models.AlertCategoryPacing {
		t.Errorf("Expected one pacing alert for low CTR, got %v", recorder.raised)
	}
}

func TestStep_LowCTRWithoutImpressions(t *testing.T) {
	// A campaign that has not served yet has no meaningful CTR.
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 900,
		"impressions": 0,
		"ctr":         0,
	}))

	out := execute(t, step)

	if out.Signal != models.SignalOK {
		t.Errorf("Expected ok signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 0 {
		t.Errorf("Expected no alerts, got %v", recorder.raised)
	}
}

func TestStep_HighCPCIsRecommendationOnly(t *testing.T) {
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 900,
		"impressions": 5000,
		"ctr":         0.02,
		"cpc":         3.5,
	}))

	out := execute(t, step)

	if out.Signal != models.SignalOK {
		t.Errorf("Expected ok signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 0 {
		t.Errorf("Expected no alerts for high CPC, got %v", recorder.raised)
	}

	recommendations, ok := out.Data["recommendations"].([]string)
	if !ok || len(recommendations) != 1 {
		t.Errorf("Expected one recommendation, got %v", out.Data["recommendations"])
	}
}

func TestStep_OverspendAndLowCTR(t *testing.T) {
	step, recorder := setup(t, campaignWithMetrics(map[string]float64{
		"daily_spend": 1600,
		"impressions": 5000,
		"ctr":         0.005,
	}))

	out := execute(t, step)

	if out.Signal != models.SignalAlertsRaised {
		t.Errorf("Expected alerts_raised signal, got %s", out.Signal)
	}

	if len(recorder.raised) != 2 {
		t.Errorf("Expected two alerts, got %d", len(recorder.raised))
	}
}

func TestStep_MissingCampaignIsPermanent(t *testing.T) {
	campaigns := file.NewPersistence(t.TempDir()).Campaigns()
	step := NewStep(campaigns, &alertRecorder{})

	_, err := step.Execute(t.Context(), protocol.RunContext{RunID: "run-1", CampaignID: "ghost"})
	if err == nil {
		t.Fatal("Expected an error for a missing campaign")
	}

	if !graph.IsPermanent(err) {
		t.Errorf("Expected a permanent failure, got %v", err)
	}
}
