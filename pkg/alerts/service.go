// Package alerts implements alert deduplication and severity escalation.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adopshq/adflow/pkg/eventbus"
	"github.com/adopshq/adflow/pkg/events"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// Service raises and resolves deduplicated alerts. Alert identity is the
// deterministic hash of campaign, category and hourly time bucket, so
// re-running a detection within the bucket updates the existing row instead
// of creating a duplicate.
type Service struct {
	repo   persistence.AlertRepository
	bus    eventbus.EventBus
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo persistence.AlertRepository, bus eventbus.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger.With("module", "alerts"),
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to control the
// deduplication bucket.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now

	return s
}

// Raise upserts an alert by derived identifier. An existing Open or
// Acknowledged alert with the same identity escalates to the maximum of the
// two severities and refreshes updated_at; a Resolved alert in the same
// bucket stays resolved. Returns the alert identifier.
func (s *Service) Raise(ctx context.Context, campaignID string, category models.AlertCategory, severity models.AlertSeverity, message string) (string, error) {
	now := s.now().UTC()
	id := models.DeriveAlertID(campaignID, category, now)

	existing, err := s.repo.AlertByID(ctx, id)
	if err != nil && !persistence.IsAlertNotFound(err) {
		return "", fmt.Errorf("failed to look up alert %s: %w", id, err)
	}

	if existing != nil {
		if existing.Status == models.AlertStatusResolved {
			// Never transition backward from Resolved; the next bucket
			// derives a fresh identifier.
			return id, nil
		}

		existing.Severity = models.MaxSeverity(existing.Severity, severity)
		existing.Message = message
		existing.UpdatedAt = now

		err = s.repo.SaveAlert(ctx, existing)
		if err != nil {
			return "", fmt.Errorf("failed to update alert %s: %w", id, err)
		}

		s.logger.InfoContext(ctx, "Alert occurrence deduplicated",
			"alert_id", id, "campaign_id", campaignID, "category", category, "severity", existing.Severity)

		return id, nil
	}

	alert := &models.Alert{
		ID:         id,
		CampaignID: campaignID,
		Category:   category,
		Severity:   severity,
		Message:    message,
		Status:     models.AlertStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.repo.SaveAlert(ctx, alert)
	if err != nil {
		return "", fmt.Errorf("failed to insert alert %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Alert raised",
		"alert_id", id, "campaign_id", campaignID, "category", category, "severity", severity)
	s.publish(ctx, alert)

	return id, nil
}

// Resolve transitions an Open or Acknowledged alert to Resolved. Resolving an
// already-Resolved alert is a no-op.
func (s *Service) Resolve(ctx context.Context, alertID string) error {
	alert, err := s.repo.AlertByID(ctx, alertID)
	if err != nil {
		return err
	}

	if alert.Status == models.AlertStatusResolved {
		return nil
	}

	alert.Status = models.AlertStatusResolved
	alert.UpdatedAt = s.now().UTC()

	err = s.repo.SaveAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", alertID, err)
	}

	s.logger.InfoContext(ctx, "Alert resolved", "alert_id", alertID, "campaign_id", alert.CampaignID)

	return nil
}

// Acknowledge transitions an Open alert to Acknowledged.
func (s *Service) Acknowledge(ctx context.Context, alertID string) error {
	alert, err := s.repo.AlertByID(ctx, alertID)
	if err != nil {
		return err
	}

	if alert.Status != models.AlertStatusOpen {
		return nil
	}

	alert.Status = models.AlertStatusAcknowledged
	alert.UpdatedAt = s.now().UTC()

	return s.repo.SaveAlert(ctx, alert)
}

// List returns a campaign's alerts, optionally filtered by status.
func (s *Service) List(ctx context.Context, campaignID string, status *models.AlertStatus) ([]*models.Alert, error) {
	return s.repo.AlertsByCampaign(ctx, campaignID, status)
}

func (s *Service) publish(ctx context.Context, alert *models.Alert) {
	if s.bus == nil {
		return
	}

	err := s.bus.Publish(ctx, alert.CampaignID, events.AlertRaised{
		BaseEvent: events.NewBaseEvent(events.AlertRaisedEvent, alert.CampaignID, ""),
		AlertID:   alert.ID,
		Category:  alert.Category,
		Severity:  alert.Severity,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish alert event", "error", err, "alert_id", alert.ID)
	}
}
