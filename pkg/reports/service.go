package reports

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

// Service assigns monotonically increasing versions per campaign+period,
// stores content in the archive and records the artifact metadata.
type Service struct {
	archive Archive
	repo    persistence.ReportRepository
	bus     eventbus.EventBus
	logger  *slog.Logger
}

func NewService(archive Archive, repo persistence.ReportRepository, bus eventbus.EventBus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		archive: archive,
		repo:    repo,
		bus:     bus,
		logger:  logger.With("module", "reports"),
	}
}

// Publish archives report content and records the artifact. Runs for a given
// campaign are single-flight, so version assignment has a single writer.
func (s *Service) Publish(ctx context.Context, campaignID, period, format string, content []byte) (*models.ReportArtifact, error) {
	latest, err := s.repo.LatestVersion(ctx, campaignID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to determine latest report version: %w", err)
	}

	version := latest + 1

	ref, err := s.archive.Put(ctx, campaignID, period, version, content)
	if err != nil {
		return nil, fmt.Errorf("failed to archive report content: %w", err)
	}

	artifact := &models.ReportArtifact{
		CampaignID: campaignID,
		Period:     period,
		Format:     format,
		ContentRef: ref,
		Version:    version,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.repo.SaveReport(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to record report artifact: %w", err)
	}

	s.logger.InfoContext(ctx, "Report archived",
		"campaign_id", campaignID, "period", period, "version", version, "content_ref", ref)

	if s.bus != nil {
		perr := s.bus.Publish(ctx, campaignID, events.ReportArchived{
			BaseEvent:  events.NewBaseEvent(events.ReportArchivedEvent, campaignID, ""),
			Period:     period,
			Version:    version,
			ContentRef: ref,
		})
		if perr != nil {
			s.logger.ErrorContext(ctx, "Failed to publish report event", "error", perr)
		}
	}

	return artifact, nil
}

// Fetch reads archived report content by reference.
func (s *Service) Fetch(ctx context.Context, contentRef string) ([]byte, error) {
	return s.archive.Get(ctx, contentRef)
}

// List returns a campaign's report artifacts.
func (s *Service) List(ctx context.Context, campaignID string) ([]*models.ReportArtifact, error) {
	return s.repo.ReportsByCampaign(ctx, campaignID)
}
