// Package schedule provides the cron trigger that starts periodic monitoring
// runs for active campaigns.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
)

// Dispatcher admits workflow runs. The coordinator implements it.
type Dispatcher interface {
	Trigger(ctx context.Context, campaignID, graphName string, runContext map[string]any) (*models.Run, error)
}

// Trigger fires the monitoring graph for every active campaign on a cron
// schedule. Campaigns with a run already in flight are skipped; the next
// tick picks them up again.
type Trigger struct {
	CronExpr  string
	GraphName string

	campaigns  persistence.CampaignRepository
	dispatcher Dispatcher
	cron       *cron.Cron
	logger     *slog.Logger
}

func NewTrigger(cronExpr string, campaigns persistence.CampaignRepository, dispatcher Dispatcher, logger *slog.Logger) (*Trigger, error) {
	trigger := &Trigger{
		CronExpr:   cronExpr,
		GraphName:  graph.GraphMonitoring,
		campaigns:  campaigns,
		dispatcher: dispatcher,
		logger: logger.With(
			"module", "schedule_trigger",
			"cron", cronExpr,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Starting schedule trigger")

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := t.cron.AddFunc(t.CronExpr, t.run)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) run() {
	ctx := context.Background()

	campaigns, err := t.campaigns.Campaigns(ctx)
	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to list campaigns", "error", err)

		return
	}

	fired := 0

	for _, campaign := range campaigns {
		if campaign.Status != models.CampaignStatusActive {
			continue
		}

		_, err := t.dispatcher.Trigger(ctx, campaign.ID, t.GraphName, map[string]any{
			"triggered_by": "schedule",
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			if persistence.IsRunAlreadyActive(err) {
				t.logger.DebugContext(ctx, "Campaign already has an active run", "campaign_id", campaign.ID)

				continue
			}

			t.logger.ErrorContext(ctx, "Failed to trigger run", "campaign_id", campaign.ID, "error", err)

			continue
		}

		fired++
	}

	t.logger.Info("Schedule tick completed", "runs_started", fired)
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger")

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
