package models

import "time"

// ReportArtifact references a generated report in the archive. Versions are
// monotonically increasing per campaign and period.
type ReportArtifact struct {
	CampaignID string    `json:"campaign_id"`
	Period     string    `json:"period"`
	Format     string    `json:"format"`
	ContentRef string    `json:"content_ref"` // opaque handle into the report archive
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
