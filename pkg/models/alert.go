package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AlertCategory classifies what condition an alert describes.
type AlertCategory string

const (
	AlertCategoryPacing      AlertCategory = "pacing"
	AlertCategoryBudget      AlertCategory = "budget"
	AlertCategoryCompliance  AlertCategory = "compliance"
	AlertCategorySystemError AlertCategory = "system_error"
)

// AlertSeverity orders alert urgency. Severity only escalates on repeated
// occurrences, never downgrades.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

var severityRank = map[AlertSeverity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b AlertSeverity) AlertSeverity {
	if severityRank[b] > severityRank[a] {
		return b
	}

	return a
}

// AlertStatus defines the alert workflow states.
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// AlertBucketWidth is the deduplication window. Re-detections of the same
// condition within one hour map to the same alert identifier; a condition
// that persists into the next hour produces a fresh alert.
const AlertBucketWidth = time.Hour

// DeriveAlertID computes the deterministic alert identifier from campaign,
// category and the UTC time bucket containing at. Two occurrences with the
// same derived identifier are the same alert.
func DeriveAlertID(campaignID string, category AlertCategory, at time.Time) string {
	bucket := at.UTC().Truncate(AlertBucketWidth).Format(time.RFC3339)
	sum := sha256.Sum256([]byte(campaignID + "|" + string(category) + "|" + bucket))

	return hex.EncodeToString(sum[:16])
}

// Alert is a deduplicated operational alert for a campaign.
type Alert struct {
	ID         string        `json:"id"`
	CampaignID string        `json:"campaign_id"`
	Category   AlertCategory `json:"category"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	Status     AlertStatus   `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
