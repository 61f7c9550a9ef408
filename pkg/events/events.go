// Package events defines event types and structures for run lifecycle notifications.
package events

import (
	"time"

	"github.com/adopshq/adflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries all run lifecycle events.
const Topic = "adflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunSucceededEvent EventType = "run.succeeded"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"
	RunSuspendedEvent EventType = "run.suspended"
	RunResumedEvent   EventType = "run.resumed"

	// Step-level events.
	StepCompletedEvent EventType = "run.step.completed"
	StepFailedEvent    EventType = "run.step.failed"

	// Side-effect events.
	AlertRaisedEvent    EventType = "alert.raised"
	ReportArchivedEvent EventType = "report.archived"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	CampaignID string         `json:"campaign_id"`
	RunID      string         `json:"run_id,omitempty"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, campaignID, runID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		CampaignID: campaignID,
		RunID:      runID,
		Metadata:   make(map[string]any),
	}
}

type RunStarted struct {
	BaseEvent

	GraphName string `json:"graph_name"`
	EntryNode string `json:"entry_node"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunSucceeded struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
	Steps    int           `json:"steps"`
}

func (e RunSucceeded) GetType() EventType {
	return RunSucceededEvent
}

type RunFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type RunSuspended struct {
	BaseEvent

	Node string `json:"node"`
}

func (e RunSuspended) GetType() EventType {
	return RunSuspendedEvent
}

type RunResumed struct {
	BaseEvent

	Node string `json:"node"`
}

func (e RunResumed) GetType() EventType {
	return RunResumedEvent
}

type StepCompleted struct {
	BaseEvent

	Node     string        `json:"node"`
	Signal   models.Signal `json:"signal"`
	Attempt  int           `json:"attempt"`
	Duration time.Duration `json:"duration"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type StepFailed struct {
	BaseEvent

	Node      string `json:"node"`
	Attempt   int    `json:"attempt"`
	Error     string `json:"error"`
	Transient bool   `json:"transient"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

type AlertRaised struct {
	BaseEvent

	AlertID  string               `json:"alert_id"`
	Category models.AlertCategory `json:"category"`
	Severity models.AlertSeverity `json:"severity"`
}

func (e AlertRaised) GetType() EventType {
	return AlertRaisedEvent
}

type ReportArchived struct {
	BaseEvent

	Period     string `json:"period"`
	Version    int    `json:"version"`
	ContentRef string `json:"content_ref"`
}

func (e ReportArchived) GetType() EventType {
	return ReportArchivedEvent
}
