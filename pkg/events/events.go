// Package events defines event types for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "flowstudio.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowPublishedEvent   EventType = "workflow.published"
	WorkflowUnpublishedEvent EventType = "workflow.unpublished"
	WorkflowDeletedEvent     EventType = "workflow.deleted"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a fresh event envelope for the given workflow.
func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type WorkflowPublished struct {
	BaseEvent

	Version     int    `json:"version"`
	PublishedBy string `json:"published_by"`
}

func (w WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}

type WorkflowUnpublished struct {
	BaseEvent

	Version int `json:"version"`
}

func (w WorkflowUnpublished) GetType() EventType {
	return WorkflowUnpublishedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}
