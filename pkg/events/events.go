// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/models"
)

type EventType string

// Kafka topic carrying all execution lifecycle events.
const Topic = "loom.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"

	// Node visit events.
	NodeFinishedEvent EventType = "node.finished"
	NodeFailedEvent   EventType = "node.failed"

	// Billing events.
	TransactionFinalizedEvent EventType = "billing.transaction.finalized"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	SessionID   string         `json:"session_id,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID  string            `json:"execution_id"`
	Output       map[string]any    `json:"output,omitempty"`
	Usage        models.TokenUsage `json:"usage"`
	Cost         int64             `json:"cost"`
	NodesVisited int               `json:"nodes_visited"`
	DurationMs   int64             `json:"duration_ms"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID  string `json:"execution_id"`
	NodeID       string `json:"node_id,omitempty"`
	Error        string `json:"error"`
	NodesVisited int    `json:"nodes_visited"`
	DurationMs   int64  `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type NodeFinished struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
}

func (e NodeFinished) GetType() EventType {
	return NodeFinishedEvent
}

type NodeFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	NodeType    string `json:"node_type"`
	Error       string `json:"error"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type TransactionFinalized struct {
	BaseEvent

	TransactionID string                   `json:"transaction_id"`
	AccountID     string                   `json:"account_id"`
	ExecutionID   string                   `json:"execution_id,omitempty"`
	Model         string                   `json:"model"`
	Status        models.TransactionStatus `json:"status"`
	PreCharge     int64                    `json:"pre_charge"`
	ActualCharge  int64                    `json:"actual_charge"`
	Adjustment    int64                    `json:"adjustment"`
}

func (e TransactionFinalized) GetType() EventType {
	return TransactionFinalizedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
