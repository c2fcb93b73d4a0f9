// Package events contains the event contracts pushed to WebSocket clients
// whenever the published portfolio graph changes.
package events

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Graph lifecycle
	MessageTypeGraphRebuilt    MessageType = "graph:rebuilt"
	MessageTypeGraphError      MessageType = "graph:error"
	MessageTypeDatasetSwitched MessageType = "dataset:switched"

	// Connection messages
	MessageTypeConnection MessageType = "connection"
	MessageTypePong       MessageType = "pong"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Message is a complete event frame.
type Message struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// NewMessage stamps a new event with a fresh id and the current time.
func NewMessage(t MessageType, traceID string, data interface{}) Message {
	return Message{
		BaseMessage: BaseMessage{
			ID:        uuid.NewString(),
			Type:      t,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}
}

// GraphRebuilt is the payload of graph:rebuilt and dataset:switched.
type GraphRebuilt struct {
	Dataset    string    `json:"dataset"`
	MinCorr    float64   `json:"min_corr"`
	BuiltAt    time.Time `json:"built_at"`
	Version    uint64    `json:"snapshot_version"`
	NumClients int       `json:"num_clients"`
	NumEdges   int       `json:"num_edges"`
	Previous   string    `json:"previous_dataset,omitempty"`
}

// GraphError is the payload of graph:error.
type GraphError struct {
	Dataset string  `json:"dataset,omitempty"`
	MinCorr float64 `json:"min_corr"`
	Error   string  `json:"error"`
}

// ConnectionStatus is sent to a client right after it connects.
type ConnectionStatus struct {
	ClientID      string     `json:"client_id"`
	ActiveDataset string     `json:"active_dataset,omitempty"`
	BuiltAt       *time.Time `json:"built_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}
