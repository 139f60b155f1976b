// Package events defines the messages pushed to websocket clients
package events

import (
	"time"
)

// MessageType defines the type of websocket message
type MessageType string

const (
	// MessageTypeJobSnapshot carries the full state of an import job
	MessageTypeJobSnapshot MessageType = "job:snapshot"

	// MessageTypeError reports a stream failure before the socket closes
	MessageTypeError MessageType = "error"
)

// Message is the envelope of every websocket frame
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"traceId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ErrorData is the payload of an error message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage stamps a message of type t
func NewMessage(t MessageType, traceID string, data interface{}) Message {
	return Message{
		Type:      t,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Data:      data,
	}
}
