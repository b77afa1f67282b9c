package model

import "time"

// ProgressEvent is a realtime update pushed by the backend while it works
type ProgressEvent struct {
	Type       string         `json:"type"` // progress, claims, sources, result, info, error
	Stage      string         `json:"stage,omitempty"`
	Message    string         `json:"message,omitempty"`
	Percentage float64        `json:"percentage,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}
