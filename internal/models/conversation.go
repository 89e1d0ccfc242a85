package models

import (
	"encoding/json"
	"time"
)

// ToolInvocation records one tool run within a turn. Latency and the
// success flag are recorded even when the tool failed.
type ToolInvocation struct {
	Tool      string          `json:"tool"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	LatencyMs float64         `json:"latencyMs"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
}

// Turn is one complete request/response cycle in a conversation.
// Turns are append-only and never mutated once recorded.
type Turn struct {
	TurnID      string           `json:"turnId"`
	QueryID     string           `json:"queryId"`
	UserInput   string           `json:"userInput"`
	Intent      Intent           `json:"intent"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	Response    string           `json:"response"`
	ProductIDs  []string         `json:"productIds,omitempty"`
	Filters     QueryFilters     `json:"filters"`
	Timestamp   time.Time        `json:"timestamp"`
}

// ConversationState is the per-session append-only turn log.
type ConversationState struct {
	SessionID string    `json:"sessionId"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
