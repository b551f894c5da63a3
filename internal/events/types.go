// Package events provides event management functionality.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	PricesRefreshed   EventType = "PRICES_REFRESHED"
	RefreshFailed     EventType = "REFRESH_FAILED"
	CacheCleaned      EventType = "CACHE_CLEANED"
	PlanStageFinished EventType = "PLAN_STAGE_FINISHED"
	PlanCompleted     EventType = "PLAN_COMPLETED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type, for subscribers that want the full stream.
var AllTypes = []EventType{
	PricesRefreshed,
	RefreshFailed,
	CacheCleaned,
	PlanStageFinished,
	PlanCompleted,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
