package issue

import "time"

const (
	TypeIssue       = "issue"
	TypeMaintenance = "maintenance"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Issue struct {
	ID          int64     `json:"id"`
	DriverID    int64     `json:"driver_id"`
	SessionID   *int64    `json:"session_id,omitempty"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event is the broadcast payload; it carries the driver's display name so
// dashboards need no extra lookup.
type Event struct {
	Issue
	DriverName string `json:"driver_name"`
}

func validType(t string) bool {
	return t == TypeIssue || t == TypeMaintenance
}

// priorityRank orders priorities for the notification threshold; unknown
// values rank below low.
func priorityRank(p string) int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	}
	return -1
}
