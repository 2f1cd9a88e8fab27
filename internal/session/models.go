package session

import "time"

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const (
	PickupPending  = "pending"
	PickupPickedUp = "picked_up"
	PickupAbsent   = "absent"
	PickupNoShow   = "no_show"
)

type PickupSession struct {
	ID              int64      `json:"id"`
	RouteID         int64      `json:"route_id"`
	DriverID        int64      `json:"driver_id"`
	Status          string     `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	CompletedTime   *time.Time `json:"completed_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	ForceCompleted  bool       `json:"force_completed"`
	Notes           string     `json:"notes"`
}

type StudentPickup struct {
	ID          int64      `json:"id"`
	SessionID   int64      `json:"session_id"`
	StudentID   int64      `json:"student_id"`
	SchoolID    int64      `json:"school_id"`
	Status      string     `json:"status"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	DriverNotes string     `json:"driver_notes"`
}

// PickupEvent is the broadcast payload for a pickup status change.
type PickupEvent struct {
	SessionID int64  `json:"session_id"`
	PickupID  int64  `json:"student_pickup_id"`
	StudentID int64  `json:"student_id"`
	Status    string `json:"status"`
}

func terminal(status string) bool {
	switch status {
	case PickupPickedUp, PickupAbsent, PickupNoShow:
		return true
	}
	return false
}

func validOutcome(status string) bool {
	return terminal(status)
}
