package location

import (
	"math"
	"time"
)

// Report is a single GPS sample as submitted by a driver device or the
// simulator. SessionID is zero when the driver is not on an active run.
type Report struct {
	DriverID  int64     `json:"driver_id"`
	SessionID int64     `json:"session_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	SpeedKPH  *float64  `json:"speed_kph,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DriverLocation is the current position of one driver, upserted on every
// accepted report.
type DriverLocation struct {
	DriverID  int64     `json:"driver_id"`
	SessionID int64     `json:"session_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	SpeedKPH  *float64  `json:"speed_kph,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PathPoint is one breadcrumb of a session's travelled path.
type PathPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	SpeedKPH  *float64  `json:"speed_kph,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ArrivalEvent records a bus reaching a school during a session. At most one
// exists per (session, school); departure_time is set once on exit.
type ArrivalEvent struct {
	ID            int64      `json:"id"`
	SessionID     int64      `json:"session_id"`
	SchoolID      int64      `json:"school_id"`
	ArrivalTime   time.Time  `json:"arrival_time"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
}

func validCoords(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
