package route

import "time"

type Route struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stop is one school visit on a route, ordered by Seq.
type Stop struct {
	ID              int64  `json:"id"`
	RouteID         int64  `json:"route_id"`
	SchoolID        int64  `json:"school_id"`
	Seq             int    `json:"seq"`
	ExpectedArrival string `json:"expected_arrival"`
}
