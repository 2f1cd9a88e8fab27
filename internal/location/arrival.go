package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backend-buswatch/internal/db"
	"backend-buswatch/internal/shared/apperr"
	"backend-buswatch/internal/shared/geo"
)

type schoolPoint struct {
	ID  int64
	Lat float64
	Lng float64
}

// Detector decides when a session's bus has arrived at a route school. An
// arrival needs the last few path points all inside the school radius for at
// least the dwell time, so a bus driving past does not register.
type Detector struct {
	db           db.Querier
	radiusM      float64
	dwell        time.Duration
	windowPoints int

	mu           sync.Mutex
	routeSchools map[int64][]schoolPoint
	open         map[string]struct{}
}

func NewDetector(q db.Querier, radiusM float64, dwell time.Duration, windowPoints int) *Detector {
	return &Detector{
		db:           q,
		radiusM:      radiusM,
		dwell:        dwell,
		windowPoints: windowPoints,
		routeSchools: map[int64][]schoolPoint{},
		open:         map[string]struct{}{},
	}
}

// Check runs after a path point is appended. It records at most one arrival
// per (session, school) and closes it with a departure time once the bus
// leaves the radius.
func (d *Detector) Check(ctx context.Context, sessionID int64, lat, lng float64, ts time.Time) error {
	schools, err := d.schools(ctx, sessionID)
	if err != nil {
		return err
	}

	var window []PathPoint
	for _, school := range schools {
		key := fmt.Sprintf("%d:%d", sessionID, school.ID)
		dist := geo.DistanceM(lat, lng, school.Lat, school.Lng)

		if dist > d.radiusM {
			if d.isOpen(key) {
				if err := d.recordDeparture(ctx, sessionID, school.ID, ts); err != nil {
					return err
				}
				d.close(key)
			}
			continue
		}

		if d.isOpen(key) {
			continue
		}
		if window == nil {
			window, err = d.window(ctx, sessionID)
			if err != nil {
				return err
			}
		}
		if !d.dwelled(window, school) {
			continue
		}
		if err := d.recordArrival(ctx, sessionID, school.ID, ts); err != nil {
			return err
		}
		d.markOpen(key)
	}
	return nil
}

// dwelled requires a full window of points inside the radius spanning at
// least the dwell time.
func (d *Detector) dwelled(window []PathPoint, school schoolPoint) bool {
	if len(window) < d.windowPoints {
		return false
	}
	for _, p := range window {
		if geo.DistanceM(p.Lat, p.Lng, school.Lat, school.Lng) > d.radiusM {
			return false
		}
	}
	span := window[len(window)-1].Timestamp.Sub(window[0].Timestamp)
	return span >= d.dwell
}

func (d *Detector) recordArrival(ctx context.Context, sessionID, schoolID int64, ts time.Time) error {
	// UNIQUE (session_id, school_id) makes replays harmless.
	_, err := d.db.Exec(ctx, `
		INSERT INTO school_arrival_events (session_id, school_id, arrival_time)
		VALUES ($1,$2,$3)
		ON CONFLICT (session_id, school_id) DO NOTHING
	`, sessionID, schoolID, ts)
	if err != nil {
		return apperr.TransientIO("arrival_record_failed", err)
	}
	return nil
}

func (d *Detector) recordDeparture(ctx context.Context, sessionID, schoolID int64, ts time.Time) error {
	_, err := d.db.Exec(ctx, `
		UPDATE school_arrival_events SET departure_time=$3
		WHERE session_id=$1 AND school_id=$2 AND departure_time IS NULL
	`, sessionID, schoolID, ts)
	if err != nil {
		return apperr.TransientIO("departure_record_failed", err)
	}
	return nil
}

func (d *Detector) schools(ctx context.Context, sessionID int64) ([]schoolPoint, error) {
	d.mu.Lock()
	cached, ok := d.routeSchools[sessionID]
	d.mu.Unlock()
	if ok {
		return cached, nil
	}

	rows, err := d.db.Query(ctx, `
		SELECT s.id, s.lat, s.lng
		FROM schools s
		JOIN route_stops rs ON rs.school_id = s.id
		JOIN pickup_sessions ps ON ps.route_id = rs.route_id
		WHERE ps.id=$1
	`, sessionID)
	if err != nil {
		return nil, apperr.TransientIO("route_schools_failed", err)
	}
	defer rows.Close()

	var schools []schoolPoint
	for rows.Next() {
		var sp schoolPoint
		if err := rows.Scan(&sp.ID, &sp.Lat, &sp.Lng); err != nil {
			return nil, apperr.TransientIO("route_schools_failed", err)
		}
		schools = append(schools, sp)
	}

	d.mu.Lock()
	d.routeSchools[sessionID] = schools
	d.mu.Unlock()
	return schools, nil
}

// window returns the last windowPoints path points in chronological order.
func (d *Detector) window(ctx context.Context, sessionID int64) ([]PathPoint, error) {
	rows, err := d.db.Query(ctx, `
		SELECT lat, lng, timestamp FROM path_points
		WHERE session_id=$1
		ORDER BY timestamp DESC
		LIMIT $2
	`, sessionID, d.windowPoints)
	if err != nil {
		return nil, apperr.TransientIO("path_window_failed", err)
	}
	defer rows.Close()

	var points []PathPoint
	for rows.Next() {
		var p PathPoint
		if err := rows.Scan(&p.Lat, &p.Lng, &p.Timestamp); err != nil {
			return nil, apperr.TransientIO("path_window_failed", err)
		}
		points = append(points, p)
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

func (d *Detector) isOpen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.open[key]
	return ok
}

func (d *Detector) markOpen(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open[key] = struct{}{}
}

func (d *Detector) close(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.open, key)
}
