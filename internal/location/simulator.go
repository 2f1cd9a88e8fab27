package location

import (
	"context"
	"log"
	"math/rand"
	"time"

	"backend-buswatch/internal/db"
	"backend-buswatch/internal/shared/apperr"
)

// Simulator replays a plausible drive along a session's route, feeding
// synthetic reports through the same Ingest path real devices use. Jitter is
// seeded by the session id so a run is reproducible.
type Simulator struct {
	db       db.Querier
	ingest   *Ingestor
	segments int
	tick     time.Duration
}

func NewSimulator(q db.Querier, ingest *Ingestor, segments int, tick time.Duration) *Simulator {
	if segments < 1 {
		segments = 1
	}
	return &Simulator{db: q, ingest: ingest, segments: segments, tick: tick}
}

// Run drives the session's route stop to stop, emitting one interpolated
// report per segment per tick until the route is exhausted or ctx is done.
func (s *Simulator) Run(ctx context.Context, sessionID, driverID int64) error {
	stops, err := s.routeStops(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(stops) < 2 {
		return apperr.Validation("route_too_short", "session %d route has %d stops, need at least 2", sessionID, len(stops))
	}

	rng := rand.New(rand.NewSource(sessionID))
	speed := 30.0

	for leg := 0; leg < len(stops)-1; leg++ {
		a, b := stops[leg], stops[leg+1]
		start := 0
		if leg > 0 {
			start = 1 // previous leg already emitted this point
		}
		for step := start; step <= s.segments; step++ {
			if err := s.wait(ctx); err != nil {
				return err
			}
			t := float64(step) / float64(s.segments)
			r := Report{
				DriverID:  driverID,
				SessionID: sessionID,
				Lat:       a.Lat + t*(b.Lat-a.Lat) + jitter(rng),
				Lng:       a.Lng + t*(b.Lng-a.Lng) + jitter(rng),
				SpeedKPH:  &speed,
				Timestamp: time.Now(),
			}
			if _, err := s.ingest.Ingest(ctx, r); err != nil {
				log.Printf("location: simulator report for session %d: %v", sessionID, err)
			}
		}
	}
	return nil
}

func (s *Simulator) routeStops(ctx context.Context, sessionID int64) ([]schoolPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.lat, s.lng
		FROM route_stops rs
		JOIN schools s ON s.id = rs.school_id
		JOIN pickup_sessions ps ON ps.route_id = rs.route_id
		WHERE ps.id=$1
		ORDER BY rs.seq
	`, sessionID)
	if err != nil {
		return nil, apperr.TransientIO("route_stops_failed", err)
	}
	defer rows.Close()

	var stops []schoolPoint
	for rows.Next() {
		var sp schoolPoint
		if err := rows.Scan(&sp.ID, &sp.Lat, &sp.Lng); err != nil {
			return nil, apperr.TransientIO("route_stops_failed", err)
		}
		stops = append(stops, sp)
	}
	return stops, nil
}

func (s *Simulator) wait(ctx context.Context) error {
	if s.tick <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.tick):
		return nil
	}
}

// jitter is a bounded wobble of roughly ±10m so the track does not look like
// a ruler line.
func jitter(rng *rand.Rand) float64 {
	return (rng.Float64() - 0.5) * 2e-4
}
