package location

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"backend-buswatch/internal/db"
	"backend-buswatch/internal/shared/apperr"

	"github.com/redis/go-redis/v9"
)

const activeDriversCacheKey = "buswatch:active_drivers"

// Service stores current driver positions and session breadcrumbs. The
// current-position table holds one row per driver (upsert); path points are
// append-only and sorted at read time.
type Service struct {
	db        db.Querier
	redis     *redis.Client
	staleness time.Duration
	cacheTTL  time.Duration
}

func NewService(q db.Querier, redisClient *redis.Client, staleness, cacheTTL time.Duration) *Service {
	return &Service{db: q, redis: redisClient, staleness: staleness, cacheTTL: cacheTTL}
}

// UpdateLocation upserts the driver's current position and, when the report
// carries a session that is still in progress, appends a path point. The
// second return reports whether a point was appended.
func (s *Service) UpdateLocation(ctx context.Context, r Report) (DriverLocation, bool, error) {
	if !validCoords(r.Lat, r.Lng) {
		return DriverLocation{}, false, apperr.Validation("invalid_coordinates", "lat %v lng %v out of range", r.Lat, r.Lng)
	}
	if r.DriverID <= 0 {
		return DriverLocation{}, false, apperr.Validation("invalid_driver", "driver_id required")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	loc := DriverLocation{
		DriverID:  r.DriverID,
		SessionID: r.SessionID,
		Lat:       r.Lat,
		Lng:       r.Lng,
		SpeedKPH:  r.SpeedKPH,
		Timestamp: r.Timestamp,
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_locations (driver_id, session_id, lat, lng, speed_kph, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (driver_id) DO UPDATE
		SET session_id=$2, lat=$3, lng=$4, speed_kph=$5, timestamp=$6
	`, loc.DriverID, nullableID(loc.SessionID), loc.Lat, loc.Lng, loc.SpeedKPH, loc.Timestamp)
	if err != nil {
		return DriverLocation{}, false, apperr.TransientIO("location_upsert_failed", err)
	}

	if r.SessionID == 0 {
		return loc, false, nil
	}

	var status string
	err = s.db.QueryRow(ctx, `
		SELECT status FROM pickup_sessions WHERE id=$1
	`, r.SessionID).Scan(&status)
	if err != nil {
		return DriverLocation{}, false, apperr.NotFound("session_not_found", "session %d not found", r.SessionID)
	}
	if status != "in_progress" {
		// Stale report for a finished run: keep the current position, skip the path.
		return loc, false, nil
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO path_points (session_id, lat, lng, speed_kph, timestamp)
		VALUES ($1,$2,$3,$4,$5)
	`, r.SessionID, r.Lat, r.Lng, r.SpeedKPH, r.Timestamp)
	if err != nil {
		return DriverLocation{}, false, apperr.TransientIO("path_append_failed", err)
	}
	return loc, true, nil
}

// GetActiveDrivers lists drivers with a fresh position on an in-progress
// session. The result is cached in redis for a short TTL so dashboard polling
// does not hammer Postgres.
func (s *Service) GetActiveDrivers(ctx context.Context) ([]DriverLocation, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, activeDriversCacheKey).Result()
		if err == nil {
			var locs []DriverLocation
			if err := json.Unmarshal([]byte(cached), &locs); err == nil {
				return locs, nil
			}
		}
	}

	cutoff := time.Now().Add(-s.staleness)
	rows, err := s.db.Query(ctx, `
		SELECT dl.driver_id, dl.session_id, dl.lat, dl.lng, dl.speed_kph, dl.timestamp
		FROM driver_locations dl
		JOIN pickup_sessions ps ON ps.id = dl.session_id
		WHERE ps.status='in_progress' AND dl.timestamp > $1
		ORDER BY dl.driver_id
	`, cutoff)
	if err != nil {
		return nil, apperr.TransientIO("active_drivers_failed", err)
	}
	defer rows.Close()

	locs := []DriverLocation{}
	for rows.Next() {
		var loc DriverLocation
		if err := rows.Scan(&loc.DriverID, &loc.SessionID, &loc.Lat, &loc.Lng, &loc.SpeedKPH, &loc.Timestamp); err != nil {
			return nil, apperr.TransientIO("active_drivers_failed", err)
		}
		locs = append(locs, loc)
	}

	if s.redis != nil {
		if raw, err := json.Marshal(locs); err == nil {
			if err := s.redis.Set(ctx, activeDriversCacheKey, raw, s.cacheTTL).Err(); err != nil {
				log.Printf("location: active-driver cache write: %v", err)
			}
		}
	}
	return locs, nil
}

// GetPath returns a session's breadcrumbs in chronological order. Reports may
// arrive out of order, so ordering happens here rather than at insert.
func (s *Service) GetPath(ctx context.Context, sessionID int64) ([]PathPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT lat, lng, speed_kph, timestamp FROM path_points
		WHERE session_id=$1
		ORDER BY timestamp
	`, sessionID)
	if err != nil {
		return nil, apperr.TransientIO("path_read_failed", err)
	}
	defer rows.Close()

	points := []PathPoint{}
	for rows.Next() {
		var p PathPoint
		if err := rows.Scan(&p.Lat, &p.Lng, &p.SpeedKPH, &p.Timestamp); err != nil {
			return nil, apperr.TransientIO("path_read_failed", err)
		}
		points = append(points, p)
	}
	return points, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
