package route

import (
	"context"

	"backend-buswatch/internal/db"
	"backend-buswatch/internal/shared/apperr"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateRoute(ctx context.Context, input Route) (Route, error) {
	if input.Name == "" {
		return Route{}, apperr.Validation("route_name_required", "route name required")
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO routes (name, description, created_by)
		VALUES ($1,$2,$3)
		RETURNING id, created_at
	`, input.Name, input.Description, input.CreatedBy)
	if err := row.Scan(&input.ID, &input.CreatedAt); err != nil {
		return Route{}, apperr.TransientIO("route_create_failed", err)
	}
	return input, nil
}

func (s *Service) GetRoute(ctx context.Context, id int64) (Route, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, created_by, created_at
		FROM routes WHERE id=$1
	`, id)
	var r Route
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedBy, &r.CreatedAt); err != nil {
		return Route{}, apperr.NotFound("route_not_found", "route %d not found", id)
	}
	return r, nil
}

func (s *Service) UpdateRoute(ctx context.Context, id int64, patch Route) (Route, error) {
	if err := s.ensureNotRunning(ctx, id); err != nil {
		return Route{}, err
	}

	r, err := s.GetRoute(ctx, id)
	if err != nil {
		return Route{}, err
	}
	if patch.Name != "" {
		r.Name = patch.Name
	}
	if patch.Description != "" {
		r.Description = patch.Description
	}

	_, err = s.db.Exec(ctx, `
		UPDATE routes SET name=$2, description=$3 WHERE id=$1
	`, r.ID, r.Name, r.Description)
	if err != nil {
		return Route{}, apperr.TransientIO("route_update_failed", err)
	}
	return r, nil
}

// AddStop appends a school visit to a route. Stops are frozen while a session
// runs against the route.
func (s *Service) AddStop(ctx context.Context, stop Stop) (Stop, error) {
	if err := s.ensureNotRunning(ctx, stop.RouteID); err != nil {
		return Stop{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO route_stops (route_id, school_id, seq, expected_arrival)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, stop.RouteID, stop.SchoolID, stop.Seq, stop.ExpectedArrival)
	if err := row.Scan(&stop.ID); err != nil {
		return Stop{}, apperr.TransientIO("stop_create_failed", err)
	}
	return stop, nil
}

func (s *Service) Stops(ctx context.Context, routeID int64) ([]Stop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, route_id, school_id, seq, expected_arrival
		FROM route_stops WHERE route_id=$1
		ORDER BY seq
	`, routeID)
	if err != nil {
		return nil, apperr.TransientIO("stop_list_failed", err)
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var st Stop
		if err := rows.Scan(&st.ID, &st.RouteID, &st.SchoolID, &st.Seq, &st.ExpectedArrival); err != nil {
			return nil, apperr.TransientIO("stop_list_failed", err)
		}
		stops = append(stops, st)
	}
	return stops, nil
}

// ensureNotRunning rejects edits while any session on the route is live; a
// route is immutable during a run.
func (s *Service) ensureNotRunning(ctx context.Context, routeID int64) error {
	var running bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pickup_sessions
			WHERE route_id=$1 AND status='in_progress'
		)
	`, routeID).Scan(&running)
	if err != nil {
		return apperr.TransientIO("route_check_failed", err)
	}
	if running {
		return apperr.Conflict("route_in_use", "route %d has a session in progress", routeID)
	}
	return nil
}
