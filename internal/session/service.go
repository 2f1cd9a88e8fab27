package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"backend-buswatch/internal/db"
	"backend-buswatch/internal/shared/apperr"
	"backend-buswatch/internal/shared/keymutex"
	"backend-buswatch/internal/stream"
)

// Service owns the pickup-session lifecycle. It is the only writer of session
// and pickup status; every transition is serialized per entity and broadcast
// after the database write commits.
type Service struct {
	db    db.Querier
	hub   *stream.Hub
	locks *keymutex.KeyMutex
}

func NewService(db db.Querier, hub *stream.Hub) *Service {
	return &Service{db: db, hub: hub, locks: keymutex.New()}
}

// StartSession begins a route run for a driver and seeds one pending pickup
// per active student enrolled at a school on the route. A driver can only run
// one session at a time.
func (s *Service) StartSession(ctx context.Context, routeID, driverID int64) (PickupSession, []StudentPickup, error) {
	key := fmt.Sprintf("driver:%d", driverID)
	s.locks.Lock(key)
	sess, pickups, err := s.startLocked(ctx, routeID, driverID)
	s.locks.Unlock(key)
	if err != nil {
		return PickupSession{}, nil, err
	}

	if s.hub != nil {
		s.hub.Publish(stream.EventSessionCreated, sess)
	}
	return sess, pickups, nil
}

func (s *Service) startLocked(ctx context.Context, routeID, driverID int64) (PickupSession, []StudentPickup, error) {
	var active bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pickup_sessions
			WHERE driver_id=$1 AND status='in_progress'
		)
	`, driverID).Scan(&active)
	if err != nil {
		return PickupSession{}, nil, apperr.TransientIO("session_check_failed", err)
	}
	if active {
		return PickupSession{}, nil, apperr.Conflict("session_already_active", "driver %d already has a session in progress", driverID)
	}

	sess := PickupSession{
		RouteID:   routeID,
		DriverID:  driverID,
		Status:    StatusInProgress,
		StartTime: time.Now(),
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO pickup_sessions (route_id, driver_id, status, start_time)
		VALUES ($1,$2,'in_progress',$3)
		RETURNING id
	`, routeID, driverID, sess.StartTime)
	if err := row.Scan(&sess.ID); err != nil {
		return PickupSession{}, nil, apperr.TransientIO("session_create_failed", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO student_pickups (session_id, student_id, school_id, status)
		SELECT $1, st.id, st.school_id, 'pending'
		FROM students st
		JOIN route_stops rs ON rs.school_id = st.school_id
		WHERE rs.route_id = $2 AND st.active
	`, sess.ID, routeID)
	if err != nil {
		return PickupSession{}, nil, apperr.TransientIO("pickup_seed_failed", err)
	}

	pickups, err := s.Pickups(ctx, sess.ID)
	if err != nil {
		return PickupSession{}, nil, err
	}
	return sess, pickups, nil
}

// RecordPickup marks the outcome of one student pickup. Replaying the same
// terminal outcome is a no-op success; a different outcome on a terminal
// pickup is rejected.
func (s *Service) RecordPickup(ctx context.Context, sessionID, pickupID int64, outcome, notes string) (StudentPickup, error) {
	if !validOutcome(outcome) {
		return StudentPickup{}, apperr.Validation("invalid_outcome", "outcome %q not recognized", outcome)
	}

	key := fmt.Sprintf("pickup:%d", pickupID)
	s.locks.Lock(key)
	pickup, changed, err := s.recordLocked(ctx, sessionID, pickupID, outcome, notes)
	s.locks.Unlock(key)
	if err != nil {
		return StudentPickup{}, err
	}

	if changed && s.hub != nil {
		s.hub.Publish(stream.EventPickupUpdated, PickupEvent{
			SessionID: pickup.SessionID,
			PickupID:  pickup.ID,
			StudentID: pickup.StudentID,
			Status:    pickup.Status,
		})
	}
	return pickup, nil
}

func (s *Service) recordLocked(ctx context.Context, sessionID, pickupID int64, outcome, notes string) (StudentPickup, bool, error) {
	var sessionStatus string
	err := s.db.QueryRow(ctx, `
		SELECT status FROM pickup_sessions WHERE id=$1
	`, sessionID).Scan(&sessionStatus)
	if err != nil {
		return StudentPickup{}, false, apperr.NotFound("session_not_found", "session %d not found", sessionID)
	}
	if sessionStatus != StatusInProgress {
		return StudentPickup{}, false, apperr.InvalidState("session_not_in_progress", "session %d is %s", sessionID, sessionStatus)
	}

	var p StudentPickup
	err = s.db.QueryRow(ctx, `
		SELECT id, session_id, student_id, school_id, status, picked_up_at, driver_notes
		FROM student_pickups WHERE id=$1 AND session_id=$2
	`, pickupID, sessionID).Scan(&p.ID, &p.SessionID, &p.StudentID, &p.SchoolID, &p.Status, &p.PickedUpAt, &p.DriverNotes)
	if err != nil {
		return StudentPickup{}, false, apperr.NotFound("pickup_not_found", "pickup %d not found in session %d", pickupID, sessionID)
	}

	if terminal(p.Status) {
		if p.Status == outcome {
			// Idempotent replay: same outcome, nothing to do.
			return p, false, nil
		}
		return StudentPickup{}, false, apperr.Conflict("pickup_already_recorded", "pickup %d already %s", pickupID, p.Status)
	}

	now := time.Now()
	p.Status = outcome
	p.DriverNotes = notes
	if outcome == PickupPickedUp {
		p.PickedUpAt = &now
	}
	_, err = s.db.Exec(ctx, `
		UPDATE student_pickups
		SET status=$2, picked_up_at=$3, driver_notes=$4
		WHERE id=$1
	`, p.ID, p.Status, p.PickedUpAt, p.DriverNotes)
	if err != nil {
		return StudentPickup{}, false, apperr.TransientIO("pickup_update_failed", err)
	}
	return p, true, nil
}

// CompleteSession ends a run. Without force it refuses while any pickup is
// still pending; force is the deliberate, logged override for a supervisor
// closing out an incomplete run.
func (s *Service) CompleteSession(ctx context.Context, sessionID int64, force bool) (PickupSession, error) {
	key := fmt.Sprintf("session:%d", sessionID)
	s.locks.Lock(key)
	sess, err := s.completeLocked(ctx, sessionID, force)
	s.locks.Unlock(key)
	if err != nil {
		return PickupSession{}, err
	}

	if s.hub != nil {
		s.hub.Publish(stream.EventSessionCompleted, sess)
	}
	return sess, nil
}

func (s *Service) completeLocked(ctx context.Context, sessionID int64, force bool) (PickupSession, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return PickupSession{}, err
	}
	if sess.Status != StatusInProgress {
		return PickupSession{}, apperr.InvalidState("session_not_in_progress", "session %d is %s", sessionID, sess.Status)
	}

	var outstanding int
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM student_pickups
		WHERE session_id=$1 AND status='pending'
	`, sessionID).Scan(&outstanding)
	if err != nil {
		return PickupSession{}, apperr.TransientIO("pickup_count_failed", err)
	}
	if outstanding > 0 {
		if !force {
			return PickupSession{}, apperr.InvalidState("pickups_outstanding", "%d pickups still pending", outstanding)
		}
		log.Printf("session: force-completing session %d with %d pending pickups", sessionID, outstanding)
	}

	now := time.Now()
	sess.Status = StatusCompleted
	sess.CompletedTime = &now
	sess.DurationMinutes = int(now.Sub(sess.StartTime).Minutes())
	sess.ForceCompleted = force && outstanding > 0

	_, err = s.db.Exec(ctx, `
		UPDATE pickup_sessions
		SET status='completed', completed_time=$2, duration_minutes=$3, force_completed=$4
		WHERE id=$1
	`, sess.ID, sess.CompletedTime, sess.DurationMinutes, sess.ForceCompleted)
	if err != nil {
		return PickupSession{}, apperr.TransientIO("session_complete_failed", err)
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id int64) (PickupSession, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, route_id, driver_id, status, start_time, completed_time, duration_minutes, force_completed, COALESCE(notes,'')
		FROM pickup_sessions WHERE id=$1
	`, id)
	var sess PickupSession
	if err := row.Scan(&sess.ID, &sess.RouteID, &sess.DriverID, &sess.Status, &sess.StartTime,
		&sess.CompletedTime, &sess.DurationMinutes, &sess.ForceCompleted, &sess.Notes); err != nil {
		return PickupSession{}, apperr.NotFound("session_not_found", "session %d not found", id)
	}
	return sess, nil
}

func (s *Service) Pickups(ctx context.Context, sessionID int64) ([]StudentPickup, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, student_id, school_id, status, picked_up_at, COALESCE(driver_notes,'')
		FROM student_pickups WHERE session_id=$1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, apperr.TransientIO("pickup_list_failed", err)
	}
	defer rows.Close()

	var pickups []StudentPickup
	for rows.Next() {
		var p StudentPickup
		if err := rows.Scan(&p.ID, &p.SessionID, &p.StudentID, &p.SchoolID, &p.Status, &p.PickedUpAt, &p.DriverNotes); err != nil {
			return nil, apperr.TransientIO("pickup_list_failed", err)
		}
		pickups = append(pickups, p)
	}
	return pickups, nil
}

// Status reports a session's lifecycle state; the location pipeline uses it
// to decide whether a path point may be appended.
func (s *Service) Status(ctx context.Context, sessionID int64) (string, error) {
	var status string
	err := s.db.QueryRow(ctx, `
		SELECT status FROM pickup_sessions WHERE id=$1
	`, sessionID).Scan(&status)
	if err != nil {
		return "", apperr.NotFound("session_not_found", "session %d not found", sessionID)
	}
	return status, nil
}
