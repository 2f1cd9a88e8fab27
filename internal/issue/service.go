package issue

import (
	"context"
	"fmt"
	"log"
	"strings"

	"backend-buswatch/internal/db"
	"backend-buswatch/internal/notify"
	"backend-buswatch/internal/shared/apperr"
	"backend-buswatch/internal/stream"
)

const smsTextLimit = 120

// NameLookup resolves a driver id to a display name for broadcasts.
type NameLookup interface {
	DriverName(ctx context.Context, userID int64) (string, error)
}

// Service persists driver-reported issues, broadcasts every one, and pushes
// SMS alerts to admins when the priority clears the configured threshold.
type Service struct {
	db          db.Querier
	hub         *stream.Hub
	dispatcher  *notify.Dispatcher
	names       NameLookup
	minPriority string
	adminPhones []string
}

func NewService(q db.Querier, hub *stream.Hub, dispatcher *notify.Dispatcher, names NameLookup, minPriority string, adminPhones []string) *Service {
	return &Service{
		db:          q,
		hub:         hub,
		dispatcher:  dispatcher,
		names:       names,
		minPriority: minPriority,
		adminPhones: adminPhones,
	}
}

// Create stores the issue, broadcasts it to connected viewers, and runs the
// SMS chain for high-priority reports. The dispatch result rides back in the
// response so the driver sees whether anyone was paged.
func (s *Service) Create(ctx context.Context, in Issue) (Issue, []notify.Result, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Issue{}, nil, apperr.Validation("title_required", "issue title required")
	}
	if !validType(in.Type) {
		return Issue{}, nil, apperr.Validation("invalid_type", "type %q not recognized", in.Type)
	}
	if priorityRank(in.Priority) < 0 {
		return Issue{}, nil, apperr.Validation("invalid_priority", "priority %q not recognized", in.Priority)
	}
	if in.DriverID <= 0 {
		return Issue{}, nil, apperr.Validation("invalid_driver", "driver_id required")
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO issues (driver_id, session_id, type, title, description, priority)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, in.DriverID, in.SessionID, in.Type, in.Title, in.Description, in.Priority)
	if err := row.Scan(&in.ID, &in.CreatedAt); err != nil {
		return Issue{}, nil, apperr.TransientIO("issue_create_failed", err)
	}

	driverName := fmt.Sprintf("driver %d", in.DriverID)
	if s.names != nil {
		if name, err := s.names.DriverName(ctx, in.DriverID); err == nil {
			driverName = name
		}
	}
	if s.hub != nil {
		s.hub.Publish(stream.EventIssueCreated, Event{Issue: in, DriverName: driverName})
	}

	var results []notify.Result
	if s.shouldPage(in.Priority) {
		results = s.dispatcher.DispatchAll(ctx, s.adminPhones, smsText(in))
		for _, r := range results {
			if r.Delivered {
				log.Printf("issue: %d paged %s via %s", in.ID, r.Number, r.Channel)
			} else {
				log.Printf("issue: %d page to %s failed on every channel", in.ID, r.Number)
			}
		}
	}
	return in, results, nil
}

func (s *Service) List(ctx context.Context) ([]Issue, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, driver_id, session_id, type, title, COALESCE(description,''), priority, created_at
		FROM issues
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, apperr.TransientIO("issue_list_failed", err)
	}
	defer rows.Close()

	issues := []Issue{}
	for rows.Next() {
		var in Issue
		if err := rows.Scan(&in.ID, &in.DriverID, &in.SessionID, &in.Type, &in.Title, &in.Description, &in.Priority, &in.CreatedAt); err != nil {
			return nil, apperr.TransientIO("issue_list_failed", err)
		}
		issues = append(issues, in)
	}
	return issues, nil
}

func (s *Service) shouldPage(priority string) bool {
	if s.dispatcher == nil || len(s.adminPhones) == 0 {
		return false
	}
	return priorityRank(priority) >= priorityRank(s.minPriority)
}

// smsText renders the page: priority prefix, title, then as much of the
// description as fits the cap.
func smsText(in Issue) string {
	text := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(in.Priority), in.Title, in.Description)
	runes := []rune(text)
	if len(runes) > smsTextLimit {
		return string(runes[:smsTextLimit])
	}
	return text
}

// LookupFunc adapts a plain function to NameLookup.
type LookupFunc func(ctx context.Context, userID int64) (string, error)

func (f LookupFunc) DriverName(ctx context.Context, userID int64) (string, error) {
	return f(ctx, userID)
}
