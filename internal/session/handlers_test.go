package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func passthrough(c *fiber.Ctx) error { return c.Next() }

func newTestApp(mock pgxmock.PgxPoolIface) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/sessions"), NewService(mock, nil), passthrough)
	return app
}

func TestSessionHandlersLifecycle(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectNoActiveSession(mock, 9, false)
	mock.ExpectQuery(`INSERT INTO pickup_sessions`).
		WithArgs(int64(5), int64(9), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec(`INSERT INTO student_pickups`).
		WithArgs(int64(100), int64(5)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id, session_id, student_id, school_id, status, picked_up_at`).
		WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "session_id", "student_id", "school_id", "status", "picked_up_at", "driver_notes"}).
			AddRow(int64(1), int64(100), int64(11), int64(1), "pending", nil, ""))

	app := newTestApp(mock)

	body, _ := json.Marshal(map[string]int64{"route_id": 5, "driver_id": 9})
	req := httptest.NewRequest(http.MethodPost, "/sessions/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session status: %v %d", err, resp.StatusCode)
	}

	var created struct {
		Session PickupSession   `json:"session"`
		Pickups []StudentPickup `json:"pickups"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Session.ID != 100 || len(created.Pickups) != 1 {
		t.Fatalf("unexpected response: %+v", created)
	}
}

func TestSessionHandlersStartConflict(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectNoActiveSession(mock, 9, true)

	app := newTestApp(mock)

	body, _ := json.Marshal(map[string]int64{"route_id": 5, "driver_id": 9})
	req := httptest.NewRequest(http.MethodPost, "/sessions/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", resp.StatusCode)
	}
}

func TestSessionHandlersRecordPickup(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectSessionStatus(mock, 100, StatusInProgress)
	expectPickupRow(mock, 1, 100, PickupPending)
	mock.ExpectExec(`UPDATE student_pickups`).
		WithArgs(int64(1), "absent", pgxmock.AnyArg(), "sick today").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := newTestApp(mock)

	body, _ := json.Marshal(map[string]string{"outcome": "absent", "notes": "sick today"})
	req := httptest.NewRequest(http.MethodPut, "/sessions/100/pickups/1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("record pickup status: %v %d", err, resp.StatusCode)
	}

	var p StudentPickup
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode pickup: %v", err)
	}
	if p.Status != PickupAbsent {
		t.Fatalf("unexpected pickup: %+v", p)
	}
}

func TestSessionHandlersRecordPickupMissingOutcome(t *testing.T) {
	app := newTestApp(nil)

	req := httptest.NewRequest(http.MethodPut, "/sessions/100/pickups/1", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestSessionHandlersComplete(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectGetSession(mock, 100, StatusInProgress, time.Now().Add(-30*time.Minute))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM student_pickups`).
		WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE pickup_sessions`).
		WithArgs(int64(100), pgxmock.AnyArg(), pgxmock.AnyArg(), false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := newTestApp(mock)

	req := httptest.NewRequest(http.MethodPost, "/sessions/100/complete", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status: %v %d", err, resp.StatusCode)
	}

	var sess PickupSession
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Status != StatusCompleted {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestSessionHandlersCompleteOutstanding(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	expectGetSession(mock, 100, StatusInProgress, time.Now().Add(-30*time.Minute))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM student_pickups`).
		WithArgs(int64(100)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	app := newTestApp(mock)

	req := httptest.NewRequest(http.MethodPost, "/sessions/100/complete", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestSessionHandlersInvalidID(t *testing.T) {
	app := newTestApp(nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/abc", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}
