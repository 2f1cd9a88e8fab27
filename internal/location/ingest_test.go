package location

import (
	"context"
	"testing"
	"time"

	"backend-buswatch/internal/shared/apperr"
	"backend-buswatch/internal/stream"

	"github.com/pashagolub/pgxmock/v3"
)

func TestIngestDropsAndCountsMalformed(t *testing.T) {
	store := NewService(nil, nil, 30*time.Minute, 15*time.Second)
	ing := NewIngestor(store, nil, nil, 30*time.Second)

	_, err := ing.Ingest(context.Background(), Report{DriverID: 9, Lat: 200, Lng: 0})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = ing.Ingest(context.Background(), Report{DriverID: 9, Lat: 0, Lng: 999})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := ing.MalformedCount(); got != 2 {
		t.Fatalf("expected 2 dropped reports, got %d", got)
	}
}

func TestIngestThrottlesBroadcast(t *testing.T) {
	mock := newMock(t)
	for i := 0; i < 3; i++ {
		mock.ExpectExec(`INSERT INTO driver_locations`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	hub := stream.NewHub(nil)
	viewer := hub.Register(1)
	defer hub.Unregister(viewer)

	store := NewService(mock, nil, 30*time.Minute, 15*time.Second)
	ing := NewIngestor(store, nil, hub, time.Hour)

	for i := 0; i < 3; i++ {
		r := Report{DriverID: 9, Lat: 36.16, Lng: -86.78, Timestamp: time.Now()}
		if _, err := ing.Ingest(context.Background(), r); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	if got := len(viewer.Send); got != 1 {
		t.Fatalf("expected 1 broadcast inside throttle window, got %d", got)
	}
}

func TestIngestBroadcastsPerDriver(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO driver_locations`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO driver_locations`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	hub := stream.NewHub(nil)
	viewer := hub.Register(1)
	defer hub.Unregister(viewer)

	store := NewService(mock, nil, 30*time.Minute, 15*time.Second)
	ing := NewIngestor(store, nil, hub, time.Hour)

	// Throttle state is per driver; two drivers both broadcast.
	for _, driverID := range []int64{9, 10} {
		r := Report{DriverID: driverID, Lat: 36.16, Lng: -86.78, Timestamp: time.Now()}
		if _, err := ing.Ingest(context.Background(), r); err != nil {
			t.Fatalf("ingest driver %d: %v", driverID, err)
		}
	}

	if got := len(viewer.Send); got != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", got)
	}
}

func TestIngestSurfacesStorageFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO driver_locations`).
		WillReturnError(errBoom)

	store := NewService(mock, nil, 30*time.Minute, 15*time.Second)
	ing := NewIngestor(store, nil, nil, 30*time.Second)

	_, err := ing.Ingest(context.Background(), Report{DriverID: 9, Lat: 36.16, Lng: -86.78})
	if !apperr.IsKind(err, apperr.KindTransientIO) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if got := ing.MalformedCount(); got != 0 {
		t.Fatalf("storage failure must not count as malformed, got %d", got)
	}
}
