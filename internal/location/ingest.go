package location

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"backend-buswatch/internal/shared/apperr"
	"backend-buswatch/internal/stream"
)

// Ingestor is the single entry point for GPS reports, shared by the HTTP
// handler and the simulator. Malformed reports are dropped and counted, never
// crash the pipeline.
type Ingestor struct {
	store    *Service
	detector *Detector
	hub      *stream.Hub
	throttle time.Duration

	mu            sync.Mutex
	lastBroadcast map[int64]time.Time
	malformed     atomic.Int64
}

func NewIngestor(store *Service, detector *Detector, hub *stream.Hub, throttle time.Duration) *Ingestor {
	return &Ingestor{
		store:         store,
		detector:      detector,
		hub:           hub,
		throttle:      throttle,
		lastBroadcast: map[int64]time.Time{},
	}
}

// Ingest validates and stores one report, broadcasts the position at most
// once per throttle interval per driver, then runs arrival detection when a
// path point was appended.
func (i *Ingestor) Ingest(ctx context.Context, r Report) (DriverLocation, error) {
	loc, appended, err := i.store.UpdateLocation(ctx, r)
	if err != nil {
		if apperr.IsKind(err, apperr.KindValidation) {
			n := i.malformed.Add(1)
			log.Printf("location: dropped malformed report from driver %d (%d dropped so far): %v", r.DriverID, n, err)
		}
		return DriverLocation{}, err
	}

	if i.hub != nil && i.shouldBroadcast(loc.DriverID) {
		i.hub.Publish(stream.EventLocationUpdated, loc)
	}

	if appended && i.detector != nil {
		// Detection failures do not fail the report; the position is already stored.
		if err := i.detector.Check(ctx, r.SessionID, r.Lat, r.Lng, loc.Timestamp); err != nil {
			log.Printf("location: arrival check for session %d: %v", r.SessionID, err)
		}
	}
	return loc, nil
}

// DropMalformed counts a report rejected before it could even be parsed
// (bad JSON, unparsable timestamp), so transport-level drops show up in the
// same counter as coordinate failures.
func (i *Ingestor) DropMalformed(err error) {
	n := i.malformed.Add(1)
	log.Printf("location: dropped unparsable report (%d dropped so far): %v", n, err)
}

// MalformedCount reports how many reports were dropped at validation.
func (i *Ingestor) MalformedCount() int64 {
	return i.malformed.Load()
}

func (i *Ingestor) shouldBroadcast(driverID int64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := time.Now()
	if last, ok := i.lastBroadcast[driverID]; ok && now.Sub(last) < i.throttle {
		return false
	}
	i.lastBroadcast[driverID] = now
	return true
}
