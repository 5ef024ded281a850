// Package repository persists sessions and the four append-only,
// session-scoped record collections.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/wearsense/internal/domain/model"
	"github.com/okian/wearsense/pkg/metrics"
)

// Storage drivers understood by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Counts summarises the store size for monitoring.
type Counts struct {
	Sessions    int64 `json:"sessions"`
	Images      int64 `json:"images"`
	Predictions int64 `json:"predictions"`
	Sensors     int64 `json:"sensors"`
	Comforts    int64 `json:"comforts"`
}

// Store provides access to sessions and session-scoped records.
//
// Add* methods assign an id when empty and a timestamp strictly greater than
// the last one issued for that collection when zero. Records without a
// session id are rejected with ErrSessionRequired. Reads return records in
// timestamp order, insertion order breaking ties.
type Store interface {
	// UpsertSession inserts a session for secret unless one exists, then
	// returns the stored session and whether this call created it.
	UpsertSession(ctx context.Context, secret string) (model.Session, bool, error)
	// SessionBySecret returns ErrSessionNotFound for unseen secrets.
	SessionBySecret(ctx context.Context, secret string) (model.Session, error)

	AddImage(ctx context.Context, img *model.Image) error
	AddPrediction(ctx context.Context, p *model.Prediction) error
	AddSensor(ctx context.Context, s *model.Sensor) error
	AddComfort(ctx context.Context, c *model.Comfort) error

	Images(ctx context.Context, sessionID string) ([]model.Image, error)
	Predictions(ctx context.Context, sessionID string) ([]model.Prediction, error)
	Sensors(ctx context.Context, sessionID string) ([]model.Sensor, error)
	Comforts(ctx context.Context, sessionID string) ([]model.Comfort, error)

	// LatestSensor returns ErrNotFound when the session has no readings.
	LatestSensor(ctx context.Context, sessionID string) (model.Sensor, error)

	// AllComforts and AllPredictions span every session.
	AllComforts(ctx context.Context) ([]model.Comfort, error)
	AllPredictions(ctx context.Context) ([]model.Prediction, error)

	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// Open builds the Store selected by driver.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverMemory, "":
		return NewMemoryStore(opts...), nil
	case DriverSQLite, DriverMySQL:
		return OpenGormStore(ctx, driver, dsn, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// monotonicClock issues strictly increasing timestamps.
type monotonicClock struct {
	now  func() time.Time
	last time.Time
}

// next must be called with the owning collection's lock held.
func (c *monotonicClock) next() time.Time {
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// observe keeps last in step with caller-supplied timestamps.
func (c *monotonicClock) observe(t time.Time) {
	if t.After(c.last) {
		c.last = t
	}
}

// stamp fills id and timestamp and validates the session reference.
func stamp(id *string, sessionID string, ts *time.Time, clock *monotonicClock) error {
	if sessionID == "" {
		return ErrSessionRequired
	}
	if *id == "" {
		*id = uuid.NewString()
	}
	if ts.IsZero() {
		*ts = clock.next()
	} else {
		*ts = ts.UTC()
		clock.observe(*ts)
	}
	return nil
}

func observeWrite(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeRead(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}
