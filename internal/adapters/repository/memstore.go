package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/wearsense/internal/domain/model"
)

// MemoryStore keeps everything in process memory. It is the default store
// and the reference behaviour for the SQL implementation.
type MemoryStore struct {
	mu sync.RWMutex

	sessions map[string]model.Session // by secret

	images      []model.Image
	predictions []model.Prediction
	sensors     []model.Sensor
	comforts    []model.Comfort

	imageClock, predictionClock, sensorClock, comfortClock monotonicClock
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		sessions:        make(map[string]model.Session),
		imageClock:      monotonicClock{now: o.now},
		predictionClock: monotonicClock{now: o.now},
		sensorClock:     monotonicClock{now: o.now},
		comfortClock:    monotonicClock{now: o.now},
	}
}

// UpsertSession implements Store.
func (s *MemoryStore) UpsertSession(_ context.Context, secret string) (model.Session, bool, error) {
	if secret == "" {
		return model.Session{}, false, ErrSecretRequired
	}
	defer observeWrite(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[secret]; ok {
		return sess, false, nil
	}
	sess := model.Session{ID: uuid.NewString(), Secret: secret, CreatedAt: time.Now().UTC()}
	s.sessions[secret] = sess
	return sess, true, nil
}

// SessionBySecret implements Store.
func (s *MemoryStore) SessionBySecret(_ context.Context, secret string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[secret]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// AddImage implements Store.
func (s *MemoryStore) AddImage(_ context.Context, img *model.Image) error {
	defer observeWrite(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := stamp(&img.ID, img.SessionID, &img.Timestamp, &s.imageClock); err != nil {
		return err
	}
	cp := *img
	cp.Payload = slices.Clone(img.Payload)
	s.images = append(s.images, cp)
	return nil
}

// AddPrediction implements Store.
func (s *MemoryStore) AddPrediction(_ context.Context, p *model.Prediction) error {
	defer observeWrite(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := stamp(&p.ID, p.SessionID, &p.Timestamp, &s.predictionClock); err != nil {
		return err
	}
	s.predictions = append(s.predictions, *p)
	return nil
}

// AddSensor implements Store.
func (s *MemoryStore) AddSensor(_ context.Context, r *model.Sensor) error {
	defer observeWrite(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := stamp(&r.ID, r.SessionID, &r.Timestamp, &s.sensorClock); err != nil {
		return err
	}
	s.sensors = append(s.sensors, *r)
	return nil
}

// AddComfort implements Store.
func (s *MemoryStore) AddComfort(_ context.Context, c *model.Comfort) error {
	defer observeWrite(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := stamp(&c.ID, c.SessionID, &c.Timestamp, &s.comfortClock); err != nil {
		return err
	}
	s.comforts = append(s.comforts, *c)
	return nil
}

// Images implements Store.
func (s *MemoryStore) Images(_ context.Context, sessionID string) ([]model.Image, error) {
	defer observeRead(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.images, func(i model.Image) bool { return i.SessionID == sessionID },
		func(i model.Image) time.Time { return i.Timestamp }), nil
}

// Predictions implements Store.
func (s *MemoryStore) Predictions(_ context.Context, sessionID string) ([]model.Prediction, error) {
	defer observeRead(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.predictions, func(p model.Prediction) bool { return p.SessionID == sessionID },
		func(p model.Prediction) time.Time { return p.Timestamp }), nil
}

// Sensors implements Store.
func (s *MemoryStore) Sensors(_ context.Context, sessionID string) ([]model.Sensor, error) {
	defer observeRead(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.sensors, func(r model.Sensor) bool { return r.SessionID == sessionID },
		func(r model.Sensor) time.Time { return r.Timestamp }), nil
}

// Comforts implements Store.
func (s *MemoryStore) Comforts(_ context.Context, sessionID string) ([]model.Comfort, error) {
	defer observeRead(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.comforts, func(c model.Comfort) bool { return c.SessionID == sessionID },
		func(c model.Comfort) time.Time { return c.Timestamp }), nil
}

// LatestSensor implements Store.
func (s *MemoryStore) LatestSensor(ctx context.Context, sessionID string) (model.Sensor, error) {
	all, _ := s.Sensors(ctx, sessionID)
	if len(all) == 0 {
		return model.Sensor{}, ErrNotFound
	}
	return all[len(all)-1], nil
}

// AllComforts implements Store.
func (s *MemoryStore) AllComforts(_ context.Context) ([]model.Comfort, error) {
	defer observeRead(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.comforts, nil, func(c model.Comfort) time.Time { return c.Timestamp }), nil
}

// AllPredictions implements Store.
func (s *MemoryStore) AllPredictions(_ context.Context) ([]model.Prediction, error) {
	defer observeRead(time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.predictions, nil, func(p model.Prediction) time.Time { return p.Timestamp }), nil
}

// Counts implements Store.
func (s *MemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Sessions:    int64(len(s.sessions)),
		Images:      int64(len(s.images)),
		Predictions: int64(len(s.predictions)),
		Sensors:     int64(len(s.sensors)),
		Comforts:    int64(len(s.comforts)),
	}, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// filterSorted copies the matching records and stable-sorts them by timestamp.
func filterSorted[T any](in []T, keep func(T) bool, ts func(T) time.Time) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int { return ts(a).Compare(ts(b)) })
	return out
}
