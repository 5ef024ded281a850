package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/wearsense/internal/domain/model"
)

const orderByTime = "timestamp ASC, seq ASC"

// GormStore persists records through gorm on SQLite or MySQL.
type GormStore struct {
	db *gorm.DB

	// Clocks are process-local; the seq column keeps ordering stable across
	// equal timestamps.
	mu                                                     sync.Mutex
	imageClock, predictionClock, sensorClock, comfortClock monotonicClock
	now                                                    func() time.Time
}

// OpenGormStore opens the database for driver (sqlite or mysql), migrates the
// schema and returns the store.
func OpenGormStore(ctx context.Context, driver, dsn string, opts ...Option) (*GormStore, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
		if o.maxOpenConns == 0 {
			o.maxOpenConns = 1
		}
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	logMode := gormlogger.Silent
	if o.debugSQL {
		logMode = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logMode)})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying DB: %w", err)
	}
	if o.maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(o.maxOpenConns)
	}

	if err := db.WithContext(ctx).AutoMigrate(allRows()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return newGormStore(db, o.now), nil
}

func newGormStore(db *gorm.DB, now func() time.Time) *GormStore {
	return &GormStore{
		db:              db,
		now:             now,
		imageClock:      monotonicClock{now: now},
		predictionClock: monotonicClock{now: now},
		sensorClock:     monotonicClock{now: now},
		comfortClock:    monotonicClock{now: now},
	}
}

// UpsertSession implements Store with insert-on-conflict-do-nothing followed
// by a read, so concurrent callers converge on one row.
func (s *GormStore) UpsertSession(ctx context.Context, secret string) (model.Session, bool, error) {
	if secret == "" {
		return model.Session{}, false, ErrSecretRequired
	}
	defer observeWrite(time.Now())

	row := sessionRow{ID: uuid.NewString(), Secret: secret, CreatedAt: s.now().UTC()}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "secret"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return model.Session{}, false, fmt.Errorf("upsert session: %w", res.Error)
	}

	sess, err := s.SessionBySecret(ctx, secret)
	if err != nil {
		return model.Session{}, false, err
	}
	return sess, res.RowsAffected == 1 && sess.ID == row.ID, nil
}

// SessionBySecret implements Store.
func (s *GormStore) SessionBySecret(ctx context.Context, secret string) (model.Session, error) {
	defer observeRead(time.Now())
	var row sessionRow
	err := s.db.WithContext(ctx).Where("secret = ?", secret).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) stamp(id *string, sessionID string, ts *time.Time, clock *monotonicClock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stamp(id, sessionID, ts, clock)
}

// AddImage implements Store.
func (s *GormStore) AddImage(ctx context.Context, img *model.Image) error {
	defer observeWrite(time.Now())
	if err := s.stamp(&img.ID, img.SessionID, &img.Timestamp, &s.imageClock); err != nil {
		return err
	}
	row := imageRow{ID: img.ID, SessionID: img.SessionID, Payload: img.Payload, FileName: img.FileName, Timestamp: img.Timestamp}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// AddPrediction implements Store.
func (s *GormStore) AddPrediction(ctx context.Context, p *model.Prediction) error {
	defer observeWrite(time.Now())
	if err := s.stamp(&p.ID, p.SessionID, &p.Timestamp, &s.predictionClock); err != nil {
		return err
	}
	row := predictionRow{ID: p.ID, SessionID: p.SessionID, Upper: p.Upper, Lower: p.Lower, Timestamp: p.Timestamp}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// AddSensor implements Store.
func (s *GormStore) AddSensor(ctx context.Context, r *model.Sensor) error {
	defer observeWrite(time.Now())
	if err := s.stamp(&r.ID, r.SessionID, &r.Timestamp, &s.sensorClock); err != nil {
		return err
	}
	row := sensorRow{ID: r.ID, SessionID: r.SessionID, Temperature: r.Temperature, Humidity: r.Humidity, Timestamp: r.Timestamp}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert sensor: %w", err)
	}
	return nil
}

// AddComfort implements Store.
func (s *GormStore) AddComfort(ctx context.Context, c *model.Comfort) error {
	defer observeWrite(time.Now())
	if err := s.stamp(&c.ID, c.SessionID, &c.Timestamp, &s.comfortClock); err != nil {
		return err
	}
	row := comfortRow{ID: c.ID, SessionID: c.SessionID, Level: c.Level, Timestamp: c.Timestamp}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert comfort: %w", err)
	}
	return nil
}

// findOrdered loads rows in timestamp order. A nil sessionID spans every session.
func findOrdered[R any](ctx context.Context, db *gorm.DB, sessionID *string) ([]R, error) {
	defer observeRead(time.Now())
	var rows []R
	q := db.WithContext(ctx)
	if sessionID != nil {
		q = q.Where("session_id = ?", *sessionID)
	}
	if err := q.Order(orderByTime).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Images implements Store.
func (s *GormStore) Images(ctx context.Context, sessionID string) ([]model.Image, error) {
	rows, err := findOrdered[imageRow](ctx, s.db, &sessionID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return mapRows(rows, imageRow.toModel), nil
}

// Predictions implements Store.
func (s *GormStore) Predictions(ctx context.Context, sessionID string) ([]model.Prediction, error) {
	rows, err := findOrdered[predictionRow](ctx, s.db, &sessionID)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return mapRows(rows, predictionRow.toModel), nil
}

// Sensors implements Store.
func (s *GormStore) Sensors(ctx context.Context, sessionID string) ([]model.Sensor, error) {
	rows, err := findOrdered[sensorRow](ctx, s.db, &sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	return mapRows(rows, sensorRow.toModel), nil
}

// Comforts implements Store.
func (s *GormStore) Comforts(ctx context.Context, sessionID string) ([]model.Comfort, error) {
	rows, err := findOrdered[comfortRow](ctx, s.db, &sessionID)
	if err != nil {
		return nil, fmt.Errorf("list comforts: %w", err)
	}
	return mapRows(rows, comfortRow.toModel), nil
}

// LatestSensor implements Store.
func (s *GormStore) LatestSensor(ctx context.Context, sessionID string) (model.Sensor, error) {
	defer observeRead(time.Now())
	var row sensorRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp DESC, seq DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Sensor{}, ErrNotFound
	}
	if err != nil {
		return model.Sensor{}, fmt.Errorf("latest sensor: %w", err)
	}
	return row.toModel(), nil
}

// AllComforts implements Store.
func (s *GormStore) AllComforts(ctx context.Context) ([]model.Comfort, error) {
	rows, err := findOrdered[comfortRow](ctx, s.db, nil)
	if err != nil {
		return nil, fmt.Errorf("list comforts: %w", err)
	}
	return mapRows(rows, comfortRow.toModel), nil
}

// AllPredictions implements Store.
func (s *GormStore) AllPredictions(ctx context.Context) ([]model.Prediction, error) {
	rows, err := findOrdered[predictionRow](ctx, s.db, nil)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	return mapRows(rows, predictionRow.toModel), nil
}

// Counts implements Store.
func (s *GormStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	for _, q := range []struct {
		row any
		dst *int64
	}{
		{&sessionRow{}, &c.Sessions},
		{&imageRow{}, &c.Images},
		{&predictionRow{}, &c.Predictions},
		{&sensorRow{}, &c.Sensors},
		{&comfortRow{}, &c.Comforts},
	} {
		if err := db.Model(q.row).Count(q.dst).Error; err != nil {
			return Counts{}, fmt.Errorf("count records: %w", err)
		}
	}
	return c, nil
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
