package repository

import (
	"time"

	"github.com/okian/wearsense/internal/domain/model"
)

// Table rows. Seq orders records that share a timestamp.

type sessionRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Secret    string    `gorm:"size:255;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
}

func (sessionRow) TableName() string { return "sessions" }

type imageRow struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"size:36;not null;uniqueIndex"`
	SessionID string    `gorm:"size:36;not null;index:idx_images_session_ts,priority:1"`
	Payload   []byte    `gorm:"type:longblob"`
	FileName  string    `gorm:"size:512"`
	Timestamp time.Time `gorm:"not null;index:idx_images_session_ts,priority:2"`
}

func (imageRow) TableName() string { return "images" }

type predictionRow struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"size:36;not null;uniqueIndex"`
	SessionID string    `gorm:"size:36;not null;index:idx_predictions_session_ts,priority:1"`
	Upper     *string   `gorm:"size:64"`
	Lower     *string   `gorm:"size:64"`
	Timestamp time.Time `gorm:"not null;index:idx_predictions_session_ts,priority:2"`
}

func (predictionRow) TableName() string { return "predictions" }

type sensorRow struct {
	Seq         uint64 `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"size:36;not null;uniqueIndex"`
	SessionID   string `gorm:"size:36;not null;index:idx_sensors_session_ts,priority:1"`
	Temperature *float64
	Humidity    *float64
	Timestamp   time.Time `gorm:"not null;index:idx_sensors_session_ts,priority:2"`
}

func (sensorRow) TableName() string { return "sensors" }

type comfortRow struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	ID        string    `gorm:"size:36;not null;uniqueIndex"`
	SessionID string    `gorm:"size:36;not null;index:idx_comforts_session_ts,priority:1"`
	Level     string    `gorm:"size:64;not null"`
	Timestamp time.Time `gorm:"not null;index:idx_comforts_session_ts,priority:2"`
}

func (comfortRow) TableName() string { return "comforts" }

func allRows() []any {
	return []any{&sessionRow{}, &imageRow{}, &predictionRow{}, &sensorRow{}, &comfortRow{}}
}

func (r sessionRow) toModel() model.Session {
	return model.Session{ID: r.ID, Secret: r.Secret, CreatedAt: r.CreatedAt.UTC()}
}

func (r imageRow) toModel() model.Image {
	return model.Image{ID: r.ID, SessionID: r.SessionID, Payload: r.Payload, FileName: r.FileName, Timestamp: r.Timestamp.UTC()}
}

func (r predictionRow) toModel() model.Prediction {
	return model.Prediction{ID: r.ID, SessionID: r.SessionID, Upper: r.Upper, Lower: r.Lower, Timestamp: r.Timestamp.UTC()}
}

func (r sensorRow) toModel() model.Sensor {
	return model.Sensor{ID: r.ID, SessionID: r.SessionID, Temperature: r.Temperature, Humidity: r.Humidity, Timestamp: r.Timestamp.UTC()}
}

func (r comfortRow) toModel() model.Comfort {
	return model.Comfort{ID: r.ID, SessionID: r.SessionID, Level: r.Level, Timestamp: r.Timestamp.UTC()}
}

func mapRows[R any, M any](rows []R, conv func(R) M) []M {
	out := make([]M, 0, len(rows))
	for _, r := range rows {
		out = append(out, conv(r))
	}
	return out
}
