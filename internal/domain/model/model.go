// Package model contains domain models passed between layers.
package model

import "time"

// NoneLabel stands in for a missing garment label in aggregated views.
const NoneLabel = "none"

// Session groups every record created with one secret token.
type Session struct {
	ID        string
	Secret    string
	CreatedAt time.Time
}

// Image is an annotated detector output.
type Image struct {
	ID        string
	SessionID string
	Payload   []byte
	FileName  string // stored file name relative to the media root
	Timestamp time.Time
}

// Prediction is one detected (upper, lower) garment pair. Either side may be nil.
type Prediction struct {
	ID        string
	SessionID string
	Upper     *string
	Lower     *string
	Timestamp time.Time
}

// Sensor is one ambient reading. Either value may be nil.
type Sensor struct {
	ID          string
	SessionID   string
	Temperature *float64
	Humidity    *float64
	Timestamp   time.Time
}

// Comfort is one comfort label, from the classifier or a direct report.
type Comfort struct {
	ID        string
	SessionID string
	Level     string
	Timestamp time.Time
}

// GarmentPair is the detector output unit: an optional upper and lower garment.
type GarmentPair struct {
	Upper *string
	Lower *string
}

// Usable reports whether both temperature and humidity are present.
func (s Sensor) Usable() bool {
	return s.Temperature != nil && s.Humidity != nil
}

// LabelOrNone dereferences a nullable label, mapping nil to NoneLabel.
func LabelOrNone(l *string) string {
	if l == nil {
		return NoneLabel
	}
	return *l
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
