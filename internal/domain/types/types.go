// Package types contains the response shapes shared by the service and the HTTP API.
package types

import "time"

// PredictionView is the wire form of a Prediction.
type PredictionView struct {
	ID             string    `json:"id"`
	Integrate      string    `json:"integrate"`
	PredictedUpper *string   `json:"predicted_upper"`
	PredictedLower *string   `json:"predicted_lower"`
	Timestamp      time.Time `json:"timestamp"`
}

// ImageView is the wire form of an Image; DetectedImage is a URL under /media/.
type ImageView struct {
	ID            string    `json:"id"`
	Integrate     string    `json:"integrate"`
	DetectedImage string    `json:"detected_image"`
	Timestamp     time.Time `json:"timestamp"`
}

// SensorView is the wire form of a Sensor.
type SensorView struct {
	ID         string    `json:"id"`
	Integrate  string    `json:"integrate"`
	LocalTemp  *float64  `json:"local_temp"`
	LocalHumid *float64  `json:"local_humid"`
	Timestamp  time.Time `json:"timestamp"`
}

// ComfortView is the wire form of a Comfort.
type ComfortView struct {
	ID        string    `json:"id"`
	Integrate string    `json:"integrate"`
	Comfort   string    `json:"comfort"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the image-ingest response. ComfortLevel is nil when no usable
// sensor reading existed and points at an empty slice when no garments were
// detected.
type Snapshot struct {
	Predictions  []PredictionView `json:"predictions"`
	Images       []ImageView      `json:"images"`
	Sensors      []SensorView     `json:"sensors"`
	ComfortLevel *[]ComfortView   `json:"comfort_level,omitempty"`
}

// DistributionEntry counts one distinct comfort label.
type DistributionEntry struct {
	Comfort string `json:"comfort"`
	Count   int    `json:"count"`
}

// LevelDetail aggregates the records behind one comfort label.
type LevelDetail struct {
	Count       int            `json:"count"`
	AvgTemp     float64        `json:"avg_temp"`
	AvgHumid    float64        `json:"avg_humid"`
	UpperLabels map[string]int `json:"upper_labels"`
	LowerLabels map[string]int `json:"lower_labels"`
}

// CorrelationPoint pairs a comfort label with its session's latest reading.
type CorrelationPoint struct {
	LocalTemp    *float64 `json:"local_temp"`
	LocalHumid   *float64 `json:"local_humid"`
	ComfortLevel string   `json:"comfort_level"`
}

// Report is the combined analytics view.
type Report struct {
	AvgComfortLevel          *float64               `json:"avg_comfort_level"`
	ComfortLevelDistribution []DistributionEntry    `json:"comfort_level_distribution"`
	ComfortLevelDetails      map[string]LevelDetail `json:"comfort_level_details"`
	LabelCounts              map[string]int         `json:"label_counts"`
}
