package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL            string        // Base URL of the service
	Sessions           int           // Number of distinct secrets to seed
	ReadingsPerSession int           // Sensor readings posted per session
	VotesPerSession    int           // Comfort votes posted per session
	Workers            int           // Number of concurrent workers
	Timeout            time.Duration // HTTP request timeout
	Seed               uint64        // Seed for the generated values
	OutputFile         string        // Optional JSON dump of the generated plan
	Verbose            bool          // Log every failed request
}

// Reading is one sensor form submission.
type Reading struct {
	Temperature float64 `json:"local_temp"`
	Humidity    float64 `json:"local_humid"`
}

// SessionPlan is everything posted for one secret. Readings go first so the
// session exists before comfort votes arrive.
type SessionPlan struct {
	Secret   string    `json:"secret"`
	Readings []Reading `json:"readings"`
	Votes    []string  `json:"votes"`
}

// Stats holds run statistics.
type Stats struct {
	Sessions         int
	SensorsSubmitted int
	SensorsFailed    int
	VotesSubmitted   int
	VotesFailed      int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
