package inference

import "time"

// Default simulation constants.
const (
	defaultDetectLatency   = 50 * time.Millisecond
	defaultClassifyLatency = 5 * time.Millisecond
	maxSimulatedGarments   = 3
)

// Option applies a configuration option to the simulated models.
type Option func(*simulation)

type simulation struct {
	latency time.Duration
}

// WithLatency sets the simulated service latency. Zero disables the delay.
func WithLatency(d time.Duration) Option {
	return func(s *simulation) {
		if d >= 0 {
			s.latency = d
		}
	}
}
