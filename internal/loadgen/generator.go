package loadgen

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/wearsense/pkg/logger"
)

// generatePlan creates one SessionPlan per session with unique secrets.
// Values are derived from cfg.Seed so runs are reproducible; secrets are not.
func generatePlan(ctx context.Context, cfg *Config) ([]SessionPlan, error) {
	if cfg.Sessions <= 0 {
		return nil, fmt.Errorf("%w: sessions must be positive", ErrInvalidConfig)
	}
	logger.Get().Info(ctx, "generating load plan",
		logger.Int("sessions", cfg.Sessions),
		logger.Int("readingsPerSession", cfg.ReadingsPerSession),
		logger.Int("votesPerSession", cfg.VotesPerSession))

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // load values, not secrets

	plans := make([]SessionPlan, cfg.Sessions)
	for i := range plans {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during plan generation: %w", err)
		}
		p := SessionPlan{
			Secret:   "load-" + uuid.NewString(),
			Readings: make([]Reading, cfg.ReadingsPerSession),
			Votes:    make([]string, cfg.VotesPerSession),
		}
		for j := range p.Readings {
			p.Readings[j] = Reading{
				Temperature: round1(minTemp + rng.Float64()*tempRange),
				Humidity:    round1(minHumid + rng.Float64()*humidRange),
			}
		}
		for j := range p.Votes {
			p.Votes[j] = strconv.Itoa(minComfort + rng.IntN(maxComfort-minComfort+1))
		}
		plans[i] = p
	}
	return plans, nil
}

// expectedVotes counts the planned votes per comfort label.
func expectedVotes(plans []SessionPlan) map[string]int {
	out := make(map[string]int)
	for _, p := range plans {
		for _, v := range p.Votes {
			out[v]++
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
