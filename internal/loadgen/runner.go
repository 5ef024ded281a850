package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/wearsense/internal/domain/types"
	"github.com/okian/wearsense/pkg/logger"
)

// Run executes the complete load run: health check, baseline report,
// submission, final report and verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting wearsense load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("verbose", cfg.Verbose))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := client.get(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	plans, err := generatePlan(ctx, cfg)
	if err != nil {
		return stats, fmt.Errorf("plan generation failed: %w", err)
	}
	stats.Sessions = len(plans)

	var before types.Report
	if err := client.get(ctx, "/api/integrate", &before); err != nil {
		return stats, fmt.Errorf("baseline report failed: %w", err)
	}

	if err := submitPlans(ctx, cfg, client, plans, stats); err != nil {
		return stats, err
	}

	var after types.Report
	if err := client.get(ctx, "/api/integrate", &after); err != nil {
		return stats, fmt.Errorf("final report failed: %w", err)
	}

	if stats.VotesFailed == 0 {
		if err := verifyReport(before, after, expectedVotes(plans)); err != nil {
			return stats, err
		}
		log.Info(ctx, "report verified")
	} else {
		log.Warn(ctx, "skipping report verification after failed votes", logger.Int("votesFailed", stats.VotesFailed))
	}

	if cfg.OutputFile != "" {
		if err := savePlan(cfg.OutputFile, plans); err != nil {
			log.Warn(ctx, "failed to save plan", logger.Error(err))
		} else {
			log.Info(ctx, "plan saved", logger.String("filename", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// savePlan writes the generated plan as indented JSON.
func savePlan(filename string, plans []SessionPlan) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(plans, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, requestsPerSecond float64

	total := stats.SensorsSubmitted + stats.SensorsFailed + stats.VotesSubmitted + stats.VotesFailed
	if total > 0 {
		successRate = float64(stats.SensorsSubmitted+stats.VotesSubmitted) / float64(total) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		requestsPerSecond = float64(total) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("sessions", stats.Sessions),
		logger.Int("sensorsSubmitted", stats.SensorsSubmitted),
		logger.Int("sensorsFailed", stats.SensorsFailed),
		logger.Int("votesSubmitted", stats.VotesSubmitted),
		logger.Int("votesFailed", stats.VotesFailed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("recordsPerSecond", requestsPerSecond))
}
