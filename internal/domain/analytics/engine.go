// Package analytics computes read-only statistics over comfort, sensor and
// prediction records.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/wearsense/internal/adapters/repository"
	"github.com/okian/wearsense/internal/domain/model"
	"github.com/okian/wearsense/internal/domain/types"
	"github.com/okian/wearsense/pkg/metrics"
)

// Engine reads the record store and never writes to it.
type Engine struct {
	store repository.Store
}

// NewEngine creates an Engine over store.
func NewEngine(store repository.Store) *Engine {
	return &Engine{store: store}
}

func observe(op string, start time.Time) {
	metrics.RecordAnalyticsLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (e *Engine) comforts(ctx context.Context, level string) ([]model.Comfort, error) {
	all, err := e.store.AllComforts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load comforts: %w", err)
	}
	return filterLevel(all, level), nil
}

// AverageComfortLevel returns the mean numeric comfort label, nil when there
// is nothing numeric to average. An empty level means no filter.
func (e *Engine) AverageComfortLevel(ctx context.Context, level string) (*float64, error) {
	defer observe("average", time.Now())
	cs, err := e.comforts(ctx, level)
	if err != nil {
		return nil, err
	}
	return average(cs), nil
}

// Distribution counts comfort labels in first-occurrence order.
func (e *Engine) Distribution(ctx context.Context, level string) ([]types.DistributionEntry, error) {
	defer observe("distribution", time.Now())
	cs, err := e.comforts(ctx, level)
	if err != nil {
		return nil, err
	}
	return distribution(cs), nil
}

// Details aggregates garments and ambient means per comfort label.
func (e *Engine) Details(ctx context.Context, level string) (map[string]types.LevelDetail, error) {
	defer observe("details", time.Now())
	cs, err := e.comforts(ctx, level)
	if err != nil {
		return nil, err
	}
	return e.details(ctx, cs)
}

func (e *Engine) details(ctx context.Context, cs []model.Comfort) (map[string]types.LevelDetail, error) {
	var order []string
	sessions := make(map[string]*sessionData)
	for _, c := range cs {
		d, ok := sessions[c.SessionID]
		if !ok {
			preds, err := e.store.Predictions(ctx, c.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load predictions: %w", err)
			}
			sensors, err := e.store.Sensors(ctx, c.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load sensors: %w", err)
			}
			d = newSessionData(preds, sensors)
			sessions[c.SessionID] = d
			order = append(order, c.SessionID)
		}
		d.comforts = append(d.comforts, c.Level)
	}
	return details(order, sessions), nil
}

// LabelCounts histograms every garment label of every prediction.
func (e *Engine) LabelCounts(ctx context.Context) (map[string]int, error) {
	defer observe("label_counts", time.Now())
	preds, err := e.store.AllPredictions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load predictions: %w", err)
	}
	return labelCounts(preds), nil
}

// LabelCount returns how often label occurs, 0 when it never does.
func (e *Engine) LabelCount(ctx context.Context, label string) (int, error) {
	counts, err := e.LabelCounts(ctx)
	if err != nil {
		return 0, err
	}
	return counts[label], nil
}

// Correlation pairs each comfort with its session's latest sensor reading.
// Sessions without readings contribute nothing.
func (e *Engine) Correlation(ctx context.Context, level string) ([]types.CorrelationPoint, error) {
	defer observe("correlation", time.Now())
	cs, err := e.comforts(ctx, level)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*model.Sensor)
	out := []types.CorrelationPoint{}
	for _, c := range cs {
		s, seen := latest[c.SessionID]
		if !seen {
			r, err := e.store.LatestSensor(ctx, c.SessionID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
			case err != nil:
				return nil, fmt.Errorf("load latest sensor: %w", err)
			default:
				s = &r
			}
			latest[c.SessionID] = s
		}
		if s == nil {
			continue
		}
		out = append(out, types.CorrelationPoint{
			LocalTemp:    s.Temperature,
			LocalHumid:   s.Humidity,
			ComfortLevel: c.Level,
		})
	}
	return out, nil
}

// Report combines average, distribution, details and label counts.
func (e *Engine) Report(ctx context.Context) (types.Report, error) {
	defer observe("report", time.Now())
	empty := types.Report{
		ComfortLevelDistribution: []types.DistributionEntry{},
		ComfortLevelDetails:      map[string]types.LevelDetail{},
		LabelCounts:              map[string]int{},
	}

	cs, err := e.comforts(ctx, "")
	if err != nil {
		return types.Report{}, err
	}
	if len(cs) == 0 {
		return empty, nil
	}

	report := types.Report{
		AvgComfortLevel:          average(cs),
		ComfortLevelDistribution: distribution(cs),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := e.details(gctx, cs)
		report.ComfortLevelDetails = d
		return err
	})
	g.Go(func() error {
		preds, err := e.store.AllPredictions(gctx)
		if err != nil {
			return fmt.Errorf("load predictions: %w", err)
		}
		report.LabelCounts = labelCounts(preds)
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.Report{}, err
	}
	return report, nil
}
