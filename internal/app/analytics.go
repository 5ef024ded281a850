package service

import (
	"context"

	"github.com/okian/wearsense/internal/domain/apperr"
	"github.com/okian/wearsense/internal/domain/types"
)

// The analytics operations below read through the engine. An empty level or
// label means no filter.

// AverageComfortLevel returns the mean numeric comfort label, nil when none.
func (s *Service) AverageComfortLevel(ctx context.Context, level string) (*float64, error) {
	if err := s.ready(); err != nil {
		return nil, apperr.WrapKind("service.AverageComfortLevel", apperr.ErrService, err)
	}
	avg, err := s.engine.AverageComfortLevel(ctx, level)
	return avg, apperr.WrapKind("service.AverageComfortLevel", apperr.ErrStorage, err)
}

// Distribution returns comfort label counts in first-occurrence order.
func (s *Service) Distribution(ctx context.Context, level string) ([]types.DistributionEntry, error) {
	if err := s.ready(); err != nil {
		return nil, apperr.WrapKind("service.Distribution", apperr.ErrService, err)
	}
	out, err := s.engine.Distribution(ctx, level)
	return out, apperr.WrapKind("service.Distribution", apperr.ErrStorage, err)
}

// Details returns per-level statistics.
func (s *Service) Details(ctx context.Context, level string) (map[string]types.LevelDetail, error) {
	if err := s.ready(); err != nil {
		return nil, apperr.WrapKind("service.Details", apperr.ErrService, err)
	}
	out, err := s.engine.Details(ctx, level)
	return out, apperr.WrapKind("service.Details", apperr.ErrStorage, err)
}

// LabelCounts returns the global garment label histogram.
func (s *Service) LabelCounts(ctx context.Context) (map[string]int, error) {
	if err := s.ready(); err != nil {
		return nil, apperr.WrapKind("service.LabelCounts", apperr.ErrService, err)
	}
	out, err := s.engine.LabelCounts(ctx)
	return out, apperr.WrapKind("service.LabelCounts", apperr.ErrStorage, err)
}

// LabelCount returns how often label was predicted, 0 when never.
func (s *Service) LabelCount(ctx context.Context, label string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, apperr.WrapKind("service.LabelCount", apperr.ErrService, err)
	}
	n, err := s.engine.LabelCount(ctx, label)
	return n, apperr.WrapKind("service.LabelCount", apperr.ErrStorage, err)
}

// Correlation pairs each comfort record with its session's latest reading.
func (s *Service) Correlation(ctx context.Context, level string) ([]types.CorrelationPoint, error) {
	if err := s.ready(); err != nil {
		return nil, apperr.WrapKind("service.Correlation", apperr.ErrService, err)
	}
	out, err := s.engine.Correlation(ctx, level)
	return out, apperr.WrapKind("service.Correlation", apperr.ErrStorage, err)
}

// Report returns the combined analytics view.
func (s *Service) Report(ctx context.Context) (types.Report, error) {
	if err := s.ready(); err != nil {
		return types.Report{}, apperr.WrapKind("service.Report", apperr.ErrService, err)
	}
	out, err := s.engine.Report(ctx)
	return out, apperr.WrapKind("service.Report", apperr.ErrStorage, err)
}
