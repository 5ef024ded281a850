package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
	"golang.org/x/sync/errgroup"

	"github.com/okian/wearsense/internal/adapters/repository"
	"github.com/okian/wearsense/internal/domain/apperr"
	"github.com/okian/wearsense/internal/domain/inference"
	"github.com/okian/wearsense/internal/domain/model"
	"github.com/okian/wearsense/internal/domain/types"
	"github.com/okian/wearsense/pkg/logger"
	"github.com/okian/wearsense/pkg/metrics"
)

// Ingestion kinds used in metrics.
const (
	kindImage   = "image"
	kindSensor  = "sensor"
	kindComfort = "comfort"
)

var extensions = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"bmp":  ".bmp",
	"tiff": ".tiff",
	"webp": ".webp",
}

// validateImage sniffs the payload header and returns the file extension of
// its format.
func validateImage(payload []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	ext, ok := extensions[format]
	if !ok {
		return "", fmt.Errorf("unsupported image format %q", format)
	}
	return ext, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrMissingRequiredData),
		errors.Is(err, apperr.ErrInvalidImageFormat),
		errors.Is(err, apperr.ErrInvalidSecret),
		errors.Is(err, apperr.ErrValidation):
		return "rejected"
	default:
		return "failed"
	}
}

// IngestImage runs the full pipeline for one upload and returns the session
// snapshot. Records persisted before a failing step stay committed.
func (s *Service) IngestImage(ctx context.Context, secret string, payload []byte) (snap types.Snapshot, err error) {
	const op = "service.IngestImage"
	defer func() { metrics.RecordIngestion(kindImage, outcome(err)) }()

	if err := s.ready(); err != nil {
		return types.Snapshot{}, apperr.WrapKind(op, apperr.ErrService, err)
	}
	if secret == "" || len(payload) == 0 {
		return types.Snapshot{}, apperr.NewKind(op, apperr.ErrMissingRequiredData, MsgMissingRequiredData)
	}
	ext, err := validateImage(payload)
	if err != nil {
		s.logger.Debug(ctx, "rejected upload", logger.Error(err))
		return types.Snapshot{}, apperr.NewKind(op, apperr.ErrInvalidImageFormat, MsgInvalidImage)
	}

	sess, err := s.registry.ResolveOrCreate(ctx, secret)
	if err != nil {
		return types.Snapshot{}, apperr.WrapKind(op, apperr.ErrStorage, err)
	}

	if _, err := s.files.Write(ctx, s.uploadDir, sess.ID, ext, payload); err != nil {
		return types.Snapshot{}, apperr.WrapKind(op, apperr.ErrStorage, err)
	}

	det, err := submit(ctx, s.dispatch, "detect", func(ctx context.Context) (inference.Detection, error) {
		return s.detector.Detect(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, inference.ErrUndecodableImage) {
			return types.Snapshot{}, apperr.NewKind(op, apperr.ErrInvalidImageFormat, MsgInvalidImage)
		}
		return types.Snapshot{}, err
	}

	if err := s.persistDetection(ctx, sess.ID, det); err != nil {
		return types.Snapshot{}, apperr.WrapKind(op, apperr.ErrStorage, err)
	}

	comforts, err := s.classify(ctx, sess.ID, det.Pairs)
	if err != nil {
		return types.Snapshot{}, err
	}

	if removed, err := s.files.Retain(ctx, sess.ID); err != nil {
		metrics.RecordErrorByComponent("filestore", "retention")
		s.logger.Warn(ctx, "retention failed", logger.String("session", sess.ID), logger.Error(err))
	} else if removed > 0 {
		s.logger.Debug(ctx, "retention applied", logger.Int("removed", removed))
	}

	snap, err = s.snapshot(ctx, sess.ID)
	if err != nil {
		return types.Snapshot{}, apperr.WrapKind(op, apperr.ErrStorage, err)
	}
	snap.ComfortLevel = comforts
	return snap, nil
}

// persistDetection stores one Prediction per pair in detector order, then the
// annotated image.
func (s *Service) persistDetection(ctx context.Context, sessionID string, det inference.Detection) error { //nolint:gocritic // hugeParam
	for _, pair := range det.Pairs {
		p := &model.Prediction{SessionID: sessionID, Upper: pair.Upper, Lower: pair.Lower}
		if err := s.store.AddPrediction(ctx, p); err != nil {
			return fmt.Errorf("add prediction: %w", err)
		}
	}
	metrics.RecordPredictionsStored(len(det.Pairs))

	rel, err := s.files.Write(ctx, s.detectedDir, sessionID, det.Ext, det.Annotated)
	if err != nil {
		return fmt.Errorf("write detected image: %w", err)
	}
	img := &model.Image{SessionID: sessionID, Payload: det.Annotated, FileName: rel}
	if err := s.store.AddImage(ctx, img); err != nil {
		return fmt.Errorf("add image: %w", err)
	}
	metrics.RecordImageStored()
	return nil
}

// classify fuses the pairs with the session's latest reading. It returns nil
// when no usable reading exists and an empty slice when there are no pairs.
func (s *Service) classify(ctx context.Context, sessionID string, pairs []model.GarmentPair) (*[]types.ComfortView, error) {
	const op = "service.classify"

	latest, err := s.store.LatestSensor(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.WrapKind(op, apperr.ErrStorage, err)
	}
	if !latest.Usable() {
		return nil, nil
	}

	views := []types.ComfortView{}
	if len(pairs) == 0 {
		return &views, nil
	}

	labels, err := submit(ctx, s.dispatch, "classify", func(ctx context.Context) ([]string, error) {
		out, err := s.classifier.Classify(ctx, pairs, *latest.Temperature, *latest.Humidity)
		if err != nil {
			return nil, err
		}
		if len(out) != len(pairs) {
			return nil, fmt.Errorf("%w: got %d for %d pairs", inference.ErrLabelMismatch, len(out), len(pairs))
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	for _, label := range labels {
		c := &model.Comfort{SessionID: sessionID, Level: label}
		if err := s.store.AddComfort(ctx, c); err != nil {
			return nil, apperr.WrapKind(op, apperr.ErrStorage, err)
		}
		views = append(views, comfortView(*c))
	}
	metrics.RecordComfortsStored(len(labels))
	return &views, nil
}

// snapshot reads the session's records concurrently.
func (s *Service) snapshot(ctx context.Context, sessionID string) (types.Snapshot, error) {
	var (
		preds   []model.Prediction
		images  []model.Image
		sensors []model.Sensor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		preds, err = s.store.Predictions(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		images, err = s.store.Images(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		sensors, err = s.store.Sensors(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Snapshot{}, err
	}
	return types.Snapshot{
		Predictions: mapViews(preds, predictionView),
		Images:      mapViews(images, imageView),
		Sensors:     mapViews(sensors, sensorView),
	}, nil
}

// SensorInput is a direct sensor report. Nil readings are absent fields.
type SensorInput struct {
	Secret      string
	Temperature *float64
	Humidity    *float64
	Timestamp   time.Time
}

// ParseReading parses an optional numeric form field. An empty value is
// absent; anything else must be a finite number.
func ParseReading(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.NewKind("service.ParseReading", apperr.ErrValidation, fmt.Sprintf(msgInvalidNumber, field))
	}
	return &v, nil
}

// IngestSensor stores one reading. Both values are required.
func (s *Service) IngestSensor(ctx context.Context, in SensorInput) (view types.SensorView, err error) {
	const op = "service.IngestSensor"
	defer func() { metrics.RecordIngestion(kindSensor, outcome(err)) }()

	if err := s.ready(); err != nil {
		return types.SensorView{}, apperr.WrapKind(op, apperr.ErrService, err)
	}
	if in.Secret == "" || in.Temperature == nil || in.Humidity == nil {
		return types.SensorView{}, apperr.NewKind(op, apperr.ErrMissingRequiredData, MsgInvalidRequestData)
	}

	sess, err := s.resolve(ctx, op, in.Secret, s.sensorNeedsReg, MsgInvalidSecret)
	if err != nil {
		return types.SensorView{}, err
	}

	rec := &model.Sensor{
		SessionID:   sess.ID,
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		Timestamp:   in.Timestamp,
	}
	if err := s.store.AddSensor(ctx, rec); err != nil {
		return types.SensorView{}, apperr.WrapKind(op, apperr.ErrStorage, err)
	}
	metrics.RecordSensorStored()
	return sensorView(*rec), nil
}

// IngestComfort stores one Comfort record per non-empty level, in order.
func (s *Service) IngestComfort(ctx context.Context, secret string, levels []string) (views []types.ComfortView, err error) {
	const op = "service.IngestComfort"
	defer func() { metrics.RecordIngestion(kindComfort, outcome(err)) }()

	if err := s.ready(); err != nil {
		return nil, apperr.WrapKind(op, apperr.ErrService, err)
	}

	clean := make([]string, 0, len(levels))
	for _, l := range levels {
		if l = strings.TrimSpace(l); l != "" {
			clean = append(clean, l)
		}
	}
	if secret == "" || len(clean) == 0 {
		return nil, apperr.NewKind(op, apperr.ErrMissingRequiredData, MsgMissingRequiredData)
	}

	sess, err := s.resolve(ctx, op, secret, s.comfortNeedsReg, MsgInvalidComfort)
	if err != nil {
		return nil, err
	}

	views = make([]types.ComfortView, 0, len(clean))
	for _, level := range clean {
		rec := &model.Comfort{SessionID: sess.ID, Level: level}
		if err := s.store.AddComfort(ctx, rec); err != nil {
			return nil, apperr.WrapKind(op, apperr.ErrStorage, err)
		}
		views = append(views, comfortView(*rec))
	}
	metrics.RecordComfortsStored(len(views))
	return views, nil
}

// resolve looks the secret up when registration is required and creates
// the session otherwise.
func (s *Service) resolve(ctx context.Context, op, secret string, mustExist bool, rejectMsg string) (model.Session, error) {
	if !mustExist {
		sess, err := s.registry.ResolveOrCreate(ctx, secret)
		if err != nil {
			return model.Session{}, apperr.WrapKind(op, apperr.ErrStorage, err)
		}
		return sess, nil
	}
	sess, err := s.registry.Lookup(ctx, secret)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return model.Session{}, apperr.NewKind(op, apperr.ErrInvalidSecret, rejectMsg)
	}
	if err != nil {
		return model.Session{}, apperr.WrapKind(op, apperr.ErrStorage, err)
	}
	return sess, nil
}
