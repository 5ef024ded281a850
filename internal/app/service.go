// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the MQTT subscriber.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/wearsense/internal/adapters/filestore"
	httpinference "github.com/okian/wearsense/internal/adapters/inference"
	"github.com/okian/wearsense/internal/adapters/mq/queue"
	"github.com/okian/wearsense/internal/adapters/mq/worker"
	"github.com/okian/wearsense/internal/adapters/repository"
	"github.com/okian/wearsense/internal/config"
	"github.com/okian/wearsense/internal/domain/analytics"
	"github.com/okian/wearsense/internal/domain/inference"
	"github.com/okian/wearsense/internal/domain/session"
	"github.com/okian/wearsense/pkg/logger"
	"github.com/okian/wearsense/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// Service implements ingestion and analytics for wearsense.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	registry   *session.Registry
	engine     *analytics.Engine
	files      *filestore.Store
	detector   inference.Detector
	classifier inference.Classifier
	queue      *queue.InMemoryQueue
	pool       *worker.Pool
	dispatch   *dispatcher

	// Configuration
	workerCount      int
	queueSize        int
	inferenceTimeout time.Duration
	storageDriver    string
	storageDSN       string
	mediaRoot        string
	uploadDir        string
	detectedDir      string
	retentionMax     int
	retentionBatch   int
	retentionScope   string
	detectionURL     string
	classifierURL    string
	detectionLatency time.Duration
	sessionCacheTTL  time.Duration
	sensorNeedsReg   bool
	comfortNeedsReg  bool

	// State
	started   bool
	ownsStore bool
	cancel    context.CancelFunc

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig copies every service setting from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.workerCount = cfg.InferenceWorkers
		s.queueSize = cfg.InferenceQueueSize
		s.inferenceTimeout = cfg.InferenceTimeout()
		s.storageDriver = cfg.StorageDriver
		s.storageDSN = cfg.StorageDSN
		s.mediaRoot = cfg.MediaRoot
		s.uploadDir = cfg.UploadDir
		s.detectedDir = cfg.DetectedDir
		s.retentionMax = cfg.RetentionMaxFiles
		s.retentionBatch = cfg.RetentionBatch
		s.retentionScope = cfg.RetentionScope
		s.detectionURL = cfg.DetectionURL
		s.classifierURL = cfg.ClassifierURL
		s.detectionLatency = cfg.DetectionLatency()
		s.sessionCacheTTL = cfg.SessionCacheTTL()
		s.sensorNeedsReg = cfg.SensorRequiresRegisteredSecret
		s.comfortNeedsReg = cfg.ComfortRequiresRegisteredSecret
	}
}

// WithWorkerCount sets the number of inference workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending inference tasks.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithInferenceTimeout bounds how long a request waits for a model call.
func WithInferenceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.inferenceTimeout = d
		}
	}
}

// WithMediaRoot sets the directory holding uploads and detected images.
func WithMediaRoot(root string) Option {
	return func(s *Service) {
		if root != "" {
			s.mediaRoot = root
		}
	}
}

// WithRetention sets the per-directory file bound, eviction batch and scope.
func WithRetention(maxFiles, batch int, scope string) Option {
	return func(s *Service) {
		if maxFiles > 0 {
			s.retentionMax = maxFiles
		}
		if batch > 0 {
			s.retentionBatch = batch
		}
		if scope != "" {
			s.retentionScope = scope
		}
	}
}

// WithSecretPolicy selects whether sensor and comfort ingestion require a
// previously registered secret.
func WithSecretPolicy(sensorRequiresRegistered, comfortRequiresRegistered bool) Option {
	return func(s *Service) {
		s.sensorNeedsReg = sensorRequiresRegistered
		s.comfortNeedsReg = comfortRequiresRegistered
	}
}

// WithStore injects a record store. The caller keeps ownership of it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDetector injects the detection model.
func WithDetector(d inference.Detector) Option {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithClassifier injects the comfort classifier.
func WithClassifier(c inference.Classifier) Option {
	return func(s *Service) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        256,
		inferenceTimeout: 30 * time.Second,
		storageDriver:    repository.DriverMemory,
		mediaRoot:        "media",
		uploadDir:        "uploads",
		detectedDir:      "detected_images",
		retentionMax:     10,
		retentionBatch:   5,
		retentionScope:   filestore.ScopeGlobal,
		detectionLatency: 50 * time.Millisecond,
		sessionCacheTTL:  5 * time.Minute,
		comfortNeedsReg:  true,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting wearsense service...")

	if s.store == nil {
		store, err := repository.Open(ctx, s.storageDriver, s.storageDSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
		s.logger.Info(ctx, "record store opened", logger.String("driver", s.storageDriver))
	}

	files, err := filestore.New(s.mediaRoot, []string{s.uploadDir, s.detectedDir},
		filestore.WithRetention(s.retentionMax, s.retentionBatch),
		filestore.WithScope(s.retentionScope),
		filestore.WithLogger(s.logger.Named("filestore")),
	)
	if err != nil {
		s.closeOwnedStore()
		return fmt.Errorf("prepare media directories: %w", err)
	}
	s.files = files

	if err := s.initModels(); err != nil {
		s.closeOwnedStore()
		return err
	}

	s.registry = session.NewRegistry(s.store,
		session.WithCacheTTL(s.sessionCacheTTL),
		session.WithLogger(s.logger.Named("session")),
	)
	s.engine = analytics.NewEngine(s.store)

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.logger)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)
	s.dispatch = &dispatcher{queue: s.queue, timeout: s.inferenceTimeout}

	s.started = true
	s.logger.Info(ctx, "wearsense service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("inferenceTimeout", s.inferenceTimeout),
		logger.String("retentionScope", s.files.Scope()),
	)
	return nil
}

// initModels picks remote model clients when URLs are configured and the
// in-process simulations otherwise.
func (s *Service) initModels() error {
	if s.detector == nil {
		if s.detectionURL != "" {
			d, err := httpinference.NewDetector(s.detectionURL, httpinference.WithLogger(s.logger))
			if err != nil {
				return fmt.Errorf("detector: %w", err)
			}
			s.detector = d
		} else {
			s.detector = inference.NewSimulatedDetector(inference.WithLatency(s.detectionLatency))
		}
	}
	if s.classifier == nil {
		if s.classifierURL != "" {
			c, err := httpinference.NewClassifier(s.classifierURL, httpinference.WithLogger(s.logger))
			if err != nil {
				return fmt.Errorf("classifier: %w", err)
			}
			s.classifier = c
		} else {
			s.classifier = inference.NewSimulatedClassifier()
		}
	}
	return nil
}

func (s *Service) closeOwnedStore() {
	if s.ownsStore && s.store != nil {
		_ = s.store.Close()
		s.store = nil
		s.ownsStore = false
	}
}

// Stop gracefully shuts down the service. Queued inference tasks are drained
// before the store is closed.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping wearsense service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.closeOwnedStore()

	s.started = false
	s.logger.Info(ctx, "wearsense service stopped")
}

// MediaRoot returns the directory served under MediaPrefix.
func (s *Service) MediaRoot() string {
	return s.mediaRoot
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"inferenceTimeout": s.inferenceTimeout.String(),
		"storageDriver":    s.storageDriver,
		"retentionScope":   s.retentionScope,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["tasksProcessed"] = s.pool.Processed()
		stats["cachedSessions"] = s.registry.CachedCount()
		if counts, err := s.store.Counts(ctx); err == nil {
			stats["records"] = counts
		} else {
			s.logger.Warn(ctx, "counting records failed", logger.Error(err))
		}

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}

	return stats
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}
