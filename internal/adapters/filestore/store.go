// Package filestore writes uploaded and annotated images below a media root
// and keeps the watched directories bounded.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/wearsense/pkg/logger"
	"github.com/okian/wearsense/pkg/metrics"
)

// Retention scopes.
const (
	ScopeGlobal  = "global"
	ScopeSession = "session"
)

const (
	defaultMaxFiles = 10
	defaultBatch    = 5
	nameTimeLayout  = "20060102T150405.000000000Z"
	dirPerm         = 0o755
	filePerm        = 0o644
)

// Store owns the watched directories under root. Writes and evictions are
// serialised; other processes sharing the directories are not coordinated.
type Store struct {
	mu       sync.Mutex
	root     string
	watched  map[string]struct{}
	order    []string
	scope    string
	retainer Retainer
	now      func() time.Time
	log      logger.Logger
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithRetention sets the file bound and the eviction batch.
func WithRetention(maxFiles, batch int) Option {
	return func(s *Store) {
		if maxFiles > 0 {
			s.retainer.MaxFiles = maxFiles
		}
		if batch > 0 {
			s.retainer.Batch = batch
		}
	}
}

// WithScope selects global or per-session retention.
func WithScope(scope string) Option {
	return func(s *Store) {
		if scope == ScopeGlobal || scope == ScopeSession {
			s.scope = scope
		}
	}
}

// WithClock replaces the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the watched directories below root.
func New(root string, dirs []string, opts ...Option) (*Store, error) {
	s := &Store{
		root:     root,
		watched:  make(map[string]struct{}, len(dirs)),
		scope:    ScopeGlobal,
		retainer: Retainer{MaxFiles: defaultMaxFiles, Batch: defaultBatch},
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, d := range dirs {
		d = path.Clean(filepath.ToSlash(d))
		if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(d)), dirPerm); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
		if _, dup := s.watched[d]; !dup {
			s.watched[d] = struct{}{}
			s.order = append(s.order, d)
		}
	}
	return s, nil
}

// Root returns the media root.
func (s *Store) Root() string { return s.root }

// Scope returns the retention scope.
func (s *Store) Scope() string { return s.scope }

func (s *Store) dirFor(dir, sessionID string) string {
	if s.scope == ScopeSession && sessionID != "" {
		return path.Join(dir, sessionID)
	}
	return dir
}

// Write stores data in a watched directory under a timestamp-prefixed name
// and returns its slash-separated path relative to the root.
func (s *Store) Write(_ context.Context, dir, sessionID, ext string, data []byte) (string, error) {
	dir = path.Clean(filepath.ToSlash(dir))
	if _, ok := s.watched[dir]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDirectory, dir)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rel := path.Join(s.dirFor(dir, sessionID), s.now().UTC().Format(nameTimeLayout)+"_"+uuid.NewString()+ext)
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(full, data, filePerm); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return rel, nil
}

// Retain enforces the bound on every watched directory, or on the session's
// subdirectories in session scope. It returns the number of removed files.
func (s *Store) Retain(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, d := range s.order {
		rel := s.dirFor(d, sessionID)
		removed, err := s.retainer.Enforce(filepath.Join(s.root, filepath.FromSlash(rel)))
		total += len(removed)
		if len(removed) > 0 {
			metrics.RecordRetentionEvictions(d, len(removed))
			s.log.Debug(ctx, "retention evicted files",
				logger.String("directory", rel),
				logger.Int("removed", len(removed)),
			)
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Resolve maps a stored relative path back to a file system path, refusing
// anything outside the root.
func (s *Store) Resolve(rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
