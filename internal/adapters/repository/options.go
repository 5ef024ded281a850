package repository

import "time"

type storeOptions struct {
	now          func() time.Time
	maxOpenConns int
	debugSQL     bool
}

func defaultStoreOptions() storeOptions {
	return storeOptions{now: time.Now}
}

// Option applies a configuration option to a Store.
type Option func(*storeOptions)

// WithClock replaces the time source used for assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxOpenConns bounds the SQL connection pool. SQLite defaults to one.
func WithMaxOpenConns(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithSQLDebug enables gorm statement logging.
func WithSQLDebug(enabled bool) Option {
	return func(o *storeOptions) {
		o.debugSQL = enabled
	}
}
