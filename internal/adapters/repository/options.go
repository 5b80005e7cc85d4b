package repository

import "time"

// PostgresOption configures a PostgresStore.
type PostgresOption func(*postgresSettings)

type postgresSettings struct {
	maxConns        int32
	minConns        int32
	maxConnLifetime time.Duration
	connectTimeout  time.Duration
}

func defaultPostgresSettings() postgresSettings {
	return postgresSettings{
		maxConns:        25,
		minConns:        2,
		maxConnLifetime: 5 * time.Minute,
		connectTimeout:  10 * time.Second,
	}
}

// WithMaxConns bounds the pool size.
func WithMaxConns(n int32) PostgresOption {
	return func(s *postgresSettings) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithMinConns keeps n idle connections open.
func WithMinConns(n int32) PostgresOption {
	return func(s *postgresSettings) {
		if n >= 0 {
			s.minConns = n
		}
	}
}

// WithMaxConnLifetime recycles connections older than d.
func WithMaxConnLifetime(d time.Duration) PostgresOption {
	return func(s *postgresSettings) {
		if d > 0 {
			s.maxConnLifetime = d
		}
	}
}

// WithConnectTimeout bounds the initial connect and ping.
func WithConnectTimeout(d time.Duration) PostgresOption {
	return func(s *postgresSettings) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}
