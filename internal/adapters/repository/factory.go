package repository

import (
	"context"
	"fmt"
)

// Settings selects and configures a backend.
type Settings struct {
	Backend    string
	DataPath   string
	SQLitePath string
	RedisAddr  string
	RedisKey   string
}

// Open builds the repository named by s.Backend.
func Open(ctx context.Context, s Settings, opts ...Option) (Repository, error) {
	switch s.Backend {
	case BackendJSON, "":
		return NewFileStore(s.DataPath, opts...), nil
	case BackendSQLite:
		return OpenSQLite(ctx, s.SQLitePath, opts...)
	case BackendRedis:
		return NewRedisStore(ctx, NewRedisClient(s.RedisAddr), s.RedisKey, opts...)
	default:
		return nil, fmt.Errorf("%q: %w", s.Backend, ErrUnknownBackend)
	}
}
