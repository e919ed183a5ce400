// Package store persists users and attendance records.
//
// A Repository is chosen from the scheme of the database URL:
// postgres:// and postgresql:// open Postgres through pgx, sqlite:// opens
// a local SQLite file, mongodb:// and mongodb+srv:// talk to MongoDB and
// memory:// keeps everything in process.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"faceattend/internal/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Repository is the storage port used by the attendance workflow.
type Repository interface {
	CreateUser(ctx context.Context, u *model.User) error
	// FindUserByName returns the oldest user with the given name.
	FindUserByName(ctx context.Context, name string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateAttendance(ctx context.Context, a *model.Attendance) error
	// ListAttendance returns every attendance with its user resolved.
	ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error)
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by databaseURL.
func Open(ctx context.Context, databaseURL string) (Repository, error) {
	scheme, _, _ := strings.Cut(databaseURL, "://")
	switch scheme {
	case "postgres", "postgresql":
		db, err := NewDB(ctx, "pgx", databaseURL)
		if err != nil {
			return nil, err
		}
		return NewSQLRepository(db, DialectPostgres), nil
	case "sqlite":
		db, err := NewDB(ctx, "sqlite3", sqliteDSN(strings.TrimPrefix(databaseURL, "sqlite://")))
		if err != nil {
			return nil, err
		}
		return NewSQLRepository(db, DialectSQLite), nil
	case "mongodb", "mongodb+srv":
		return NewMongoRepository(ctx, databaseURL)
	case "memory":
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme %q", scheme)
	}
}
