package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"faceattend/internal/model"
)

// MemoryRepository is an in-process repository for dev and tests.
type MemoryRepository struct {
	mu          sync.Mutex
	users       []model.User
	attendances []model.Attendance
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, *u)
	return nil
}

// FindUserByName returns the first inserted user with name.
func (r *MemoryRepository) FindUserByName(_ context.Context, name string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Name == name {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, len(r.users))
	copy(out, r.users)
	return out, nil
}

func (r *MemoryRepository) CreateAttendance(_ context.Context, a *model.Attendance) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attendances = append(r.attendances, *a)
	return nil
}

func (r *MemoryRepository) ListAttendance(_ context.Context) ([]model.AttendanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := make(map[string]model.User, len(r.users))
	for _, u := range r.users {
		if _, seen := byID[u.ID]; !seen {
			byID[u.ID] = u
		}
	}

	out := make([]model.AttendanceRecord, 0, len(r.attendances))
	for _, a := range r.attendances {
		rec := model.AttendanceRecord{ID: a.ID, Timestamp: a.Timestamp, ImageKey: a.ImageKey}
		if u, ok := byID[a.UserID]; ok {
			rec.User = &u
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *MemoryRepository) Migrate(context.Context) error { return nil }

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
