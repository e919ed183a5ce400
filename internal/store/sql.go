package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"faceattend/internal/model"
)

// SQL dialects understood by SQLRepository.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// SQLRepository persists records in Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect string
}

// NewSQLRepository creates a repo on an open pool.
func NewSQLRepository(db *sql.DB, dialect string) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// rebind turns ? placeholders into $n for Postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// CreateUser inserts a user, filling id and creation time when empty.
func (r *SQLRepository) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO users (id, name, image_key, created_at)
		VALUES (?, ?, ?, ?)
	`), u.ID, u.Name, u.ImageKey, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindUserByName returns the first registered user with name.
func (r *SQLRepository) FindUserByName(ctx context.Context, name string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, name, image_key, created_at
		FROM users
		WHERE name = ?
		ORDER BY created_at, seq
		LIMIT 1
	`), name)
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.ImageKey, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users, oldest first.
func (r *SQLRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, image_key, created_at
		FROM users
		ORDER BY created_at, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.ImageKey, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

// CreateAttendance inserts an attendance, filling id and timestamp when empty.
func (r *SQLRepository) CreateAttendance(ctx context.Context, a *model.Attendance) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO attendances (id, user_id, timestamp, image_key)
		VALUES (?, ?, ?, ?)
	`), a.ID, a.UserID, a.Timestamp, a.ImageKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListAttendance returns all attendance joined with users, oldest first.
func (r *SQLRepository) ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.timestamp, a.image_key, u.id, u.name, u.image_key, u.created_at
		FROM attendances a
		LEFT JOIN users u ON u.id = a.user_id
		ORDER BY a.timestamp, a.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	records := []model.AttendanceRecord{}
	for rows.Next() {
		var (
			rec                      model.AttendanceRecord
			userID, name, userImgKey sql.NullString
			createdAt                sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.ImageKey, &userID, &name, &userImgKey, &createdAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if userID.Valid {
			rec.User = &model.User{
				ID:        userID.String,
				Name:      name.String,
				ImageKey:  userImgKey.String,
				CreatedAt: createdAt.Time,
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return records, nil
}

// Ping verifies connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (r *SQLRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
