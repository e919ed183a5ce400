package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"faceattend/internal/model"
)

const defaultMongoDatabase = "faceattend"

// BSON dates keep milliseconds only; _id breaks ties in insertion order.
var userOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

// newMongoID returns a UUIDv7 string. Successive ids from one process
// sort in creation order.
func newMongoID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// MongoRepository keeps users and attendances as documents.
type MongoRepository struct {
	client      *mongo.Client
	users       *mongo.Collection
	attendances *mongo.Collection
}

// NewMongoRepository connects to uri and verifies the primary is reachable.
// The database name is taken from the uri path.
func NewMongoRepository(ctx context.Context, uri string) (*MongoRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(mongoDatabaseName(uri))
	return &MongoRepository{
		client:      client,
		users:       db.Collection("users"),
		attendances: db.Collection("attendances"),
	}, nil
}

func mongoDatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

// CreateUser inserts a user document.
func (r *MongoRepository) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = newMongoID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if _, err := r.users.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindUserByName returns the oldest user document with name.
func (r *MongoRepository) FindUserByName(ctx context.Context, name string) (*model.User, error) {
	opts := options.FindOne().SetSort(userOrder)
	var u model.User
	if err := r.users.FindOne(ctx, bson.M{"name": name}, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

// ListUsers returns all user documents, oldest first.
func (r *MongoRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	opts := options.Find().SetSort(userOrder)
	cur, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	users := []model.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

// CreateAttendance inserts an attendance document.
func (r *MongoRepository) CreateAttendance(ctx context.Context, a *model.Attendance) error {
	if a.ID == "" {
		a.ID = newMongoID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if _, err := r.attendances.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type mongoAttendanceRecord struct {
	ID        string      `bson:"_id"`
	Timestamp time.Time   `bson:"timestamp"`
	ImageKey  string      `bson:"imageKey"`
	User      *model.User `bson:"user,omitempty"`
}

// ListAttendance resolves userId with a $lookup on the users collection.
func (r *MongoRepository) ListAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: r.users.Name()},
			{Key: "localField", Value: "userId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$user"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
	cur, err := r.attendances.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	var docs []mongoAttendanceRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	records := make([]model.AttendanceRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, model.AttendanceRecord{
			ID:        d.ID,
			User:      d.User,
			Timestamp: d.Timestamp,
			ImageKey:  d.ImageKey,
		})
	}
	return records, nil
}

// Migrate creates the lookup indexes.
func (r *MongoRepository) Migrate(ctx context.Context) error {
	if _, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}, {Key: "createdAt", Value: 1}},
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := r.attendances.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
	}); err != nil {
		return fmt.Errorf("attendances index: %w", err)
	}
	return nil
}

// Ping verifies connectivity.
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
