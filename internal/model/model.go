package model

import "time"

// User is a person enrolled with a reference photo.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	ImageKey  string    `json:"imageKey" bson:"imageKey"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Attendance is a single successful face match.
type Attendance struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	ImageKey  string    `json:"imageKey" bson:"imageKey"`
}

// AttendanceRecord is an Attendance with its user resolved.
// User is nil when the referenced user no longer exists.
type AttendanceRecord struct {
	ID        string    `json:"id"`
	User      *User     `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
	ImageKey  string    `json:"imageKey"`
}
