package reading

import (
	"errors"
	"time"
)

// DefaultUserID is the owner assigned to readings when the caller does not name one
const DefaultUserID = "default_user"

// Reading represents a single meter reading owned by a user
type Reading struct {
	ID          string    `json:"id"`
	MeterNumber string    `json:"meterNumber"`
	Value       int64     `json:"reading"`
	PhotoURL    *string   `json:"photoUrl"`
	UserID      string    `json:"-"`
	CreatedAt   time.Time `json:"timestamp"`
}

// CreateRequest is the body accepted when creating a reading
type CreateRequest struct {
	MeterNumber string  `json:"meterNumber"`
	Value       *int64  `json:"reading"`
	PhotoURL    *string `json:"photoUrl"`
	UserID      string  `json:"userId"`
}

// UpdateRequest is the body accepted when replacing a reading's meter number and value
type UpdateRequest struct {
	ID          string `json:"id"`
	MeterNumber string `json:"meterNumber"`
	Value       *int64 `json:"reading"`
}

// ErrNotFound is returned when no reading matches the requested id
var ErrNotFound = errors.New("reading not found")

// ErrNotConfigured is returned by every operation when no storage connection was configured
var ErrNotConfigured = errors.New("DATABASE_URL not found")

// ValidationError reports a request that is missing required fields
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StoreError records which operation a storage failure interrupted
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
