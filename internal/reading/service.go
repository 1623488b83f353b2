package reading

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates unique IDs for readings
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.New().String()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Service validates reading requests and applies them to a Store
type Service struct {
	store       Store
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with UUID ids and the wall clock
func NewService(store Store) *Service {
	return &Service{
		store:       store,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// List returns the readings of userID (the default user when empty), newest first
func (s *Service) List(ctx context.Context, userID string) ([]*Reading, error) {
	if userID == "" {
		userID = DefaultUserID
	}
	readings, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, &StoreError{Op: "listing readings", Err: err}
	}
	return readings, nil
}

// Create validates req, assigns an id and timestamp, and persists the reading
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Reading, error) {
	if req.MeterNumber == "" || req.Value == nil {
		return nil, &ValidationError{Message: "meterNumber and reading are required"}
	}

	userID := req.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	r := &Reading{
		ID:          s.idGenerator.Generate(),
		MeterNumber: req.MeterNumber,
		Value:       *req.Value,
		PhotoURL:    req.PhotoURL,
		UserID:      userID,
		CreatedAt:   s.timeSource.Now(),
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, &StoreError{Op: "saving reading", Err: err}
	}
	return r, nil
}

// Update replaces the meter number and value of an existing reading
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Reading, error) {
	if req.ID == "" || req.MeterNumber == "" || req.Value == nil {
		return nil, &ValidationError{Message: "id, meterNumber and reading are required"}
	}

	r, err := s.store.Update(ctx, req.ID, req.MeterNumber, *req.Value)
	if err != nil {
		return nil, &StoreError{Op: "updating reading " + req.ID, Err: err}
	}
	return r, nil
}

// Delete removes a reading. Missing ids are not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Message: "id is required"}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return &StoreError{Op: "deleting reading " + id, Err: err}
	}
	return nil
}

// Stats summarises the readings of userID per meter
func (s *Service) Stats(ctx context.Context, userID string) (*Statistics, error) {
	readings, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := Summarize(readings)
	return &stats, nil
}
