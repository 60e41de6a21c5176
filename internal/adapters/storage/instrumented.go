package storage

import (
	"context"
	"io"
	"time"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/output"
)

// Instrumented records the outcome and duration of every storage call and
// wraps failures in a domain.StorageError.
type Instrumented struct {
	next    output.ObjectStorage
	metrics output.MetricsCollector
}

// NewInstrumented wraps next with metrics.
func NewInstrumented(next output.ObjectStorage, metrics output.MetricsCollector) *Instrumented {
	return &Instrumented{next: next, metrics: metrics}
}

// finish observes the call and returns err wrapped.
func (s *Instrumented) finish(operation, key string, start time.Time, err error) error {
	s.metrics.IncStorageOperations(operation, err == nil)
	s.metrics.ObserveStorageDuration(operation, time.Since(start))
	if err == nil {
		return nil
	}
	return &domain.StorageError{Operation: operation, Key: key, Err: err}
}

// List implements ObjectStorage.
func (s *Instrumented) List(ctx context.Context) ([]output.StorageObject, error) {
	start := time.Now()
	objects, err := s.next.List(ctx)
	return objects, s.finish("list", "", start, err)
}

// Download implements ObjectStorage.
func (s *Instrumented) Download(ctx context.Context, key string, dest string) error {
	start := time.Now()
	return s.finish("download", key, start, s.next.Download(ctx, key, dest))
}

// GetReader implements ObjectStorage.
func (s *Instrumented) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	r, err := s.next.GetReader(ctx, key)
	return r, s.finish("get", key, start, err)
}

// Exists implements ObjectStorage.
func (s *Instrumented) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.next.Exists(ctx, key)
	return ok, s.finish("exists", key, start, err)
}
