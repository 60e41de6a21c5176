package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// errObjectNotFound marks a missing object. It is never retried.
var errObjectNotFound = errors.New("object not found")

// RetryConfig controls how remote downloads are retried.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are given.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      4,
		InitialInterval: 500 * time.Millisecond,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// retrier runs remote operations with exponential backoff.
type retrier struct {
	cfg    RetryConfig
	logger *slog.Logger
}

func newRetrier(cfg RetryConfig, logger *slog.Logger) retrier {
	if cfg.InitialInterval <= 0 {
		cfg = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return retrier{cfg: cfg, logger: logger}
}

// do runs op until it succeeds, returns a permanent error, the retries are
// used up or ctx is done.
func (r retrier) do(ctx context.Context, name string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxElapsedTime = r.cfg.MaxElapsedTime

	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.MaxRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if errors.Is(err, errObjectNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		r.logger.Warn("storage operation failed, retrying", "operation", name, "error", err, "wait", wait)
	})
}

// writeFile streams body to dest through a temporary file in the same
// directory, so readers never see a partial shapefile.
func writeFile(dest string, body io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
