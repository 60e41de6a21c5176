package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/meridian/internal/domain"
	"github.com/jobrunner/meridian/internal/ports/input"
	"github.com/jobrunner/meridian/internal/ports/output"
)

// ErrEmulatorRunning is returned by Start when the tick loop already runs.
var ErrEmulatorRunning = errors.New("emulator already running")

// EmulatorConfig holds the initial state of the simulated receiver.
type EmulatorConfig struct {
	Start      domain.Position
	Bearing    domain.Azimuth
	Speed      domain.Speed
	Interval   time.Duration
	Buffer     int     // Sentences queued per subscriber before it is dropped
	Altitude   float64 // Meters above mean sea level
	Satellites int
}

// EmulatorService simulates a moving GPS receiver. On every tick it advances
// the position by dead reckoning and fans out RMC and GGA sentences.
type EmulatorService struct {
	metrics output.MetricsCollector
	logger  *slog.Logger
	cfg     EmulatorConfig
	now     func() time.Time

	mu       sync.RWMutex
	position domain.Position
	bearing  domain.Azimuth
	speed    domain.Speed
	subs     map[string]chan string

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEmulatorService creates an emulator. It does not tick until Start.
func NewEmulatorService(metrics output.MetricsCollector, logger *slog.Logger, cfg EmulatorConfig) (*EmulatorService, error) {
	if err := cfg.Start.Validate(); err != nil {
		return nil, err
	}
	if cfg.Speed.ToMetersPerSecond() <= 0 {
		return nil, domain.ErrNonPositiveSpeed
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	if cfg.Satellites == 0 {
		cfg.Satellites = 8
	}

	return &EmulatorService{
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		position: cfg.Start.Normalize(),
		bearing:  cfg.Bearing.Normalize(),
		speed:    cfg.Speed,
		subs:     make(map[string]chan string),
	}, nil
}

// Start runs the tick loop in the background until ctx is cancelled or
// Stop is called.
func (e *EmulatorService) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrEmulatorRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})

	e.logger.Info("starting NMEA emulator",
		"position", e.position.DecimalString(),
		"bearing", e.bearing.Degrees(),
		"speed", e.speed.String(),
		"interval", e.cfg.Interval,
	)

	go e.run(ctx, e.done)
	return nil
}

func (e *EmulatorService) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	last := e.now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := e.now()
			e.Tick(now.Sub(last), now)
			last = now
		}
	}
}

// Tick advances the simulation by elapsed and publishes the fix stamped at.
func (e *EmulatorService) Tick(elapsed time.Duration, at time.Time) {
	e.mu.Lock()
	next, err := e.position.TranslateAt(e.bearing, e.speed, elapsed)
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("emulator step failed", "error", err)
		return
	}
	e.position = next
	fix := domain.Fix{
		Position:   next,
		Time:       at,
		Speed:      e.speed,
		Course:     e.bearing,
		Satellites: e.cfg.Satellites,
		HDOP:       0.9,
		Altitude:   e.cfg.Altitude,
	}
	e.mu.Unlock()

	e.publish(domain.FormatRMC(fix))
	e.publish(domain.FormatGGA(fix))
}

// publish hands a sentence to every subscriber. A subscriber whose buffer
// is full is removed rather than blocking the loop.
func (e *EmulatorService) publish(sentence string) {
	e.mu.Lock()
	var dropped []string
	for id, ch := range e.subs {
		select {
		case ch <- sentence:
		default:
			close(ch)
			delete(e.subs, id)
			dropped = append(dropped, id)
		}
	}
	count := len(e.subs)
	e.mu.Unlock()

	for _, id := range dropped {
		e.logger.Warn("dropping slow NMEA subscriber", "subscriber", id)
	}
	if len(dropped) > 0 {
		e.metrics.SetEmulatorSubscribers(count)
	}
}

// Stop ends the tick loop and closes all subscriptions.
func (e *EmulatorService) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.done
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.mu.Unlock()

	cancel()
	<-done
	e.metrics.SetEmulatorSubscribers(0)
	e.logger.Info("NMEA emulator stopped")
}

// Running reports whether the tick loop is active.
func (e *EmulatorService) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Subscribe registers a listener.
func (e *EmulatorService) Subscribe() *input.Subscription {
	ch := make(chan string, e.cfg.Buffer)
	id := uuid.NewString()

	e.mu.Lock()
	e.subs[id] = ch
	count := len(e.subs)
	e.mu.Unlock()

	e.metrics.SetEmulatorSubscribers(count)
	e.logger.Debug("NMEA subscriber added", "subscriber", id)
	return &input.Subscription{ID: id, C: ch}
}

// Unsubscribe removes a listener. Unknown IDs are ignored.
func (e *EmulatorService) Unsubscribe(id string) {
	e.mu.Lock()
	ch, ok := e.subs[id]
	if ok {
		close(ch)
		delete(e.subs, id)
	}
	count := len(e.subs)
	e.mu.Unlock()

	if ok {
		e.metrics.SetEmulatorSubscribers(count)
	}
}

// SetCourse changes bearing and speed from the next tick on.
func (e *EmulatorService) SetCourse(bearing domain.Azimuth, speed domain.Speed) error {
	if bearing.IsInvalid() {
		return domain.ErrInvalidCoordinate
	}
	if speed.ToMetersPerSecond() <= 0 {
		return domain.ErrNonPositiveSpeed
	}

	e.mu.Lock()
	e.bearing = bearing.Normalize()
	e.speed = speed
	e.mu.Unlock()
	return nil
}

// MoveTo places the receiver at p from the next tick on.
func (e *EmulatorService) MoveTo(p domain.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.position = p.Normalize()
	e.mu.Unlock()
	return nil
}

// Course returns the current bearing and speed.
func (e *EmulatorService) Course() (domain.Azimuth, domain.Speed) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bearing, e.speed
}

// Position returns the current simulated position.
func (e *EmulatorService) Position() domain.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.position
}
