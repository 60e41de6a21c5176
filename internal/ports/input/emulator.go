package input

import (
	"context"

	"github.com/jobrunner/meridian/internal/domain"
)

// Emulator defines the primary port for the simulated NMEA receiver.
type Emulator interface {
	// Start runs the tick loop until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends the tick loop and closes every subscription.
	Stop()

	// Subscribe registers a new listener for NMEA sentences.
	Subscribe() *Subscription

	// Unsubscribe removes a listener and closes its channel.
	Unsubscribe(id string)

	// SetCourse changes the simulated bearing and speed.
	SetCourse(bearing domain.Azimuth, speed domain.Speed) error

	// MoveTo places the receiver at p. The course is kept.
	MoveTo(p domain.Position) error

	// Position returns the current simulated position.
	Position() domain.Position

	// Course returns the current bearing and speed.
	Course() (domain.Azimuth, domain.Speed)

	// Running reports whether the tick loop is active.
	Running() bool
}

// Subscription delivers NMEA sentences to one listener. C is closed when the
// listener is removed, either explicitly or because it fell behind.
type Subscription struct {
	ID string
	C  <-chan string
}
