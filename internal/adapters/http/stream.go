package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jobrunner/meridian/internal/domain"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamMaxMessage = 4096
)

// courseMessage is the client to server message of the NMEA stream.
type courseMessage struct {
	Bearing    *float64 `json:"bearing"`
	SpeedKnots *float64 `json:"speed_knots"`
}

// handleEmulatorState returns the simulated position and course.
func (s *Server) handleEmulatorState(w http.ResponseWriter, _ *http.Request) {
	e := s.svc.Emulator
	bearing, speed := e.Course()
	pos := e.Position()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":     e.Running(),
		"position":    positionJSON(pos),
		"formatted":   pos.String(),
		"bearing":     bearingJSON(bearing),
		"direction":   bearing.Direction(),
		"speed_knots": speed.ToUnit(domain.Knots).Value,
	})
}

// handleEmulatorStream upgrades to a websocket and pushes one text message
// per NMEA sentence. Clients may send {"bearing":..,"speed_knots":..} to
// change the course, or an RMC/GGA sentence to relocate the receiver.
func (s *Server) handleEmulatorStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug("websocket upgrade failed", "error", err, "request_id", RequestID(r.Context()))
		return
	}
	defer func() { _ = conn.Close() }()

	sub := s.svc.Emulator.Subscribe()
	defer s.svc.Emulator.Unsubscribe(sub.ID)

	s.logger.Info("NMEA stream opened", "subscriber", sub.ID, "remote_addr", r.RemoteAddr)

	closed := make(chan struct{})
	go s.readControl(conn, closed)

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case sentence, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				// Dropped as a slow consumer or the emulator stopped.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(sentence)); err != nil {
				s.logger.Debug("NMEA stream write failed", "subscriber", sub.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			s.logger.Info("NMEA stream closed", "subscriber", sub.ID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readControl consumes client messages until the connection fails, then
// closes done.
func (s *Server) readControl(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(streamMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("NMEA stream read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))

		data = bytes.TrimSpace(data)
		if bytes.HasPrefix(data, []byte("$")) {
			s.applyFix(string(data))
			continue
		}

		var msg courseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("ignoring malformed stream message", "error", err)
			continue
		}
		s.applyCourse(msg)
	}
}

// applyFix relocates the emulator to the position of an NMEA sentence.
func (s *Server) applyFix(line string) {
	pos, err := domain.ParseNMEAPosition(line)
	if err != nil {
		s.logger.Debug("fix rejected", "error", err)
		return
	}
	if err := s.svc.Emulator.MoveTo(pos); err != nil {
		s.logger.Debug("fix rejected", "error", err)
		return
	}
	s.logger.Info("receiver relocated", "position", pos.DecimalString())
}

func (s *Server) applyCourse(msg courseMessage) {
	bearing, speed := s.svc.Emulator.Course()
	if msg.Bearing != nil {
		bearing = domain.Azimuth(*msg.Bearing)
	}
	if msg.SpeedKnots != nil {
		speed = domain.NewSpeed(*msg.SpeedKnots, domain.Knots)
	}
	if err := s.svc.Emulator.SetCourse(bearing, speed); err != nil {
		s.logger.Debug("course change rejected", "error", err)
		return
	}
	s.logger.Info("course changed", "bearing", bearing.Normalize().Degrees(), "speed", speed.String())
}
