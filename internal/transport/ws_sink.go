package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/eleven-am/speech-delivery/internal/playback"
	"github.com/gorilla/websocket"
)

const sinkChunkSize = 4096

var ErrSinkBusy = errors.New("sink already playing")

// ControlMessage is the JSON control channel shared with the remote
// player. Audio itself travels as binary frames between play_start and
// play_end markers.
type ControlMessage struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

const (
	controlPlayStart = "play_start"
	controlPlayEnd   = "play_end"
	controlStop      = "stop"
	controlStatus    = "status"
)

// WSSink delivers output-format PCM to a remote player over a
// websocket. The player reports its state through status control
// messages, which back WaitForStatus. Pacing is the player's concern:
// the bounded playback buffer upstream already caps how far ahead of
// real time the producer can run.
type WSSink struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	status  playback.Status
	waiters []chan struct{}
	active  bool
	cancel  chan struct{}
	closed  bool
	done    chan struct{}
}

func NewWSSink(conn *websocket.Conn, log *slog.Logger) *WSSink {
	if log == nil {
		log = slog.Default()
	}
	s := &WSSink{
		conn:   conn,
		log:    log.With("component", "ws_sink"),
		status: playback.StatusIdle,
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *WSSink) readLoop() {
	for {
		var msg ControlMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.setStatus(playback.StatusIdle)
			close(s.done)
			return
		}
		if msg.Type == controlStatus {
			s.setStatus(playback.Status(msg.Status))
		}
	}
}

func (s *WSSink) Play(src io.Reader) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("sink connection closed")
	}
	if s.active {
		s.mu.Unlock()
		return ErrSinkBusy
	}
	s.active = true
	cancel := make(chan struct{})
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.writeControl(ControlMessage{Type: controlPlayStart}); err != nil {
		s.finish()
		return err
	}

	go s.pump(src, cancel)
	return nil
}

func (s *WSSink) pump(src io.Reader, cancel <-chan struct{}) {
	defer s.finish()

	buf := make([]byte, sinkChunkSize)
	for {
		select {
		case <-cancel:
			return
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if werr := s.writeBinary(buf[:n]); werr != nil {
				s.log.Warn("audio frame write failed", "error", werr)
				return
			}
		}
		if err == io.EOF {
			if werr := s.writeControl(ControlMessage{Type: controlPlayEnd}); werr != nil {
				s.log.Warn("play_end write failed", "error", werr)
			}
			return
		}
		if err != nil {
			return
		}
	}
}

// Stop interrupts active playback and tells the player to drop whatever
// it has buffered. Reports whether there was a playback to interrupt.
func (s *WSSink) Stop(force bool) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	close(s.cancel)
	s.cancel = nil
	s.active = false
	s.mu.Unlock()

	if err := s.writeControl(ControlMessage{Type: controlStop, Force: force}); err != nil {
		s.log.Warn("stop write failed", "error", err)
	}
	return true
}

func (s *WSSink) Status() playback.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *WSSink) WaitForStatus(ctx context.Context, want playback.Status) error {
	for {
		s.mu.Lock()
		if s.status == want {
			s.mu.Unlock()
			return nil
		}
		if s.closed {
			s.mu.Unlock()
			return errors.New("sink connection closed")
		}
		ch := make(chan struct{})
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *WSSink) Close() error {
	return s.conn.Close()
}

// Done is closed once the underlying connection is gone.
func (s *WSSink) Done() <-chan struct{} {
	return s.done
}

func (s *WSSink) finish() {
	s.mu.Lock()
	s.active = false
	s.cancel = nil
	s.mu.Unlock()
}

func (s *WSSink) setStatus(status playback.Status) {
	s.mu.Lock()
	s.status = status
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

func (s *WSSink) writeControl(msg ControlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *WSSink) writeBinary(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}
