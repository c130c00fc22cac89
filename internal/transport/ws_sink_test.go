package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/speech-delivery/internal/playback"
	"github.com/gorilla/websocket"
)

type fakePlayer struct {
	conn *websocket.Conn

	mu       sync.Mutex
	audio    bytes.Buffer
	controls []ControlMessage
	ended    chan struct{}
	stopped  chan struct{}
}

// run consumes frames like a remote player would: report playing after
// the first audio frame, idle once play_end or stop arrives.
func (p *fakePlayer) run() {
	reported := false
	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			p.mu.Lock()
			p.audio.Write(data)
			p.mu.Unlock()
			if !reported {
				reported = true
				p.sendStatus("playing")
			}
		case websocket.TextMessage:
			var msg ControlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			p.mu.Lock()
			p.controls = append(p.controls, msg)
			p.mu.Unlock()
			switch msg.Type {
			case controlPlayEnd:
				p.sendStatus("idle")
				close(p.ended)
			case controlStop:
				p.sendStatus("idle")
				close(p.stopped)
			}
		}
	}
}

func (p *fakePlayer) sendStatus(status string) {
	data, _ := json.Marshal(ControlMessage{Type: controlStatus, Status: status})
	p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *fakePlayer) audioBytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.audio.Bytes()...)
}

func setupSink(t *testing.T) (*WSSink, *fakePlayer) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConn <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	sink := NewWSSink(<-serverConn, nil)
	t.Cleanup(func() { sink.Close() })

	player := &fakePlayer{
		conn:    clientConn,
		ended:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go player.run()
	return sink, player
}

func TestWSSink_PlayDeliversAudio(t *testing.T) {
	sink, player := setupSink(t)

	audio := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 3000)
	if err := sink.Play(bytes.NewReader(audio)); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.WaitForStatus(ctx, playback.StatusPlaying); err != nil {
		t.Fatalf("never reached playing: %v", err)
	}

	select {
	case <-player.ended:
	case <-time.After(2 * time.Second):
		t.Fatal("play_end never arrived")
	}
	if err := sink.WaitForStatus(ctx, playback.StatusIdle); err != nil {
		t.Fatalf("never returned to idle: %v", err)
	}
	if got := player.audioBytes(); !bytes.Equal(got, audio) {
		t.Fatalf("audio mismatch: got %d bytes, want %d", len(got), len(audio))
	}
}

func TestWSSink_StopInterrupts(t *testing.T) {
	sink, player := setupSink(t)

	// A reader that never finishes on its own.
	pr, pw := newPipe()
	defer pw.close()

	if err := sink.Play(pr); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	pw.write(bytes.Repeat([]byte{0xAA}, 4096))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.WaitForStatus(ctx, playback.StatusPlaying); err != nil {
		t.Fatalf("never reached playing: %v", err)
	}

	if !sink.Stop(true) {
		t.Fatal("stop reported no active playback")
	}
	select {
	case <-player.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop control never arrived")
	}
	if err := sink.WaitForStatus(ctx, playback.StatusIdle); err != nil {
		t.Fatalf("never returned to idle: %v", err)
	}
}

func TestWSSink_StopWithoutPlayback(t *testing.T) {
	sink, _ := setupSink(t)
	if sink.Stop(false) {
		t.Fatal("stop on idle sink reported an interruption")
	}
}

func TestWSSink_RejectsConcurrentPlay(t *testing.T) {
	sink, _ := setupSink(t)

	pr, pw := newPipe()
	defer pw.close()
	if err := sink.Play(pr); err != nil {
		t.Fatalf("first play failed: %v", err)
	}
	if err := sink.Play(bytes.NewReader([]byte{0x00})); err != ErrSinkBusy {
		t.Fatalf("expected ErrSinkBusy, got %v", err)
	}
	sink.Stop(true)
}

// newPipe wraps a channel-based reader so tests can feed a playback
// that stays open until explicitly closed.
func newPipe() (*pipeReader, *pipeWriter) {
	ch := make(chan []byte, 16)
	done := make(chan struct{})
	return &pipeReader{ch: ch, done: done}, &pipeWriter{ch: ch, done: done}
}

type pipeReader struct {
	ch      chan []byte
	done    chan struct{}
	pending []byte
}

func (r *pipeReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		select {
		case chunk := <-r.ch:
			r.pending = chunk
		case <-r.done:
			select {
			case chunk := <-r.ch:
				r.pending = chunk
			default:
				return 0, context.Canceled
			}
		}
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

type pipeWriter struct {
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func (w *pipeWriter) write(p []byte) { w.ch <- p }

func (w *pipeWriter) close() { w.once.Do(func() { close(w.done) }) }
