package playback

import (
	"errors"
	"io"
	"sync"

	"github.com/eleven-am/speech-delivery/internal/audio"
)

const (
	minBufferBytes    = 32 * 1024
	minBufferedMs     = 200
	defaultBufferedMs = 6000
)

var ErrBufferClosed = errors.New("playback buffer closed")

// BufferCapacity converts a maximum-buffered-duration into a byte
// capacity for the output format. The duration is clamped to a floor of
// 200ms and defaults to 6s when unspecified; capacity never drops below
// 32 KiB. The cap is what bounds end-to-end latency: once this much
// audio is queued ahead of the sink, the producer blocks.
func BufferCapacity(durationMs int) int {
	if durationMs <= 0 {
		durationMs = defaultBufferedMs
	}
	if durationMs < minBufferedMs {
		durationMs = minBufferedMs
	}
	n := durationMs * audio.OutputSampleRate * audio.OutputChannels * 2 / 1000
	if n < minBufferBytes {
		n = minBufferBytes
	}
	return n
}

// Buffer is a byte-capacity-bounded pipe between the transform and the
// sink. Writes block while the buffer is full; reads block while it is
// empty. Close marks normal end of stream (readers drain then get EOF);
// CloseWithError aborts both sides immediately.
type Buffer struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	data  []byte
	read  int
	count int

	closed bool
	err    error
}

func NewBuffer(capacity int) *Buffer {
	b := &Buffer{data: make([]byte, capacity)}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	return b
}

func (b *Buffer) Cap() int {
	return len(b.data)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	written := 0
	for written < len(p) {
		for b.count == len(b.data) && !b.closed {
			b.notFull.Wait()
		}
		if b.closed {
			if b.err != nil {
				return written, b.err
			}
			return written, ErrBufferClosed
		}

		n := b.copyIn(p[written:])
		written += n
		b.notEmpty.Broadcast()
	}
	return written, nil
}

func (b *Buffer) copyIn(p []byte) int {
	free := len(b.data) - b.count
	if free > len(p) {
		free = len(p)
	}
	w := (b.read + b.count) % len(b.data)
	n := copy(b.data[w:], p[:free])
	if n < free {
		n += copy(b.data, p[n:free])
	}
	b.count += n
	return n
}

func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 {
		if b.closed {
			if b.err != nil {
				return 0, b.err
			}
			return 0, io.EOF
		}
		b.notEmpty.Wait()
	}

	n := b.count
	if n > len(p) {
		n = len(p)
	}
	m := copy(p, b.data[b.read:min(b.read+n, len(b.data))])
	if m < n {
		m += copy(p[m:], b.data[:n-m])
	}
	b.read = (b.read + m) % len(b.data)
	b.count -= m
	b.notFull.Broadcast()
	return m, nil
}

// Close marks end of stream. Buffered data remains readable; readers
// receive io.EOF once drained.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.notEmpty.Broadcast()
		b.notFull.Broadcast()
	}
	return nil
}

// CloseWithError aborts the buffer: pending and future reads and writes
// fail with err, and buffered data is discarded. A nil err behaves like
// Close.
func (b *Buffer) CloseWithError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.err = err
	if err != nil {
		b.count = 0
	}
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}
