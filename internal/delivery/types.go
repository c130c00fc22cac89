package delivery

import (
	"time"

	"github.com/eleven-am/speech-delivery/internal/synthesis"
)

type Mode string

const (
	ModeStream   Mode = "stream"
	ModeBuffered Mode = "buffered"
)

type ErrorKind string

const (
	ErrorKindConfiguration ErrorKind = "configuration"
	ErrorKindProvider      ErrorKind = "provider"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindPipeline      ErrorKind = "pipeline"
	ErrorKindAborted       ErrorKind = "aborted"
)

// StreamPreferences controls the streaming attempt: whether to try it,
// how long to wait for the provider to start producing audio, and
// whether a failed or timed-out attempt falls back to buffered
// delivery.
type StreamPreferences struct {
	Enabled            bool
	Timeout            time.Duration
	FallbackToBuffered bool
}

// Request describes one speech delivery. The text payload and provider
// options are opaque to the controller. Immutable once constructed.
type Request struct {
	Text      string
	SessionID string
	Provider  string
	Stream    StreamPreferences
	Options   synthesis.Options
}

type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is the tagged outcome of a delivery request. Exactly one of
// Stream, Buffered, Failure is set; Delivery records the mode actually
// used, which fallback can change from the mode that was requested.
type Result struct {
	Delivery Mode   `json:"delivery"`
	Provider string `json:"provider,omitempty"`

	Stream   *synthesis.StreamingAudio `json:"-"`
	Buffered *synthesis.BufferedAudio  `json:"buffered,omitempty"`
	Failure  *Failure                  `json:"failure,omitempty"`

	// FallbackFromError carries the streaming failure that caused a
	// buffered fallback, for observability.
	FallbackFromError string `json:"fallback_from_error,omitempty"`
}

func (r Result) OK() bool {
	return r.Failure == nil
}
