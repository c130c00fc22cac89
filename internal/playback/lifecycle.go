package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/speech-delivery/internal/audio"
)

const (
	defaultReadyTimeout = 5 * time.Second
	defaultIdleTimeout  = 10 * time.Second
	pumpChunkSize       = 4096
)

var errAborted = errors.New("playback aborted")

type Result struct {
	Aborted bool
}

type PipelineConfig struct {
	Format        audio.Format
	MaxBufferedMs int
	ReadyTimeout  time.Duration
	IdleTimeout   time.Duration
	Log           *slog.Logger
}

// Pipeline runs one playback attempt: it pumps a PCM producer through
// the resample transform into the bounded buffer, hands the buffer to
// the sink, and settles exactly once no matter which of normal
// completion, pipeline error, or external abort fires first.
type Pipeline struct {
	sink      Sink
	transform *audio.Transform
	buffer    *Buffer
	ready     time.Duration
	idle      time.Duration
	log       *slog.Logger

	settled sync.Once
}

func NewPipeline(sink Sink, cfg PipelineConfig) (*Pipeline, error) {
	transform, err := audio.NewTransform(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("playback transform: %w", err)
	}

	ready := cfg.ReadyTimeout
	if ready <= 0 {
		ready = defaultReadyTimeout
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		sink:      sink,
		transform: transform,
		buffer:    NewBuffer(BufferCapacity(cfg.MaxBufferedMs)),
		ready:     ready,
		idle:      idle,
		log:       log.With("component", "playback_pipeline"),
	}, nil
}

// Play delivers src to the sink and blocks until the attempt settles.
// An abort signaled through ctx always wins: it yields Result{Aborted:
// true} even when the teardown it forces also surfaces a pipe error.
// A non-nil error is returned only for a genuine pipeline failure
// observed before any abort.
func (p *Pipeline) Play(ctx context.Context, src io.Reader) (Result, error) {
	if ctx.Err() != nil {
		p.settleFailed()
		return Result{Aborted: true}, nil
	}

	pipeDone := make(chan error, 1)
	go func() {
		pipeDone <- p.pump(src)
	}()

	if err := p.sink.Play(p.buffer); err != nil {
		p.settleFailed()
		return Result{}, fmt.Errorf("sink play: %w", err)
	}

	p.waitReady(ctx)

	select {
	case err := <-pipeDone:
		if ctx.Err() != nil {
			p.settleAborted()
			return Result{Aborted: true}, nil
		}
		if err != nil {
			p.settleFailed()
			return Result{}, fmt.Errorf("playback pipe: %w", err)
		}
		p.drain(ctx)
		if ctx.Err() != nil {
			p.settleAborted()
			return Result{Aborted: true}, nil
		}
		p.settleDone()
		return Result{}, nil

	case <-ctx.Done():
		p.settleAborted()
		return Result{Aborted: true}, nil
	}
}

func (p *Pipeline) pump(src io.Reader) error {
	defer p.buffer.Close()

	buf := make([]byte, pumpChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			out := p.transform.Process(buf[:n])
			if len(out) > 0 {
				if _, werr := p.buffer.Write(out); werr != nil {
					return werr
				}
			}
		}
		if err == io.EOF {
			if dropped := p.transform.Flush(); dropped > 0 {
				p.log.Debug("dropped trailing partial frame", "bytes", dropped)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// waitReady waits for the sink to report playing, bounded by the ready
// timeout. A sink that never reports playing may still be delivering
// audio, so timing out here is logged and ignored rather than fatal.
func (p *Pipeline) waitReady(ctx context.Context) {
	readyCtx, cancel := context.WithTimeout(ctx, p.ready)
	defer cancel()
	if err := p.sink.WaitForStatus(readyCtx, StatusPlaying); err != nil && ctx.Err() == nil {
		p.log.Warn("sink never reported playing", "timeout", p.ready)
	}
}

// drain waits for the sink to go idle after the pipe has delivered all
// audio, bounded by the idle timeout. Best-effort like waitReady.
func (p *Pipeline) drain(ctx context.Context) {
	idleCtx, cancel := context.WithTimeout(ctx, p.idle)
	defer cancel()
	if err := p.sink.WaitForStatus(idleCtx, StatusIdle); err != nil && ctx.Err() == nil {
		p.log.Warn("sink never reported idle", "timeout", p.idle)
	}
}

// Teardown runs exactly once per attempt; whichever of the three paths
// gets there first wins and the others no-op. The sink is stopped only
// when an abort interrupted active playback: on normal completion
// stopping would cut off trailing audio the sink has buffered but not
// yet played, and on a pipeline failure the sink runs out of readable
// data on its own.

func (p *Pipeline) settleDone() {
	p.settled.Do(func() {
		p.buffer.Close()
	})
}

func (p *Pipeline) settleAborted() {
	p.settled.Do(func() {
		p.buffer.CloseWithError(errAborted)
		p.sink.Stop(true)
	})
}

func (p *Pipeline) settleFailed() {
	p.settled.Do(func() {
		p.buffer.CloseWithError(errAborted)
	})
}
