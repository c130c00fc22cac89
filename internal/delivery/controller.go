package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/eleven-am/speech-delivery/internal/synthesis"
)

const defaultStreamTimeout = 5 * time.Second

// ArtifactCache caches buffered synthesis results. Both methods are
// best-effort: a miss or a cache failure must never fail a delivery.
type ArtifactCache interface {
	Get(ctx context.Context, key string) (*synthesis.BufferedAudio, bool)
	Put(ctx context.Context, key string, audio *synthesis.BufferedAudio)
}

type ControllerConfig struct {
	Providers     *synthesis.Registry
	Cache         ArtifactCache
	StreamTimeout time.Duration
	Log           *slog.Logger
}

// Controller decides between the low-latency streaming path and the
// reliable buffered path for each request, falling back from stream to
// buffered when policy allows. It performs no I/O of its own beyond
// invoking the provider clients.
type Controller struct {
	providers *synthesis.Registry
	cache     ArtifactCache
	timeout   time.Duration
	log       *slog.Logger
}

func NewController(cfg ControllerConfig) *Controller {
	timeout := cfg.StreamTimeout
	if timeout <= 0 {
		timeout = defaultStreamTimeout
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		providers: cfg.Providers,
		cache:     cfg.Cache,
		timeout:   timeout,
		log:       log.With("component", "delivery_controller"),
	}
}

// RequestSpeech resolves the provider, attempts streaming when it is
// both requested and supported, and otherwise (or on stream
// failure/timeout with fallback enabled) delegates to buffered
// delivery. Callers always receive a structured Result, never a panic
// or a bare error.
func (c *Controller) RequestSpeech(ctx context.Context, req Request) Result {
	provider, err := c.providers.Get(req.Provider)
	if err != nil {
		return Result{
			Delivery: ModeBuffered,
			Failure:  &Failure{Kind: ErrorKindConfiguration, Message: err.Error()},
		}
	}

	if !req.Stream.Enabled || !provider.SupportsStreaming() {
		return c.buffered(ctx, provider, req, "")
	}

	stream, err := c.attemptStream(ctx, provider, req)
	if err == nil {
		return Result{Delivery: ModeStream, Provider: stream.Provider, Stream: stream}
	}

	c.log.Warn("streaming attempt failed",
		"provider", provider.Name(),
		"session_id", req.SessionID,
		"error", err)

	if req.Stream.FallbackToBuffered {
		return c.buffered(ctx, provider, req, err.Error())
	}

	kind := ErrorKindProvider
	if isTimeout(err) {
		kind = ErrorKindTimeout
	}
	return Result{
		Delivery: ModeStream,
		Provider: provider.Name(),
		Failure:  &Failure{Kind: kind, Message: err.Error()},
	}
}

type timeoutError struct {
	d time.Duration
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("streaming attempt timed out after %s", e.d)
}

func isTimeout(err error) bool {
	_, ok := err.(*timeoutError)
	return ok
}

// attemptStream races the provider's streaming call against a timer.
// On timeout the in-flight call is abandoned: its eventual settlement
// only closes the stream it no longer has a consumer for.
func (c *Controller) attemptStream(ctx context.Context, provider synthesis.Provider, req Request) (*synthesis.StreamingAudio, error) {
	timeout := req.Stream.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	type outcome struct {
		stream *synthesis.StreamingAudio
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		stream, err := provider.SynthesizeStreaming(ctx, req.Text, req.Options)
		ch <- outcome{stream, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			return nil, out.err
		}
		return out.stream, nil
	case <-timer.C:
		go func() {
			if out := <-ch; out.stream != nil {
				out.stream.Stream.Close()
			}
		}()
		return nil, &timeoutError{timeout}
	case <-ctx.Done():
		go func() {
			if out := <-ch; out.stream != nil {
				out.stream.Stream.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (c *Controller) buffered(ctx context.Context, provider synthesis.Provider, req Request, fallbackFrom string) Result {
	key := cacheKey(provider.Name(), req)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			c.log.Debug("buffered delivery served from cache", "provider", provider.Name())
			return Result{
				Delivery:          ModeBuffered,
				Provider:          cached.Provider,
				Buffered:          cached,
				FallbackFromError: fallbackFrom,
			}
		}
	}

	audio, err := provider.SynthesizeBuffered(ctx, req.Text, req.Options)
	if err != nil {
		return Result{
			Delivery:          ModeBuffered,
			Provider:          provider.Name(),
			Failure:           &Failure{Kind: ErrorKindProvider, Message: err.Error()},
			FallbackFromError: fallbackFrom,
		}
	}

	if c.cache != nil {
		c.cache.Put(ctx, key, audio)
	}

	return Result{
		Delivery:          ModeBuffered,
		Provider:          audio.Provider,
		Buffered:          audio,
		FallbackFromError: fallbackFrom,
	}
}

// cacheKey hashes everything that affects buffered output so that two
// requests share an artifact only when they would synthesize the same
// audio.
func cacheKey(provider string, req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%.2f|%s", provider, req.Options.Voice, req.Options.Model, req.Options.Speed, req.Text)
	if len(req.Options.Extra) > 0 {
		keys := make([]string, 0, len(req.Options.Extra))
		for k := range req.Options.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for _, k := range keys {
			sb.WriteString("|" + k + "=" + req.Options.Extra[k])
		}
		h.Write([]byte(sb.String()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
