package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eleven-am/speech-delivery/internal/audio"
	"github.com/eleven-am/speech-delivery/internal/delivery"
	"github.com/eleven-am/speech-delivery/internal/dto"
	"github.com/eleven-am/speech-delivery/internal/history"
	"github.com/eleven-am/speech-delivery/internal/playback"
	"github.com/eleven-am/speech-delivery/internal/shared"
	"github.com/eleven-am/speech-delivery/internal/synthesis"
	"github.com/labstack/echo/v4"
)

const streamCopyChunk = 4096

type Handler struct {
	controller *delivery.Controller
	sessions   *playback.Registry
	players    *PlayerHub
	history    *history.Store
	logger     *slog.Logger

	streamTimeout time.Duration
	maxBufferedMs int
}

type HandlerConfig struct {
	Controller    *delivery.Controller
	Sessions      *playback.Registry
	Players       *PlayerHub
	History       *history.Store
	StreamTimeout time.Duration
	MaxBufferedMs int
	Log           *slog.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Handler{
		controller:    cfg.Controller,
		sessions:      cfg.Sessions,
		players:       cfg.Players,
		history:       cfg.History,
		streamTimeout: cfg.StreamTimeout,
		maxBufferedMs: cfg.MaxBufferedMs,
		logger:        cfg.Log.With("component", "speech_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/speech", h.Speak)
	g.POST("/sessions/:id/say", h.Say)
	g.DELETE("/sessions/:id", h.ResetSession)
	g.GET("/sessions/:id/player", h.players.HandleConnection)
	g.GET("/sessions/:id/history", h.History)
}

// Speak runs one synchronous delivery. Buffered results come back as
// JSON; a streamed result is written to the response body as output
// PCM so the caller can play it as it arrives.
func (h *Handler) Speak(c echo.Context) error {
	var req dto.SpeechRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.Text == "" {
		return shared.BadRequest("missing_text", "text is required")
	}

	dreq := h.toDeliveryRequest(req, "")
	start := time.Now()
	result := h.controller.RequestSpeech(c.Request().Context(), dreq)
	h.record(dreq, result, start)

	if result.Stream != nil {
		return h.streamResponse(c, result)
	}
	return c.JSON(deliveryStatus(result), toDeliveryResponse(result))
}

// Say enqueues a delivery into the session's playback queue and
// returns immediately. Streamed audio goes to the session's connected
// player; buffered results are recorded without local playback.
func (h *Handler) Say(c echo.Context) error {
	sessionID := c.Param("id")
	var req dto.SayRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.Text == "" {
		return shared.BadRequest("missing_text", "text is required")
	}

	sink, ok := h.players.Get(sessionID)
	if !ok {
		return shared.Conflict("no_player", "no player connected for session")
	}

	dreq := h.toDeliveryRequest(req.SpeechRequest, sessionID)
	session := h.sessions.Get(sessionID)
	start := time.Now()

	errCh := session.Enqueue(func(ctx context.Context) error {
		result := h.controller.RequestSpeech(ctx, dreq)
		defer h.record(dreq, result, start)

		if result.Stream != nil {
			defer result.Stream.Stream.Close()
			pipeline, err := playback.NewPipeline(sink, playback.PipelineConfig{
				Format:        result.Stream.PCMFormat,
				MaxBufferedMs: h.maxBufferedMs,
				Log:           h.logger,
			})
			if err != nil {
				return err
			}
			_, err = pipeline.Play(ctx, result.Stream.Stream)
			return err
		}
		if !result.OK() {
			return errors.New(result.Failure.Message)
		}
		return nil
	})

	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, playback.ErrSuperseded) {
			h.logger.Warn("queued speech failed",
				"session_id", sessionID,
				"error", err,
			)
		}
	}()

	return c.JSON(http.StatusAccepted, dto.QueuedResponse{SessionID: sessionID, Queued: true})
}

// ResetSession aborts the session's active playback and drops every
// queued delivery behind it.
func (h *Handler) ResetSession(c echo.Context) error {
	sessionID := c.Param("id")
	session, ok := h.sessions.Lookup(sessionID)
	if !ok {
		return shared.NotFound("session_not_found", "no such session")
	}
	session.Reset()
	h.logger.Info("session reset", "session_id", sessionID)
	return c.JSON(http.StatusOK, dto.SessionResetResponse{SessionID: sessionID, Reset: true})
}

func (h *Handler) History(c echo.Context) error {
	sessionID := c.Param("id")
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return shared.BadRequest("invalid_limit", "limit must be a non-negative integer")
		}
		limit = parsed
	}

	records, err := h.history.ListBySession(c.Request().Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to list history", "error", err, "session_id", sessionID)
		return shared.InternalError("history_failed", "failed to list deliveries")
	}

	resp := dto.HistoryListResponse{Records: make([]dto.HistoryRecordResponse, len(records))}
	for i, r := range records {
		resp.Records[i] = dto.HistoryRecordResponse{
			ID:                r.ID,
			SessionID:         r.SessionID,
			Provider:          r.Provider,
			Delivery:          r.Delivery,
			TextChars:         r.TextChars,
			FallbackFromError: r.FallbackFromError,
			ErrorKind:         r.ErrorKind,
			ErrorMessage:      r.ErrorMessage,
			DurationMs:        r.DurationMs,
			CreatedAt:         r.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) toDeliveryRequest(req dto.SpeechRequest, sessionID string) delivery.Request {
	timeout := h.streamTimeout
	if req.StreamTimeoutMs > 0 {
		timeout = time.Duration(req.StreamTimeoutMs) * time.Millisecond
	}
	fallback := true
	if req.FallbackToBuffered != nil {
		fallback = *req.FallbackToBuffered
	}
	return delivery.Request{
		Text:      req.Text,
		SessionID: sessionID,
		Provider:  req.Provider,
		Stream: delivery.StreamPreferences{
			Enabled:            req.Stream,
			Timeout:            timeout,
			FallbackToBuffered: fallback,
		},
		Options: synthesis.Options{
			Voice: req.Voice,
			Model: req.Model,
			Speed: req.Speed,
			Extra: req.Extra,
		},
	}
}

func (h *Handler) streamResponse(c echo.Context, result delivery.Result) error {
	stream := result.Stream
	defer stream.Stream.Close()

	transform, err := audio.NewTransform(stream.PCMFormat)
	if err != nil {
		h.logger.Error("unusable stream format", "error", err, "provider", result.Provider)
		return shared.InternalError("bad_stream_format", "provider returned an unsupported PCM format")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "audio/L16")
	resp.Header().Set("X-Speech-Provider", result.Provider)
	resp.Header().Set("X-Speech-Sample-Rate", strconv.Itoa(audio.OutputSampleRate))
	resp.Header().Set("X-Speech-Channels", strconv.Itoa(audio.OutputChannels))
	resp.WriteHeader(http.StatusOK)

	buf := make([]byte, streamCopyChunk)
	for {
		n, rerr := stream.Stream.Read(buf)
		if n > 0 {
			out := transform.Process(buf[:n])
			if len(out) > 0 {
				if _, werr := resp.Write(out); werr != nil {
					return nil
				}
				resp.Flush()
			}
		}
		if rerr != nil {
			if dropped := transform.Flush(); dropped > 0 {
				h.logger.Debug("dropped trailing partial frame", "bytes", dropped)
			}
			return nil
		}
	}
}

func (h *Handler) record(req delivery.Request, result delivery.Result, start time.Time) {
	if h.history == nil {
		return
	}
	rec := &history.DeliveryRecord{
		SessionID:         req.SessionID,
		Provider:          result.Provider,
		Delivery:          string(result.Delivery),
		TextChars:         len(req.Text),
		FallbackFromError: result.FallbackFromError,
		DurationMs:        time.Since(start).Milliseconds(),
	}
	if result.Failure != nil {
		rec.ErrorKind = string(result.Failure.Kind)
		rec.ErrorMessage = result.Failure.Message
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.history.Create(ctx, rec); err != nil {
			h.logger.Warn("failed to record delivery", "error", err)
		}
	}()
}

func deliveryStatus(result delivery.Result) int {
	if result.OK() {
		return http.StatusOK
	}
	switch result.Failure.Kind {
	case delivery.ErrorKindConfiguration:
		return http.StatusBadRequest
	case delivery.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func toDeliveryResponse(result delivery.Result) dto.DeliveryResponse {
	resp := dto.DeliveryResponse{
		Delivery:          string(result.Delivery),
		Provider:          result.Provider,
		FallbackFromError: result.FallbackFromError,
	}
	if result.Buffered != nil {
		resp.Location = result.Buffered.Location
		resp.Format = result.Buffered.Format
		resp.VoiceCompatible = result.Buffered.VoiceCompatible
	}
	if result.Failure != nil {
		resp.Failure = &dto.FailureDetail{
			Kind:    string(result.Failure.Kind),
			Message: result.Failure.Message,
		}
	}
	return resp
}
