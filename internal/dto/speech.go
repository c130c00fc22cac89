package dto

type SpeechRequest struct {
	Text               string            `json:"text" example:"Hello there"`
	Provider           string            `json:"provider,omitempty" example:"openai"`
	Voice              string            `json:"voice,omitempty" example:"alloy"`
	Model              string            `json:"model,omitempty" example:"gpt-4o-mini-tts"`
	Speed              float32           `json:"speed,omitempty" example:"1.0"`
	Extra              map[string]string `json:"extra,omitempty"`
	Stream             bool              `json:"stream,omitempty" example:"false"`
	StreamTimeoutMs    int               `json:"stream_timeout_ms,omitempty" example:"5000"`
	FallbackToBuffered *bool             `json:"fallback_to_buffered,omitempty"`
}

type SayRequest struct {
	SpeechRequest
}

type DeliveryResponse struct {
	Delivery          string         `json:"delivery" example:"buffered"`
	Provider          string         `json:"provider" example:"openai"`
	Location          string         `json:"location,omitempty" example:"/var/speech/tts_ab12.mp3"`
	Format            string         `json:"format,omitempty" example:"mp3"`
	VoiceCompatible   bool           `json:"voice_compatible,omitempty"`
	FallbackFromError string         `json:"fallback_from_error,omitempty"`
	Failure           *FailureDetail `json:"failure,omitempty"`
}

type FailureDetail struct {
	Kind    string `json:"kind" example:"timeout"`
	Message string `json:"message" example:"stream did not start within 5s"`
}

type QueuedResponse struct {
	SessionID string `json:"session_id" example:"player-7"`
	Queued    bool   `json:"queued" example:"true"`
}

type SessionResetResponse struct {
	SessionID string `json:"session_id" example:"player-7"`
	Reset     bool   `json:"reset" example:"true"`
}

type HistoryListResponse struct {
	Records []HistoryRecordResponse `json:"records"`
}

type HistoryRecordResponse struct {
	ID                string `json:"id" example:"dlv_ab12cd34"`
	SessionID         string `json:"session_id,omitempty" example:"player-7"`
	Provider          string `json:"provider" example:"elevenlabs"`
	Delivery          string `json:"delivery" example:"stream"`
	TextChars         int    `json:"text_chars" example:"42"`
	FallbackFromError string `json:"fallback_from_error,omitempty"`
	ErrorKind         string `json:"error_kind,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	DurationMs        int64  `json:"duration_ms" example:"840"`
	CreatedAt         string `json:"created_at" example:"2025-01-15T10:30:00Z"`
}
