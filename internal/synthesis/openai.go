package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/eleven-am/speech-delivery/internal/audio"
	"github.com/eleven-am/speech-delivery/internal/shared"
)

const (
	openAIBaseURL      = "https://api.openai.com"
	openAIDefaultModel = "gpt-4o-mini-tts"
	openAIDefaultVoice = "alloy"

	// The PCM response format is 24 kHz mono s16le.
	openAIPCMRate = 24000
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ArtifactDir string
	HTTPClient  *http.Client
}

type OpenAIClient struct {
	apiKey      string
	baseURL     string
	artifactDir string
	http        *http.Client
}

func NewOpenAI(cfg OpenAIConfig) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		artifactDir: cfg.ArtifactDir,
		http:        client,
	}
}

func (c *OpenAIClient) Name() string {
	return "openai"
}

func (c *OpenAIClient) SupportsStreaming() bool {
	return true
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float32 `json:"speed,omitempty"`
}

func (c *OpenAIClient) speech(ctx context.Context, text, format string, opts Options) (*http.Response, error) {
	model := opts.Model
	if model == "" {
		model = openAIDefaultModel
	}
	voice := opts.Voice
	if voice == "" {
		voice = openAIDefaultVoice
	}

	body, err := json.Marshal(openAISpeechRequest{
		Model:          model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          opts.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai speech: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("openai speech: status %d: %s", resp.StatusCode, detail)
	}
	return resp, nil
}

func (c *OpenAIClient) SynthesizeStreaming(ctx context.Context, text string, opts Options) (*StreamingAudio, error) {
	resp, err := c.speech(ctx, text, "pcm", opts)
	if err != nil {
		return nil, err
	}
	return &StreamingAudio{
		Provider:  c.Name(),
		Stream:    resp.Body,
		PCMFormat: audio.Format{SampleRate: openAIPCMRate, Channels: 1},
	}, nil
}

func (c *OpenAIClient) SynthesizeBuffered(ctx context.Context, text string, opts Options) (*BufferedAudio, error) {
	format := opts.Extra["format"]
	if format == "" {
		format = "mp3"
	}

	resp, err := c.speech(ctx, text, format, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	location, err := writeArtifact(c.artifactDir, format, resp.Body)
	if err != nil {
		return nil, err
	}
	return &BufferedAudio{
		Provider:        c.Name(),
		Location:        location,
		Format:          format,
		VoiceCompatible: voiceCompatibleFormat(format),
	}, nil
}

// writeArtifact stores a complete synthesis result under dir and
// returns its path.
func writeArtifact(dir, format string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact dir: %w", err)
	}
	path := filepath.Join(dir, shared.NewID("tts_")+"."+format)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	return path, nil
}

func voiceCompatibleFormat(format string) bool {
	switch format {
	case "mp3", "wav", "ogg", "opus":
		return true
	}
	return false
}
