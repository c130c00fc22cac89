package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/eleven-am/speech-delivery/internal/audio"
)

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM"
	elevenLabsDefaultModel = "eleven_multilingual_v2"

	// pcm_24000 output: 24 kHz mono s16le.
	elevenLabsPCMRate = 24000
)

type ElevenLabsConfig struct {
	APIKey      string
	BaseURL     string
	ArtifactDir string
	HTTPClient  *http.Client
}

type ElevenLabsClient struct {
	apiKey      string
	baseURL     string
	artifactDir string
	http        *http.Client
}

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabsClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &ElevenLabsClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		artifactDir: cfg.ArtifactDir,
		http:        client,
	}
}

func (c *ElevenLabsClient) Name() string {
	return "elevenlabs"
}

func (c *ElevenLabsClient) SupportsStreaming() bool {
	return true
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (c *ElevenLabsClient) synthesize(ctx context.Context, text, path, outputFormat string, opts Options) (*http.Response, error) {
	model := opts.Model
	if model == "" {
		model = elevenLabsDefaultModel
	}

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: model})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	endpoint := c.baseURL + path + "?output_format=" + url.QueryEscape(outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs synthesis: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs synthesis: status %d: %s", resp.StatusCode, detail)
	}
	return resp, nil
}

func (c *ElevenLabsClient) voice(opts Options) string {
	if opts.Voice != "" {
		return opts.Voice
	}
	return elevenLabsDefaultVoice
}

func (c *ElevenLabsClient) SynthesizeStreaming(ctx context.Context, text string, opts Options) (*StreamingAudio, error) {
	path := "/v1/text-to-speech/" + url.PathEscape(c.voice(opts)) + "/stream"
	resp, err := c.synthesize(ctx, text, path, "pcm_24000", opts)
	if err != nil {
		return nil, err
	}
	return &StreamingAudio{
		Provider:  c.Name(),
		Stream:    resp.Body,
		PCMFormat: audio.Format{SampleRate: elevenLabsPCMRate, Channels: 1},
	}, nil
}

func (c *ElevenLabsClient) SynthesizeBuffered(ctx context.Context, text string, opts Options) (*BufferedAudio, error) {
	path := "/v1/text-to-speech/" + url.PathEscape(c.voice(opts))
	resp, err := c.synthesize(ctx, text, path, "mp3_44100_128", opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	location, err := writeArtifact(c.artifactDir, "mp3", resp.Body)
	if err != nil {
		return nil, err
	}
	return &BufferedAudio{
		Provider:        c.Name(),
		Location:        location,
		Format:          "mp3",
		VoiceCompatible: true,
	}, nil
}
