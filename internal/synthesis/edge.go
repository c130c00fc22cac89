package synthesis

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	edgeEndpoint           = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	edgeTrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeDefaultVoice       = "en-US-AriaNeural"
	edgeOutputFormat       = "audio-24khz-48kbitrate-mono-mp3"
)

// EdgeClient speaks the Edge read-aloud websocket protocol. It has no
// streaming PCM transport, so it only produces buffered artifacts and
// reports streaming as unsupported.
type EdgeClient struct {
	endpoint    string
	artifactDir string
	dialer      *websocket.Dialer
}

type EdgeConfig struct {
	ArtifactDir string
	Endpoint    string
	Dialer      *websocket.Dialer
}

func NewEdge(cfg EdgeConfig) *EdgeClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = edgeEndpoint
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	}
	return &EdgeClient{
		endpoint:    endpoint,
		artifactDir: cfg.ArtifactDir,
		dialer:      dialer,
	}
}

func (c *EdgeClient) Name() string {
	return "edge"
}

func (c *EdgeClient) SupportsStreaming() bool {
	return false
}

func (c *EdgeClient) SynthesizeStreaming(ctx context.Context, text string, opts Options) (*StreamingAudio, error) {
	return nil, ErrStreamingUnsupported
}

func (c *EdgeClient) SynthesizeBuffered(ctx context.Context, text string, opts Options) (*BufferedAudio, error) {
	endpoint := c.endpoint + "?TrustedClientToken=" + edgeTrustedClientToken + "&ConnectionId=" + uuid.NewString()
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("edge dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	ts := time.Now().UTC().Format(time.RFC1123)
	config := "X-Timestamp:" + ts + "\r\n" +
		"Content-Type:application/json; charset=utf-8\r\n" +
		"Path:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"` + edgeOutputFormat + `"}}}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(config)); err != nil {
		return nil, fmt.Errorf("edge config: %w", err)
	}

	voice := opts.Voice
	if voice == "" {
		voice = edgeDefaultVoice
	}
	ssml := "X-RequestId:" + strings.ReplaceAll(uuid.NewString(), "-", "") + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + ts + "\r\n" +
		"Path:ssml\r\n\r\n" +
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>" +
		"<voice name='" + voice + "'>" + html.EscapeString(text) + "</voice></speak>"
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssml)); err != nil {
		return nil, fmt.Errorf("edge ssml: %w", err)
	}

	var audioData bytes.Buffer
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("edge read: %w", err)
		}

		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(msg), "Path:turn.end") {
				location, err := writeArtifact(c.artifactDir, "mp3", &audioData)
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
		case websocket.BinaryMessage:
			payload, err := parseEdgeBinary(msg)
			if err != nil {
				return nil, err
			}
			audioData.Write(payload)
		}
	}
}

// parseEdgeBinary splits a binary frame into its header block and audio
// payload. Frames start with a big-endian uint16 header length; only
// Path:audio frames carry audio.
func parseEdgeBinary(msg []byte) ([]byte, error) {
	if len(msg) < 2 {
		return nil, fmt.Errorf("edge frame too short: %d bytes", len(msg))
	}
	headerLen := int(binary.BigEndian.Uint16(msg[:2]))
	if 2+headerLen > len(msg) {
		return nil, fmt.Errorf("edge frame header length %d exceeds frame size %d", headerLen, len(msg))
	}
	if !strings.Contains(string(msg[2:2+headerLen]), "Path:audio") {
		return nil, nil
	}
	return msg[2+headerLen:], nil
}
