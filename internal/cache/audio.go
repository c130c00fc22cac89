package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/eleven-am/speech-delivery/internal/synthesis"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "speech:artifact:"

// AudioCache stores buffered synthesis artifacts in redis, keyed by the
// delivery controller's request hash. Entries point at files on local
// disk, so a hit is only valid while the artifact still exists; stale
// entries are evicted on read. All failures are logged and treated as
// misses.
type AudioCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewAudioCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *AudioCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &AudioCache{
		client: client,
		ttl:    ttl,
		log:    log.With("component", "audio_cache"),
	}
}

func (c *AudioCache) Get(ctx context.Context, key string) (*synthesis.BufferedAudio, bool) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", "error", err)
		}
		return nil, false
	}

	audio, err := decodeEntry(data)
	if err != nil {
		c.log.Warn("cache entry corrupt", "error", err)
		c.client.Del(ctx, keyPrefix+key)
		return nil, false
	}

	if _, err := os.Stat(audio.Location); err != nil {
		c.client.Del(ctx, keyPrefix+key)
		return nil, false
	}
	return audio, true
}

func (c *AudioCache) Put(ctx context.Context, key string, audio *synthesis.BufferedAudio) {
	data, err := json.Marshal(audio)
	if err != nil {
		c.log.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("cache put failed", "error", err)
	}
}

func decodeEntry(data []byte) (*synthesis.BufferedAudio, error) {
	var audio synthesis.BufferedAudio
	if err := json.Unmarshal(data, &audio); err != nil {
		return nil, err
	}
	if audio.Location == "" {
		return nil, errors.New("cache entry missing artifact location")
	}
	return &audio, nil
}
