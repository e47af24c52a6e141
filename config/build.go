package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/IvanBrykalov/lodcache/cache"
	"github.com/IvanBrykalov/lodcache/datasource"
	"github.com/IvanBrykalov/lodcache/policy"
	"github.com/IvanBrykalov/lodcache/policy/lru"
	"github.com/IvanBrykalov/lodcache/policy/twoq"
)

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log.level: %s (must be one of: DEBUG, INFO, WARN, ERROR)", s)
}

// Logger builds a slog logger writing to w.
func (c *Configuration) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ProtectIDs returns cache.protect_list as cache ids.
func (c *Configuration) ProtectIDs() []cache.ID {
	ids := make([]cache.ID, len(c.Cache.ProtectList))
	for i, id := range c.Cache.ProtectList {
		ids[i] = cache.ID(id)
	}
	return ids
}

// NewPolicy builds the configured eviction policy.
func (c *Configuration) NewPolicy() (policy.Policy[cache.ID], error) {
	maxMem, err := ParseSize(c.Cache.MaxMemory)
	if err != nil {
		return nil, err
	}
	var p policy.Policy[cache.ID]
	switch strings.ToLower(c.Cache.Policy) {
	case "", "lru":
		p = lru.New[cache.ID](maxMem, c.Cache.CleanupRatio)
	case "2q":
		p = twoq.New[cache.ID](maxMem, c.Cache.CleanupRatio, c.Cache.Ghosts)
	default:
		return nil, fmt.Errorf("invalid cache.policy: %s", c.Cache.Policy)
	}
	return p, nil
}

// CacheOptions returns cache options for the configured cache. Metrics and
// the size function are left to the caller.
func (c *Configuration) CacheOptions(log *slog.Logger) (cache.Options[[]byte], error) {
	p, err := c.NewPolicy()
	if err != nil {
		return cache.Options[[]byte]{}, err
	}
	return cache.Options[[]byte]{
		Name:        c.Cache.Name,
		Policy:      p,
		ProtectList: c.ProtectIDs(),
		Shards:      c.Cache.Shards,
		Logger:      log,
	}, nil
}

// OpenSource builds the configured data source with its codec and throttle.
func (c *Configuration) OpenSource(ctx context.Context) (datasource.Source, error) {
	sc := c.Source
	var src datasource.Source
	switch sc.Kind {
	case "memory":
		src = datasource.NewMemory()
	case "dir":
		src = datasource.NewDir(sc.Dir)
	case "s3":
		s, err := datasource.NewS3FromEnv(ctx, sc.Bucket, sc.Prefix, sc.Region)
		if err != nil {
			return nil, err
		}
		src = s
	case "minio":
		m, err := datasource.DialMinio(sc.Endpoint, sc.AccessKey, sc.SecretKey, sc.Secure, sc.Bucket, sc.Prefix)
		if err != nil {
			return nil, err
		}
		src = m
	default:
		return nil, fmt.Errorf("invalid source.kind: %s", sc.Kind)
	}

	codec, err := datasource.ParseCodec(sc.Codec)
	if err != nil {
		return nil, err
	}
	if codec != datasource.CodecNone {
		src = datasource.NewCompressed(src, codec)
	}

	var bps int64
	if sc.BytesPerSec != "" {
		if bps, err = ParseSize(sc.BytesPerSec); err != nil {
			return nil, err
		}
	}
	if sc.MaxInFlight > 0 || bps > 0 {
		src = datasource.NewThrottled(src, sc.MaxInFlight, int(bps))
	}
	return src, nil
}
