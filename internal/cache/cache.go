// Package cache stores rendered query output in Redis and invalidates it
// through the same dependency signals the rendering host emits.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cms-query-workers/internal/common/logger"
	"cms-query-workers/internal/host"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix      = "render:"
	uuidDepPrefix  = "render:dep:uuid:"
	pathDepPrefix  = "render:dep:path:"
	regexDepPrefix = "render:dep:regexp:"
	patternsKey    = "render:dep:patterns"
)

// Result labels reported to a Recorder.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Recorder receives one result label per lookup.
type Recorder interface {
	RecordCacheResult(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCacheResult(string) {}

// Key derives a stable entry key from the inputs that shape a render.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Store is a Redis-backed render cache. Redis failures are logged and
// surface as misses to readers.
type Store struct {
	client   redis.Cmdable
	log      logger.Logger
	recorder Recorder
}

type Option func(*Store)

func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

func New(client redis.Cmdable, log logger.Logger, opts ...Option) *Store {
	s := &Store{client: client, log: log.Named("render-cache"), recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value and whether it was found.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		s.recorder.RecordCacheResult(ResultMiss)
		return "", false
	case err != nil:
		s.recorder.RecordCacheResult(ResultError)
		s.log.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return "", false
	}
	s.recorder.RecordCacheResult(ResultHit)
	return val, true
}

// Set stores value under key for ttl and indexes it under every dependency.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration, deps ...host.CacheDependency) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		for _, d := range deps {
			for _, set := range depSets(d) {
				pipe.SAdd(ctx, set, key)
				pipe.Expire(ctx, set, ttl)
			}
			if d.FlushOnPathMatchingRegexp != "" {
				pipe.SAdd(ctx, patternsKey, d.FlushOnPathMatchingRegexp)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func depSets(d host.CacheDependency) []string {
	var sets []string
	if d.UUID != "" {
		sets = append(sets, uuidDepPrefix+d.UUID)
	}
	if d.Path != "" {
		sets = append(sets, pathDepPrefix+d.Path)
	}
	if d.FlushOnPathMatchingRegexp != "" {
		sets = append(sets, regexDepPrefix+d.FlushOnPathMatchingRegexp)
	}
	return sets
}

// FlushUUID drops every entry that depends on the node id. It returns the
// number of entries removed.
func (s *Store) FlushUUID(ctx context.Context, uuid string) (int, error) {
	return s.flushSets(ctx, []string{uuidDepPrefix + uuid})
}

// FlushPath drops entries depending on path exactly and entries whose
// path pattern matches it. Patterns whose entries have all expired are
// removed from the pattern index on the way.
func (s *Store) FlushPath(ctx context.Context, path string) (int, error) {
	sets := []string{pathDepPrefix + path}

	patterns, err := s.client.SMembers(ctx, patternsKey).Result()
	if err != nil {
		s.log.Warn("cache pattern scan failed", map[string]interface{}{"path": path, "error": err.Error()})
		return 0, fmt.Errorf("cache flush %s: %w", path, err)
	}
	var (
		stale     []any
		unmatched []string
	)
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			stale = append(stale, p)
			continue
		}
		if re.MatchString(path) {
			sets = append(sets, regexDepPrefix+p)
			stale = append(stale, p)
			continue
		}
		unmatched = append(unmatched, p)
	}
	stale = append(stale, s.expiredPatterns(ctx, unmatched)...)

	n, err := s.flushSets(ctx, sets)
	if err != nil {
		return n, err
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, patternsKey, stale...).Err(); err != nil {
			s.log.Warn("cache pattern cleanup failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return n, nil
}

// expiredPatterns returns the patterns whose dependency set has expired.
func (s *Store) expiredPatterns(ctx context.Context, patterns []string) []any {
	if len(patterns) == 0 {
		return nil
	}
	cmds := make([]*redis.IntCmd, len(patterns))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, p := range patterns {
			cmds[i] = pipe.Exists(ctx, regexDepPrefix+p)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("cache pattern check failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	var expired []any
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			expired = append(expired, patterns[i])
		}
	}
	return expired
}

func (s *Store) flushSets(ctx context.Context, sets []string) (int, error) {
	seen := make(map[string]struct{})
	var keys []string
	for _, set := range sets {
		members, err := s.client.SMembers(ctx, set).Result()
		if err != nil {
			s.log.Warn("cache dependency read failed", map[string]interface{}{"set": set, "error": err.Error()})
			return 0, fmt.Errorf("cache flush: %w", err)
		}
		for _, m := range members {
			if _, dup := seen[m]; !dup {
				seen[m] = struct{}{}
				keys = append(keys, m)
			}
		}
	}

	toDelete := append(append([]string{}, keys...), sets...)
	if err := s.client.Del(ctx, toDelete...).Err(); err != nil {
		s.log.Warn("cache flush failed", map[string]interface{}{"keys": len(keys), "error": err.Error()})
		return 0, fmt.Errorf("cache flush: %w", err)
	}
	if len(keys) > 0 {
		s.log.Debug("cache entries flushed", map[string]interface{}{"count": len(keys)})
	}
	return len(keys), nil
}
