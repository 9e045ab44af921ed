package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"room-bridge/backend/internal/telemetry"
	"room-bridge/backend/pkg/utils"
)

const evictTimeout = time.Second

// Cached is a write-through decorator that mirrors the latest value of every class into a
// Valkey/Redis instance. The wrapped Store stays the source of truth: cache failures are logged and
// reads fall back to it. LatestDevices always reads the wrapped store since the device hash may
// have expired.
//
// A key whose cache write failed holds an older value than the wrapped store, so it is marked dirty
// and bypassed on reads until a later write to it succeeds.
type Cached struct {
	Store

	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	l      *slog.Logger

	mu    sync.Mutex
	dirty map[string]struct{}
}

// NewCached wraps inner. Keys are namespaced with prefix (e.g. "room_01" gives "room_01:latest:sensor").
// A ttl of 0 keeps entries until they are overwritten.
func NewCached(l *slog.Logger, inner Store, rdb *redis.Client, prefix string, ttl time.Duration) *Cached {
	return &Cached{
		Store:  inner,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
		l:      l.With(slog.String("component", "store-cache")),
		dirty:  make(map[string]struct{}),
	}
}

func (c *Cached) key(class string) string {
	return c.prefix + ":latest:" + class
}

// deviceMark is the dirty marker of one field of the device hash.
func (c *Cached) deviceMark(deviceID string) string {
	return c.key("devices") + "/" + deviceID
}

func (c *Cached) isDirty(mark string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.dirty[mark]

	return ok
}

func (c *Cached) setDirty(mark string, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dirty {
		c.dirty[mark] = struct{}{}
		return
	}

	delete(c.dirty, mark)
}

func (c *Cached) SaveSensor(ctx context.Context, r telemetry.SensorReading) error {
	if err := c.Store.SaveSensor(ctx, r); err != nil {
		return err
	}

	c.set(ctx, c.key("sensor"), r)

	return nil
}

func (c *Cached) SaveConnection(ctx context.Context, s telemetry.ConnectionState) error {
	if err := c.Store.SaveConnection(ctx, s); err != nil {
		return err
	}

	c.set(ctx, c.key("connection"), s)

	return nil
}

func (c *Cached) SaveSystem(ctx context.Context, h telemetry.SystemHealth) error {
	if err := c.Store.SaveSystem(ctx, h); err != nil {
		return err
	}

	c.set(ctx, c.key("system"), h)

	return nil
}

func (c *Cached) SaveDevice(ctx context.Context, d telemetry.DeviceState) error {
	if err := c.Store.SaveDevice(ctx, d); err != nil {
		return err
	}

	key, mark := c.key("devices"), c.deviceMark(d.Device)

	data, err := utils.ToJSON(d)
	if err == nil {
		_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, d.Device, data)

			if c.ttl > 0 {
				pipe.Expire(ctx, key, c.ttl)
			}

			return nil
		})
	}

	if err != nil {
		c.l.Warn("Failed to update cache", slog.String("key", key), slog.String("device", d.Device), utils.ErrAttr(err))
		c.setDirty(mark, true)
		c.evict(ctx, key, func(ctx context.Context) error {
			return c.rdb.HDel(ctx, key, d.Device).Err()
		})

		return nil
	}

	c.setDirty(mark, false)

	return nil
}

func (c *Cached) LatestSensor(ctx context.Context) (telemetry.SensorReading, error) {
	if r, ok := get[telemetry.SensorReading](ctx, c, c.key("sensor")); ok {
		return r, nil
	}

	return c.Store.LatestSensor(ctx)
}

func (c *Cached) LatestConnection(ctx context.Context) (telemetry.ConnectionState, error) {
	if s, ok := get[telemetry.ConnectionState](ctx, c, c.key("connection")); ok {
		return s, nil
	}

	return c.Store.LatestConnection(ctx)
}

func (c *Cached) LatestSystem(ctx context.Context) (telemetry.SystemHealth, error) {
	if h, ok := get[telemetry.SystemHealth](ctx, c, c.key("system")); ok {
		return h, nil
	}

	return c.Store.LatestSystem(ctx)
}

func (c *Cached) LatestDevice(ctx context.Context, deviceID string) (telemetry.DeviceState, error) {
	if c.isDirty(c.deviceMark(deviceID)) {
		return c.Store.LatestDevice(ctx, deviceID)
	}

	raw, err := c.rdb.HGet(ctx, c.key("devices"), deviceID).Result()
	if err == nil {
		if d, err := utils.FromJSON[telemetry.DeviceState]([]byte(raw)); err == nil {
			return d, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.l.Debug("Cache read failed, falling back", utils.ErrAttr(err))
	}

	return c.Store.LatestDevice(ctx, deviceID)
}

// Close closes the wrapped store and the cache client.
func (c *Cached) Close() error {
	return errors.Join(c.Store.Close(), c.rdb.Close())
}

func (c *Cached) set(ctx context.Context, key string, v any) {
	data, err := utils.ToJSON(v)
	if err == nil {
		err = c.rdb.Set(ctx, key, data, c.ttl).Err()
	}

	if err != nil {
		c.l.Warn("Failed to update cache", slog.String("key", key), utils.ErrAttr(err))
		c.setDirty(key, true)
		c.evict(ctx, key, func(ctx context.Context) error {
			return c.rdb.Del(ctx, key).Err()
		})

		return
	}

	c.setDirty(key, false)
}

// evict removes an entry that could not be overwritten, so other readers of the cache stop serving
// it. It runs even when the write failed because ctx expired.
func (c *Cached) evict(ctx context.Context, key string, del func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evictTimeout)
	defer cancel()

	if err := del(ctx); err != nil {
		c.l.Debug("Failed to evict stale cache entry", slog.String("key", key), utils.ErrAttr(err))
	}
}

func get[T any](ctx context.Context, c *Cached, key string) (T, bool) {
	var zero T

	if c.isDirty(key) {
		return zero, false
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.l.Debug("Cache read failed, falling back", slog.String("key", key), utils.ErrAttr(err))
		}

		return zero, false
	}

	v, err := utils.FromJSON[T](raw)
	if err != nil {
		c.l.Warn("Discarding undecodable cache entry", slog.String("key", key), utils.ErrAttr(err))
		return zero, false
	}

	return v, true
}
