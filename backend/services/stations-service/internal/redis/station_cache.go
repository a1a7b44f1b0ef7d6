package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"radiowalk/backend/services/stations-service/internal/models"
)

// fillScript writes the station only while the version key still holds the value the reader
// saw before it went to the store. KEYS: station, version. ARGV: version, payload, ttl ms.
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// StationCache keeps single station records, sharing set included, for GetStation reads.
// Each station has a version counter bumped on invalidation so a read that raced a committed
// mutation cannot write its older snapshot back.
type StationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStationCache returns redis-backed cache.
func NewStationCache(client *redis.Client, ttl time.Duration) *StationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StationCache{client: client, ttl: ttl}
}

func (c *StationCache) key(stationID string) string {
	return fmt.Sprintf("stations:station:%s", stationID)
}

func (c *StationCache) versionKey(stationID string) string {
	return fmt.Sprintf("stations:station:%s:version", stationID)
}

// Get returns the cached station, or (nil, nil) on a miss.
func (c *StationCache) Get(ctx context.Context, stationID string) (*models.Station, error) {
	result, err := c.client.Get(ctx, c.key(stationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var station models.Station
	if err := json.Unmarshal(result, &station); err != nil {
		return nil, err
	}
	return &station, nil
}

// Version returns the station's current invalidation counter. Read it before loading the
// station from the store and pass it to Fill.
func (c *StationCache) Version(ctx context.Context, stationID string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(stationID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Fill caches station if no invalidation happened since version was read. It reports whether
// the entry was written.
func (c *StationCache) Fill(ctx context.Context, station *models.Station, version int64) (bool, error) {
	data, err := json.Marshal(station)
	if err != nil {
		return false, err
	}
	written, err := fillScript.Run(ctx, c.client,
		[]string{c.key(station.ID), c.versionKey(station.ID)},
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

// Invalidate bumps the station's version and drops the cached record in one transaction.
func (c *StationCache) Invalidate(ctx context.Context, stationID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(stationID))
		pipe.Expire(ctx, c.versionKey(stationID), c.ttl)
		pipe.Del(ctx, c.key(stationID))
		return nil
	})
	return err
}
