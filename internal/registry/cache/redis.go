package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mediashare/internal/registry/models"
	id "mediashare/pkg/domain"
	"mediashare/pkg/platform/sentinel"
)

// setIfNewer writes ARGV[1] unless the cached entry carries a higher version
// than ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for none. Unreadable
// entries are overwritten.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
	local ok, cached = pcall(cjson.decode, current)
	if ok and type(cached) == 'table' then
		local version = tonumber(cached['version'])
		if version and version > tonumber(ARGV[2]) then
			return 0
		end
	end
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// Redis stores assets as JSON under mediashare:asset:<id>.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, assetID id.AssetID) (*models.MediaAsset, error) {
	raw, err := c.client.Get(ctx, key(assetID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("asset %s: %w", assetID, sentinel.ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var asset models.MediaAsset
	if err := json.Unmarshal(raw, &asset); err != nil {
		// A payload we cannot read is as good as absent.
		_ = c.client.Del(ctx, key(assetID)).Err()
		return nil, fmt.Errorf("asset %s: %w", assetID, sentinel.ErrCacheMiss)
	}
	if err := asset.Partition.Validate(); err != nil {
		_ = c.client.Del(ctx, key(assetID)).Err()
		return nil, fmt.Errorf("asset %s: %w", assetID, sentinel.ErrCacheMiss)
	}
	return &asset, nil
}

// Set never replaces a cached asset with an older version of it.
func (c *Redis) Set(ctx context.Context, asset *models.MediaAsset) error {
	raw, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshal asset: %w", err)
	}
	err = setIfNewer.Run(ctx, c.client, []string{key(asset.AssetID)}, raw, asset.Version, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context, assetID id.AssetID) error {
	if err := c.client.Del(ctx, key(assetID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
