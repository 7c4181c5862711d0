package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loopwork/flowstudio/pkg/models"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 5 * time.Minute

// CachedStore is a read-through redis cache in front of a TableStore.
// Cache failures degrade to the underlying store, never to an error.
type CachedStore struct {
	store  TableStore
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewCachedStore(logger *slog.Logger, store TableStore, client *redis.Client) *CachedStore {
	return &CachedStore{
		store:  store,
		client: client,
		logger: logger,
		ttl:    defaultCacheTTL,
	}
}

func cacheKey(id string) string {
	return "flowstudio:lookup_table:" + id
}

// LookupTableByID returns the cached table when present, otherwise loads it
// from the underlying store and populates the cache.
func (c *CachedStore) LookupTableByID(ctx context.Context, id string) (*models.LookupTable, error) {
	payload, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var table models.LookupTable
		if err := json.Unmarshal(payload, &table); err == nil {
			return &table, nil
		}

		c.logger.WarnContext(ctx, "discarding corrupt lookup table cache entry", "table_id", id)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "lookup table cache read failed", "table_id", id, "error", err)
	}

	table, err := c.store.LookupTableByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(table); err == nil {
		if err := c.client.Set(ctx, cacheKey(id), payload, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "lookup table cache write failed", "table_id", id, "error", err)
		}
	}

	return table, nil
}

// Invalidate drops a table from the cache after it is rewritten.
func (c *CachedStore) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate lookup table %s: %w", id, err)
	}

	return nil
}
