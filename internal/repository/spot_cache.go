package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/parking-cession/internal/config"
	"github.com/iliyamo/parking-cession/internal/model"
)

// spotSource is the subset of SpotRepo wrapped by CachedSpotRepo.
type spotSource interface {
	ListActive(ctx context.Context) ([]model.Spot, error)
	GetByID(ctx context.Context, id uint64) (*model.Spot, error)
	GetAssignedTo(ctx context.Context, userID uint64) (*model.Spot, error)
}

// CachedSpotRepo keeps the active spot catalogue in Redis.  The
// catalogue is read on every availability query but changes only when
// an administrator edits spots, so a short TTL is the only
// invalidation.  Single-spot lookups used on write paths always go to
// the database.  Redis failures fall back to the database.
type CachedSpotRepo struct {
	next   spotSource
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// cachedSpot is the JSON form stored in Redis.
type cachedSpot struct {
	ID         uint64         `json:"id"`
	Label      string         `json:"label"`
	Type       model.SpotType `json:"type"`
	AssignedTo *uint64        `json:"assigned_to,omitempty"`
}

// NewCachedSpotRepo wraps next.  When caching is disabled or rdb is nil
// the wrapper is a plain pass-through.
func NewCachedSpotRepo(next spotSource, rdb *redis.Client, cfg config.CacheConfig, logger *slog.Logger) *CachedSpotRepo {
	if !cfg.Enabled {
		rdb = nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSpotRepo{
		next:   next,
		rdb:    rdb,
		key:    cfg.Prefix + ":spots:active",
		ttl:    ttl,
		logger: logger,
	}
}

// ListActive serves the catalogue from Redis when present.
func (c *CachedSpotRepo) ListActive(ctx context.Context) ([]model.Spot, error) {
	if c.rdb == nil {
		return c.next.ListActive(ctx)
	}
	if bs, err := c.rdb.Get(ctx, c.key).Bytes(); err == nil {
		var cached []cachedSpot
		if err := json.Unmarshal(bs, &cached); err == nil {
			spots := make([]model.Spot, 0, len(cached))
			for _, cs := range cached {
				spots = append(spots, model.Spot{
					ID: cs.ID, Label: cs.Label, Type: cs.Type, AssignedTo: cs.AssignedTo, IsActive: true,
				})
			}
			return spots, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("spot cache read failed", "error", err)
	}

	spots, err := c.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	cached := make([]cachedSpot, 0, len(spots))
	for _, s := range spots {
		cached = append(cached, cachedSpot{ID: s.ID, Label: s.Label, Type: s.Type, AssignedTo: s.AssignedTo})
	}
	if payload, err := json.Marshal(cached); err == nil {
		if err := c.rdb.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("spot cache write failed", "error", err)
		}
	}
	return spots, nil
}

func (c *CachedSpotRepo) GetByID(ctx context.Context, id uint64) (*model.Spot, error) {
	return c.next.GetByID(ctx, id)
}

func (c *CachedSpotRepo) GetAssignedTo(ctx context.Context, userID uint64) (*model.Spot, error) {
	return c.next.GetAssignedTo(ctx, userID)
}

// Invalidate drops the cached catalogue.
func (c *CachedSpotRepo) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key).Err()
}
