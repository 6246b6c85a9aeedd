package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

const viewStateKeyPrefix = "psy-schedule:view:"

// CacheObserver receives cache hit and latency measurements.
type CacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// ViewStateRepository keeps each user's calendar anchor and view mode in Redis.
// A nil client turns every read into a miss and every write into a no-op.
type ViewStateRepository struct {
	client   *redis.Client
	ttl      time.Duration
	observer CacheObserver
	logger   *zap.Logger
}

// NewViewStateRepository constructs the repository.
func NewViewStateRepository(client *redis.Client, ttl time.Duration, observer CacheObserver, logger *zap.Logger) *ViewStateRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewStateRepository{client: client, ttl: ttl, observer: observer, logger: logger}
}

func viewStateKey(userID string) string {
	return viewStateKeyPrefix + userID
}

// Get returns the stored state or appErrors.ErrCacheMiss.
func (r *ViewStateRepository) Get(ctx context.Context, userID string) (scheduling.NavigatorState, error) {
	var state scheduling.NavigatorState
	if r.client == nil {
		return state, appErrors.ErrCacheMiss
	}

	start := time.Now()
	raw, err := r.client.Get(ctx, viewStateKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.record(false, time.Since(start))
			return state, appErrors.ErrCacheMiss
		}
		return state, fmt.Errorf("redis get view state %s: %w", userID, err)
	}
	r.record(true, time.Since(start))

	if err := json.Unmarshal(raw, &state); err != nil {
		r.logger.Warn("discarding corrupt view state", zap.String("user_id", userID), zap.Error(err))
		return scheduling.NavigatorState{}, appErrors.ErrCacheMiss
	}
	return state, nil
}

// Save stores state with the configured TTL.
func (r *ViewStateRepository) Save(ctx context.Context, userID string, state scheduling.NavigatorState) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal view state for %s: %w", userID, err)
	}

	start := time.Now()
	if err := r.client.Set(ctx, viewStateKey(userID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set view state %s: %w", userID, err)
	}
	if r.observer != nil {
		r.observer.ObserveCacheWrite(time.Since(start))
	}
	return nil
}

// Delete forgets the stored state.
func (r *ViewStateRepository) Delete(ctx context.Context, userID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, viewStateKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete view state %s: %w", userID, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *ViewStateRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *ViewStateRepository) record(hit bool, d time.Duration) {
	if r.observer != nil {
		r.observer.RecordCacheOperation(hit, d)
	}
}
