// Package redisstore provides a Redis-backed pending-wait repository for
// deployments where multiple engine workers share the pause/resume state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/persistence"
)

const pendingKeyPrefix = "zaplane:pending:"

// PendingWaitRepository implements persistence.PendingWaitRepository on a
// Redis hash of one JSON document per conversation.
type PendingWaitRepository struct {
	client redis.UniversalClient
}

func NewPendingWaitRepository(client redis.UniversalClient) *PendingWaitRepository {
	return &PendingWaitRepository{client: client}
}

// NewPendingWaitRepositoryFromURL connects with a redis:// URL.
func NewPendingWaitRepositoryFromURL(url string) (*PendingWaitRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &PendingWaitRepository{client: redis.NewClient(opts)}, nil
}

func (r *PendingWaitRepository) Save(ctx context.Context, wait *models.PendingWait) error {
	data, err := json.Marshal(wait)
	if err != nil {
		return fmt.Errorf("failed to marshal pending wait: %w", err)
	}

	return r.client.Set(ctx, pendingKeyPrefix+wait.ConversationID, data, 0).Err()
}

func (r *PendingWaitRepository) Delete(ctx context.Context, conversationID string) error {
	removed, err := r.client.Del(ctx, pendingKeyPrefix+conversationID).Result()
	if err != nil {
		return err
	}

	if removed == 0 {
		return persistence.ErrPendingWaitNotFound
	}

	return nil
}

func (r *PendingWaitRepository) List(ctx context.Context) ([]*models.PendingWait, error) {
	var (
		waits  []*models.PendingWait
		cursor uint64
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pendingKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending waits: %w", err)
		}

		for _, key := range keys {
			data, err := r.client.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // expired between scan and get
				}

				return nil, err
			}

			var wait models.PendingWait
			if err := json.Unmarshal(data, &wait); err != nil {
				return nil, fmt.Errorf("corrupt pending wait at %s: %w", key, err)
			}

			waits = append(waits, &wait)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return waits, nil
}

func (r *PendingWaitRepository) Close() error {
	return r.client.Close()
}
