package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/repository"
)

// ChallengeStore keeps in-flight ceremony state in Redis. Entries expire with
// the challenge TTL and are consumed on first read, so a challenge can never
// be replayed.
type ChallengeStore struct {
	client *redis.Client
	prefix string
}

// NewChallengeStore wires a Redis-backed challenge store.
func NewChallengeStore(client *redis.Client, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "challenge"
	}
	return &ChallengeStore{client: client, prefix: prefix}
}

func (s *ChallengeStore) key(id string) string {
	return s.prefix + ":" + id
}

// Save stores the ceremony state under id for the duration of ttl.
func (s *ChallengeStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

// Take retrieves and deletes the ceremony state atomically. A missing or
// expired entry surfaces as repository.ErrNotFound.
func (s *ChallengeStore) Take(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.GetDel(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("take challenge: %w", err)
	}
	return data, nil
}

var _ port.ChallengeStore = (*ChallengeStore)(nil)
