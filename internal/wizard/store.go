package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "wiz:" // Session key: wiz:{flow}:{user_id}:{session_id}

// Store keeps wizard sessions in Redis under a TTL, so abandoned flows
// disappear on their own.
type Store struct {
	rdb  *redis.Client
	flow string
	ttl  time.Duration
}

func NewStore(rdb *redis.Client, flow string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, flow: flow, ttl: ttl}
}

func (st *Store) key(userID, id string) string {
	return fmt.Sprintf("%s%s:%s:%s", sessionKeyPrefix, st.flow, userID, id)
}

func (st *Store) Put(ctx context.Context, userID string, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := st.rdb.Set(ctx, st.key(userID, s.ID), b, st.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (st *Store) Get(ctx context.Context, userID, id string) (*Session, error) {
	b, err := st.rdb.Get(ctx, st.key(userID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// PurgeOrphans runs the TTL janitor over every given flow.
func PurgeOrphans(ctx context.Context, rdb *redis.Client, defs ...Definition) (int, error) {
	total := 0
	for _, def := range defs {
		n, err := NewStore(rdb, def.Flow, def.TTL).PurgeOrphans(ctx)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PurgeOrphans re-arms the TTL on any session key that lost it, e.g. after
// a restore from a Redis snapshot. Returns how many keys were fixed.
func (st *Store) PurgeOrphans(ctx context.Context) (int, error) {
	fixed := 0
	iter := st.rdb.Scan(ctx, 0, sessionKeyPrefix+st.flow+":*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := st.rdb.TTL(ctx, key).Result()
		if err != nil {
			return fixed, fmt.Errorf("session ttl: %w", err)
		}
		if ttl < 0 {
			if err := st.rdb.Expire(ctx, key, st.ttl).Err(); err != nil {
				return fixed, fmt.Errorf("re-arm session ttl: %w", err)
			}
			fixed++
		}
	}
	return fixed, iter.Err()
}

func (st *Store) Delete(ctx context.Context, userID, id string) error {
	if err := st.rdb.Del(ctx, st.key(userID, id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
