package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in Redis. A positive ttl expires both keys.
type RedisStore struct {
	rdb       redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// NewRedisStore scopes keys under namespace, which may be empty.
func NewRedisStore(rdb redis.UniversalClient, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (r *RedisStore) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + ":" + k
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	user, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyCurrentUser, err)
	}
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key(KeyCurrentUser), user, r.ttl)
		p.Set(ctx, r.key(KeyAuthToken), s.Token, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	raw, err := r.rdb.Get(ctx, r.key(KeyCurrentUser)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s.User); err != nil {
		return Session{}, fmt.Errorf("decode %s: %w", KeyCurrentUser, err)
	}
	token, err := r.rdb.Get(ctx, r.key(KeyAuthToken)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("load token: %w", err)
	}
	s.Token = token
	return s, nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key(KeyCurrentUser), r.key(KeyAuthToken)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
