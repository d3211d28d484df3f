package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSessionStore shares admin sessions between app instances. Each user
// has a set of their record ids so a global sign-out can find them all.
type RedisSessionStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisSessionStore) recordKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisSessionStore) userKey(userID string) string {
	return s.prefix + "user:" + userID + ":sessions"
}

func (s *RedisSessionStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.ID), data, s.ttl)
		if rec.UserID() != "" {
			pipe.SAdd(ctx, s.userKey(rec.UserID()), rec.ID)
			pipe.Expire(ctx, s.userKey(rec.UserID()), s.ttl)
		}
		return nil
	})
	return err
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.rdb.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(id))
		if rec.UserID() != "" {
			pipe.SRem(ctx, s.userKey(rec.UserID()), id)
		}
		return nil
	})
	return err
}

func (s *RedisSessionStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.recordKey(id))
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	if err := s.rdb.Del(ctx, s.userKey(userID)).Err(); err != nil {
		return int(n), err
	}
	return int(n), nil
}

type RedisPageStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisPageStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisPageStore {
	return &RedisPageStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisPageStore) Load(ctx context.Context, pageID string, v any) (bool, error) {
	data, err := s.rdb.Get(ctx, s.prefix+"page:"+pageID).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (s *RedisPageStore) Store(ctx context.Context, pageID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.prefix+"page:"+pageID, data, s.ttl).Err()
}
