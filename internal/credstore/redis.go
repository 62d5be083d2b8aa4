package credstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/conduct-console/internal/model"
)

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldIdentity     = "identity"
)

// RedisStore keeps the credential in a Redis hash so several console processes
// (or machines) can share one session.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a RedisStore using the hash at key.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Save(ctx context.Context, cred model.Credential) error {
	if !cred.Valid() {
		return incompleteErr()
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key,
			fieldAccessToken, cred.AccessToken,
			fieldRefreshToken, cred.RefreshToken,
		)
		pipe.HDel(ctx, s.key, fieldIdentity)
		return nil
	})
	if err != nil {
		return storageErr("save credential", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*model.Credential, error) {
	vals, err := s.rdb.HMGet(ctx, s.key, fieldAccessToken, fieldRefreshToken).Result()
	if err != nil {
		return nil, storageErr("load credential", err)
	}
	access, _ := vals[0].(string)
	refresh, _ := vals[1].(string)
	cred := model.Credential{AccessToken: access, RefreshToken: refresh}
	if !cred.Valid() {
		return nil, nil
	}
	return &cred, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return storageErr("clear credential", err)
	}
	return nil
}

func (s *RedisStore) SaveIdentity(ctx context.Context, identity model.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return storageErr("encode identity", err)
	}
	// Only cache when a credential exists, otherwise the hash would hold an
	// identity without tokens.
	n, err := s.rdb.Exists(ctx, s.key).Result()
	if err != nil {
		return storageErr("check credential", err)
	}
	if n == 0 {
		return nil
	}
	if err := s.rdb.HSet(ctx, s.key, fieldIdentity, data).Err(); err != nil {
		return storageErr("save identity", err)
	}
	return nil
}

func (s *RedisStore) LoadIdentity(ctx context.Context) (*model.Identity, error) {
	raw, err := s.rdb.HGet(ctx, s.key, fieldIdentity).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, storageErr("load identity", err)
	}
	var identity model.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, storageErr("decode identity", err)
	}
	return &identity, nil
}
