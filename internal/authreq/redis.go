package authreq

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis"

	"github.com/jmartynas/social-login/internal/errs"
)

const redisKeyPrefix = "oauth2:state:"

// RedisStore shares authorization requests between server replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(_ http.ResponseWriter, r *http.Request, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode auth request: %w", err)
	}
	if err := s.client.WithContext(r.Context()).Set(redisKeyPrefix+req.State, data, MaxAge).Err(); err != nil {
		return fmt.Errorf("redis set auth request: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(_ http.ResponseWriter, r *http.Request, state string) (*Request, error) {
	if state == "" {
		return nil, errs.ErrStateNotFound
	}
	client := s.client.WithContext(r.Context())
	key := redisKeyPrefix + state

	pipe := client.TxPipeline()
	get := pipe.Get(key)
	pipe.Del(key)
	_, err := pipe.Exec()
	switch {
	case err == nil: // OK
	case err == redis.Nil:
		return nil, errs.ErrStateNotFound
	default:
		return nil, fmt.Errorf("redis take auth request: %w", err)
	}

	data, err := get.Bytes()
	if err != nil {
		return nil, errs.ErrStateNotFound
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode auth request: %w", err)
	}
	if req.State != state || expired(&req, time.Now()) {
		return nil, errs.ErrStateNotFound
	}
	return &req, nil
}
