package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage keys, matching the browser session keys of the web dashboard.
const (
	keyToken = "authToken"
	keyUser  = "user"
)

// RedisStorage persists the credential in Redis so several dashboard
// processes can share one operator session.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

// NewRedisStorage builds a storage under prefix. A zero ttl keeps keys
// until they are cleared.
func NewRedisStorage(client *redis.Client, prefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStorage) tokenKey() string { return r.prefix + keyToken }
func (r *RedisStorage) userKey() string  { return r.prefix + keyUser }

// Load returns the stored credential. A half-written record is cleared and
// reported as absent.
func (r *RedisStorage) Load(ctx context.Context) (Credential, error) {
	vals, err := r.client.MGet(ctx, r.tokenKey(), r.userKey()).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("load credential: %w", err)
	}
	token, _ := vals[0].(string)
	user, _ := vals[1].(string)
	if token == "" && user == "" {
		return Credential{}, ErrNoCredential
	}
	cred := Credential{Token: token, User: json.RawMessage(user)}
	if !cred.Complete() {
		if err := r.Clear(ctx); err != nil {
			return Credential{}, err
		}
		return Credential{}, ErrNoCredential
	}
	return cred, nil
}

// Save writes both keys in one transaction.
func (r *RedisStorage) Save(ctx context.Context, cred Credential) error {
	if !cred.Complete() {
		return ErrIncomplete
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.tokenKey(), cred.Token, r.ttl)
		pipe.Set(ctx, r.userKey(), string(cred.User), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Clear removes both keys at once.
func (r *RedisStorage) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.tokenKey(), r.userKey()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// Healthy verifies redis connectivity.
func (r *RedisStorage) Healthy(ctx context.Context) bool {
	if r == nil || r.client == nil {
		return false
	}
	return r.client.Ping(ctx).Err() == nil
}
