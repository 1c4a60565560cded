package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the token keys.
const DefaultPrefix = "transbank:token:"

// commands is the subset of redis.Cmdable the store uses.
type commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// Redis is a Store backed by Redis, shared by every server replica.
type Redis struct {
	client commands
	prefix string
}

// NewRedis creates a store over client. An empty prefix uses DefaultPrefix.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return newRedis(client, prefix)
}

func newRedis(client commands, prefix string) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Dial connects to the Redis server at addr and checks it answers.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) Put(ctx context.Context, token string, e Entry, ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding token entry: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+token, data, ttl).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, token string) (Entry, error) {
	return decode(r.client.Get(ctx, r.prefix+token))
}

func (r *Redis) Take(ctx context.Context, token string) (Entry, error) {
	return decode(r.client.GetDel(ctx, r.prefix+token))
}

func decode(cmd *redis.StringCmd) (Entry, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("reading token: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decoding token entry: %w", err)
	}
	return e, nil
}
