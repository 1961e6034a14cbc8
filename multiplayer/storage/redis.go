package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	viewKeyPrefix   = "roomview:"
	channelPrefix   = "room:"
	copyQueueKey    = "fanout:pending"
	DefaultCacheTTL = 2 * time.Second
)

// RedisRoomCache caches serialized room documents with a short TTL.
type RedisRoomCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRoomCache(rdb *redis.Client, ttl time.Duration) *RedisRoomCache {
	return &RedisRoomCache{rdb: rdb, ttl: ttl}
}

func (c *RedisRoomCache) Get(ctx context.Context, code string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, viewKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (c *RedisRoomCache) Set(ctx context.Context, code string, view []byte) error {
	return c.rdb.Set(ctx, viewKeyPrefix+code, view, c.ttl).Err()
}

func (c *RedisRoomCache) Invalidate(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, viewKeyPrefix+code).Err()
}

// RedisNotifier publishes room saves on a per-room channel.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

func (n *RedisNotifier) Publish(ctx context.Context, code string) error {
	return n.rdb.Publish(ctx, channelPrefix+code, code).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context, code string) (<-chan struct{}, func(), error) {
	pubsub := n.rdb.Subscribe(ctx, channelPrefix+code)
	// 購読の確立を待つ
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe room %s: %w", code, err)
	}

	updates := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(updates)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				// 未読の通知があれば合流させる
				select {
				case updates <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
	return updates, cancel, nil
}

// RedisCopyQueue is a FIFO list of copy jobs.
type RedisCopyQueue struct {
	rdb *redis.Client
}

func NewRedisCopyQueue(rdb *redis.Client) *RedisCopyQueue {
	return &RedisCopyQueue{rdb: rdb}
}

func (q *RedisCopyQueue) Enqueue(ctx context.Context, job CopyJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, copyQueueKey, payload).Err()
}

func (q *RedisCopyQueue) Dequeue(ctx context.Context) (CopyJob, error) {
	var job CopyJob
	payload, err := q.rdb.LPop(ctx, copyQueueKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return job, ErrNotFound
	}
	if err != nil {
		return job, err
	}
	if err := json.Unmarshal(payload, &job); err != nil {
		return job, fmt.Errorf("decode copy job: %w", err)
	}
	return job, nil
}
