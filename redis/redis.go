package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const stateTTL = 24 * time.Hour

// Cache is the hot rehydration source for room state: one binary blob
// per room id holding the most recently merged full state. It is never
// the system of record, so every method degrades to a no-op when Redis
// is unavailable.
type Cache struct {
	client *redis.Client
}

func New(address string) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr: address,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		log.Println("Redis not available. Running without hot cache.")
		return &Cache{}
	}

	log.Println("Redis connected successfully.")
	return &Cache{client: client}
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func stateKey(roomID uuid.UUID) string {
	return fmt.Sprintf("room:%s:state", roomID)
}

// RoomState returns the cached full state for a room, if present.
func (c *Cache) RoomState(ctx context.Context, roomID uuid.UUID) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	buf, err := c.client.Get(ctx, stateKey(roomID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Cache read failed for room %s: %v", roomID, err)
		}
		return nil, false
	}
	return buf, true
}

// SetRoomState mirrors the latest merged full state. Best-effort.
func (c *Cache) SetRoomState(ctx context.Context, roomID uuid.UUID, state []byte) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, stateKey(roomID), state, stateTTL).Err(); err != nil {
		log.Printf("Cache write failed for room %s: %v", roomID, err)
	}
}

// DeleteRoomState drops the cached state, used when a room is deleted.
func (c *Cache) DeleteRoomState(ctx context.Context, roomID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, stateKey(roomID)).Err(); err != nil {
		log.Printf("Cache delete failed for room %s: %v", roomID, err)
	}
}

func (c *Cache) Close() {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		log.Printf("Error closing redis client: %v", err)
	}
}
