package room

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/YF-George/lobbysync/internal/crdt"
	"github.com/YF-George/lobbysync/internal/persist"
	"github.com/YF-George/lobbysync/internal/worker"
	"github.com/YF-George/lobbysync/redis"

	"github.com/google/uuid"
)

// StateLoader reads the durable binary state for rehydration when the
// hot cache misses.
type StateLoader interface {
	LoadState(ctx context.Context, id uuid.UUID) ([]byte, error)
}

type RegistryConfig struct {
	Gateway         persist.Gateway
	Cache           *redis.Cache
	Loader          StateLoader
	Audit           AuditRecorder
	Pool            *worker.Pool
	Scheduler       Scheduler
	PersistInterval time.Duration
	EvictAfter      time.Duration
}

// Registry maps room id -> actor. Actors are created lazily on first
// connection and evicted once a room has been empty and durably
// persisted for EvictAfter.
type Registry struct {
	cfg   RegistryConfig
	mu    sync.Mutex
	rooms map[uuid.UUID]*Actor
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewClockScheduler()
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = 5 * time.Minute
	}
	if cfg.EvictAfter <= 0 {
		cfg.EvictAfter = time.Minute
	}
	return &Registry{
		cfg:   cfg,
		rooms: make(map[uuid.UUID]*Actor),
	}
}

// Connect attaches a connection to the room's actor, creating and
// rehydrating the actor first when the room is cold.
func (r *Registry) Connect(ctx context.Context, roomID uuid.UUID, c Conn, userID, userName string) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	actor, ok := r.rooms[roomID]
	if !ok {
		actor = r.spawn(roomID)
		r.rooms[roomID] = actor
	}
	actor.Connect(c, userID, userName)
	return actor
}

// Get returns the live actor for a room, or nil when the room is cold.
func (r *Registry) Get(roomID uuid.UUID) *Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[roomID]
}

// spawn creates the room's actor with a blank document. Rehydration
// (hot cache, then durable store) runs as the actor's own first event,
// so the map lock is never held across store I/O.
func (r *Registry) spawn(roomID uuid.UUID) *Actor {
	actor := newActor(actorConfig{
		id:              roomID,
		doc:             crdt.New(),
		gateway:         r.cfg.Gateway,
		cache:           r.cfg.Cache,
		loader:          r.cfg.Loader,
		audit:           r.cfg.Audit,
		pool:            r.cfg.Pool,
		scheduler:       r.cfg.Scheduler,
		persistInterval: r.cfg.PersistInterval,
		onIdle:          r.scheduleEvict,
	})
	actor.start()
	return actor
}

// scheduleEvict runs on the actor goroutine after a successful persist
// of an empty room; it must not take the registry lock there.
func (r *Registry) scheduleEvict(roomID uuid.UUID) {
	r.cfg.Scheduler.Schedule(r.cfg.EvictAfter, func() {
		r.evict(roomID)
	})
}

// Drop tears the room down after deletion: any live actor is stopped
// with its connections closed, and the cached blob is invalidated so
// the deleted document cannot rehydrate from the hot cache.
func (r *Registry) Drop(ctx context.Context, roomID uuid.UUID) {
	r.mu.Lock()
	actor, ok := r.rooms[roomID]
	delete(r.rooms, roomID)
	r.mu.Unlock()

	if ok {
		actor.closeAll()
		actor.Stop()
	}
	r.cfg.Cache.DeleteRoomState(ctx, roomID)
}

func (r *Registry) evict(roomID uuid.UUID) {
	r.mu.Lock()
	actor, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	// holding the lock keeps new connections out while we re-check
	if actor.ConnCount() > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.rooms, roomID)
	r.mu.Unlock()
	actor.Stop()
}

// Shutdown persists every live room's state best-effort, then stops
// all actors.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	actors := make(map[uuid.UUID]*Actor, len(r.rooms))
	for id, a := range r.rooms {
		actors[id] = a
	}
	r.rooms = make(map[uuid.UUID]*Actor)
	r.mu.Unlock()

	for id, a := range actors {
		if state := a.Snapshot(); state != nil {
			if err := r.cfg.Gateway.Persist(ctx, id, state); err != nil {
				log.Printf("room %s: shutdown persist failed: %v", id, err)
			}
		}
		a.Stop()
	}
}
