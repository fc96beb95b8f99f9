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

// AuditRecorder appends an audit entry for a room action.
type AuditRecorder interface {
	RecordAction(ctx context.Context, roomID uuid.UUID, userID, userName, action string, detail any) error
}

const (
	persistRetryBase  = 30 * time.Second
	maxPersistRetries = 3
	persistTimeout    = 10 * time.Second
	rehydrateTimeout  = 10 * time.Second
)

type connection struct {
	conn      Conn
	userID    string
	userName  string
	activeTab int
}

type actorConfig struct {
	id              uuid.UUID
	doc             *crdt.Doc
	gateway         persist.Gateway
	cache           *redis.Cache
	loader          StateLoader
	audit           AuditRecorder
	pool            *worker.Pool
	scheduler       Scheduler
	persistInterval time.Duration
	onIdle          func(roomID uuid.UUID)
}

// Actor is the single logical authority for one room. Every mutation
// of the document and the connection set runs on the actor goroutine,
// serialized through the events queue; rooms never share state, so
// actors run fully independently of each other.
type Actor struct {
	id  uuid.UUID
	doc *crdt.Doc

	events   chan func()
	done     chan struct{}
	stopOnce sync.Once

	conns map[string]*connection

	gateway         persist.Gateway
	cache           *redis.Cache
	loader          StateLoader
	audit           AuditRecorder
	pool            *worker.Pool
	scheduler       Scheduler
	persistInterval time.Duration
	onIdle          func(roomID uuid.UUID)

	// persistence bookkeeping, touched only on the actor goroutine
	persisting    bool
	persistQueued bool
	timerPending  bool
	retries       int

	timerMu     sync.Mutex
	cancelTimer func()
	cancelRetry func()
}

func newActor(cfg actorConfig) *Actor {
	return &Actor{
		id:              cfg.id,
		doc:             cfg.doc,
		events:          make(chan func(), 256),
		done:            make(chan struct{}),
		conns:           make(map[string]*connection),
		gateway:         cfg.gateway,
		cache:           cfg.cache,
		loader:          cfg.loader,
		audit:           cfg.audit,
		pool:            cfg.pool,
		scheduler:       cfg.scheduler,
		persistInterval: cfg.persistInterval,
		onIdle:          cfg.onIdle,
	}
}

func (a *Actor) start() {
	// rehydration is the actor's first event, so a slow store read
	// delays only this room's connects, never any other room's
	a.events <- a.rehydrate
	go a.run()
	a.scheduleTimer()
}

// rehydrate loads authoritative state on the actor goroutine: hot
// cache first, then the durable store, else the document stays blank.
func (a *Actor) rehydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), rehydrateTimeout)
	defer cancel()

	if buf, ok := a.cache.RoomState(ctx, a.id); ok {
		doc := crdt.New()
		if err := doc.ApplyUpdate(buf); err != nil {
			log.Printf("room %s: cached state corrupt, falling back: %v", a.id, err)
		} else {
			a.doc = doc
			return
		}
	}

	if a.loader == nil {
		return
	}
	state, err := a.loader.LoadState(ctx, a.id)
	if err != nil {
		log.Printf("room %s: durable state unavailable, starting blank: %v", a.id, err)
		return
	}
	if len(state) == 0 {
		return
	}
	doc := crdt.New()
	if err := doc.ApplyUpdate(state); err != nil {
		log.Printf("room %s: durable state corrupt, starting blank: %v", a.id, err)
		return
	}
	a.doc = doc
}

func (a *Actor) run() {
	for {
		select {
		case fn := <-a.events:
			fn()
		case <-a.done:
			return
		}
	}
}

// post enqueues work for the actor goroutine; events posted after
// Stop are dropped.
func (a *Actor) post(fn func()) {
	select {
	case a.events <- fn:
	case <-a.done:
	}
}

// Stop terminates the actor. Teardown is immediate: persistence is
// best-effort, so no drain period is needed.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.timerMu.Lock()
		if a.cancelTimer != nil {
			a.cancelTimer()
		}
		if a.cancelRetry != nil {
			a.cancelRetry()
		}
		a.timerMu.Unlock()
	})
}

// Connect registers a connection and sends it the authoritative full
// state.
func (a *Actor) Connect(c Conn, userID, userName string) {
	a.post(func() {
		a.conns[c.ID()] = &connection{
			conn:      c,
			userID:    userID,
			userName:  userName,
			activeTab: DefaultTab,
		}
		c.Send(Message{Type: MessageSync, Update: a.doc.EncodeStateAsUpdate()}.encode())
		a.broadcastPresence()
		a.recordAction(userID, userName, "joined")
	})
}

// HandleUpdate merges a diff into authoritative state, rebroadcasts it
// to the room's other connections in merge order, and mirrors the new
// full state into the hot cache. A corrupt update is dropped; the room
// keeps serving.
func (a *Actor) HandleUpdate(connID string, update []byte) {
	a.post(func() {
		if err := a.doc.ApplyUpdate(update); err != nil {
			log.Printf("room %s: dropping bad update from %s: %v", a.id, connID, err)
			return
		}
		env := Message{Type: MessageSync, Update: update}.encode()
		for id, c := range a.conns {
			if id == connID {
				continue
			}
			c.conn.Send(env)
		}

		state := a.doc.EncodeStateAsUpdate()
		a.pool.Submit(func(ctx context.Context) error {
			a.cache.SetRoomState(ctx, a.id, state)
			return nil
		})
	})
}

// HandleAwareness updates a connection's active tab and pushes the
// recomputed presence counts to everyone.
func (a *Actor) HandleAwareness(connID string, tab int) {
	a.post(func() {
		c, ok := a.conns[connID]
		if !ok {
			return
		}
		if tab < 1 {
			tab = DefaultTab
		}
		c.activeTab = tab
		a.broadcastPresence()
	})
}

// Disconnect removes a connection. An emptied room triggers an
// immediate durable-persist attempt: the primary durability
// checkpoint.
func (a *Actor) Disconnect(connID string) {
	a.post(func() {
		c, ok := a.conns[connID]
		if !ok {
			return
		}
		delete(a.conns, connID)
		a.recordAction(c.userID, c.userName, "left")
		a.broadcastPresence()
		if len(a.conns) == 0 {
			a.startPersist(false)
		}
	})
}

// closeAll drops every live connection, used when the room is deleted
// out from under them.
func (a *Actor) closeAll() {
	done := make(chan struct{})
	a.post(func() {
		for id, c := range a.conns {
			delete(a.conns, id)
			c.conn.Close()
		}
		close(done)
	})
	select {
	case <-done:
	case <-a.done:
	}
}

// ConnCount reports the live connection count, answered on the actor
// goroutine.
func (a *Actor) ConnCount() int {
	reply := make(chan int, 1)
	a.post(func() { reply <- len(a.conns) })
	select {
	case n := <-reply:
		return n
	case <-a.done:
		return 0
	}
}

// Snapshot returns the current authoritative full state.
func (a *Actor) Snapshot() []byte {
	reply := make(chan []byte, 1)
	a.post(func() { reply <- a.doc.EncodeStateAsUpdate() })
	select {
	case b := <-reply:
		return b
	case <-a.done:
		return nil
	}
}

func (a *Actor) broadcastPresence() {
	states := make(map[string]int, len(a.conns))
	for id, c := range a.conns {
		states[id] = c.activeTab
	}
	env := Message{Type: MessagePresence, Counts: TabCounts(states)}.encode()
	for _, c := range a.conns {
		c.conn.Send(env)
	}
}

func (a *Actor) recordAction(userID, userName, action string) {
	if a.audit == nil {
		return
	}
	a.pool.Submit(func(ctx context.Context) error {
		return a.audit.RecordAction(ctx, a.id, userID, userName, action, nil)
	})
}

func (a *Actor) scheduleTimer() {
	a.timerMu.Lock()
	a.cancelTimer = a.scheduler.Schedule(a.persistInterval, func() {
		a.post(func() { a.startPersist(true) })
	})
	a.timerMu.Unlock()
}

// startPersist runs on the actor goroutine. At most one persist is in
// flight per room; a trigger arriving mid-flight is queued and re-run
// with the then-current state, which also serves as the natural retry
// for earlier failures.
func (a *Actor) startPersist(fromTimer bool) {
	if fromTimer {
		// the timer reschedules only once this attempt completes
		a.timerPending = true
	}
	if a.persisting {
		a.persistQueued = true
		return
	}
	a.persisting = true

	state := a.doc.EncodeStateAsUpdate()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		err := a.gateway.Persist(ctx, a.id, state)
		a.post(func() { a.finishPersist(err) })
	}()
}

func (a *Actor) finishPersist(err error) {
	a.persisting = false
	if a.timerPending {
		a.timerPending = false
		a.scheduleTimer()
	}

	if err != nil {
		log.Printf("room %s: persist failed: %v", a.id, err)
	} else {
		a.retries = 0
	}

	if a.persistQueued {
		a.persistQueued = false
		a.startPersist(false)
		return
	}

	if err != nil {
		// bounded backoff while the room stays empty, so the last
		// delta is not silently lost; superseded by any later trigger
		if len(a.conns) == 0 && a.retries < maxPersistRetries {
			a.retries++
			delay := persistRetryBase << (a.retries - 1)
			a.timerMu.Lock()
			a.cancelRetry = a.scheduler.Schedule(delay, func() {
				a.post(func() { a.startPersist(false) })
			})
			a.timerMu.Unlock()
		}
		return
	}

	if len(a.conns) == 0 && a.onIdle != nil {
		a.onIdle(a.id)
	}
}
