package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/YF-George/lobbysync/internal/crdt"
	"github.com/YF-George/lobbysync/internal/errors"

	"github.com/google/uuid"
)

// MaxStateBytes is the default cap on a persisted full state, 5 MiB.
// Oversized payloads are rejected before any decoding work.
const MaxStateBytes = 5 * 1024 * 1024

// Store is the durable-write half of the room repository.
type Store interface {
	ReplaceState(ctx context.Context, id uuid.UUID, state []byte, snapshot json.RawMessage) error
}

// Gateway converts authoritative binary state into a relational
// snapshot and writes it durably. Failure is an explicit result; the
// session host treats it as best-effort and never blocks on it.
type Gateway interface {
	Persist(ctx context.Context, roomID uuid.UUID, state []byte) error
}

type DBGateway struct {
	store    Store
	maxBytes int64
}

// NewGateway builds a gateway enforcing the given state-size cap;
// a non-positive cap falls back to MaxStateBytes.
func NewGateway(store Store, maxStateBytes int64) *DBGateway {
	if maxStateBytes <= 0 {
		maxStateBytes = MaxStateBytes
	}
	return &DBGateway{store: store, maxBytes: maxStateBytes}
}

func (g *DBGateway) Persist(ctx context.Context, roomID uuid.UUID, state []byte) error {
	if roomID == uuid.Nil {
		return errors.BadRequest("Invalid Room ID", nil)
	}
	if int64(len(state)) > g.maxBytes {
		return errors.PayloadTooLarge("State exceeds maximum size", nil)
	}

	snapshot, err := ProjectSnapshot(state)
	if err != nil {
		return errors.BadRequest("Undecodable state", err)
	}

	if err := g.store.ReplaceState(ctx, roomID, state, snapshot); err != nil {
		return fmt.Errorf("replace room state: %w", err)
	}
	return nil
}

type snapshotDoc struct {
	Pages map[string][]crdt.Slot `json:"pages"`
}

// ProjectSnapshot decodes full state into a fresh, throwaway document
// and derives the JSON pages projection. The authoritative in-memory
// document is never touched.
func ProjectSnapshot(state []byte) (json.RawMessage, error) {
	doc := crdt.New()
	if err := doc.ApplyUpdate(state); err != nil {
		return nil, err
	}

	out := snapshotDoc{Pages: make(map[string][]crdt.Slot, crdt.NumPages)}
	for page, slots := range doc.Pages() {
		out.Pages[strconv.Itoa(page)] = slots
	}

	return json.Marshal(out)
}
