package crdt

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
)

// NumPages is the fixed number of pages in a lobby document.
const NumPages = 12

// Slot is one signup entry on a page.
type Slot struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	GearScore int       `json:"gearScore"`
}

const (
	FieldName      = "name"
	FieldRole      = "role"
	FieldGearScore = "gearScore"
)

const (
	opAddSlot    = "add"
	opSetField   = "set"
	opRemoveSlot = "remove"
)

// op is a single replicated mutation. Replica+Seq identify the op,
// Clock is a Lamport stamp used for last-writer-wins resolution and
// for ordering concurrently added slots.
type op struct {
	Replica uint32    `json:"r"`
	Seq     uint64    `json:"s"`
	Clock   uint64    `json:"c"`
	Kind    string    `json:"k"`
	Page    int       `json:"p,omitempty"`
	SlotID  uuid.UUID `json:"id"`
	Init    *Slot     `json:"slot,omitempty"`
	Field   string    `json:"f,omitempty"`
	StrVal  string    `json:"v,omitempty"`
	IntVal  int       `json:"n,omitempty"`
}

// stamp orders ops deterministically across replicas.
func (o op) stamp() [3]uint64 {
	return [3]uint64{o.Clock, uint64(o.Replica), o.Seq}
}

func stampLess(a, b [3]uint64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// StateVector summarizes which ops a replica has incorporated:
// replica id -> highest contiguous sequence number applied.
type StateVector map[uint32]uint64

// Doc is one replica of the lobby document. The document state is a
// grow-only set of ops held as dense per-replica logs; every read
// projection is a deterministic fold over that set, so replicas that
// hold the same ops materialize identical pages.
type Doc struct {
	replica uint32
	clock   uint64
	logs    map[uint32][]op
	// ops received ahead of a causal gap, keyed by replica then seq
	pending map[uint32]map[uint64]op
}

// New creates an empty document with a random replica id.
func New() *Doc {
	return NewWithReplica(rand.Uint32())
}

// NewWithReplica creates an empty document with a fixed replica id,
// mainly for deterministic tests.
func NewWithReplica(replica uint32) *Doc {
	return &Doc{
		replica: replica,
		logs:    make(map[uint32][]op),
		pending: make(map[uint32]map[uint64]op),
	}
}

// Replica returns this replica's id.
func (d *Doc) Replica() uint32 {
	return d.replica
}

// StateVector returns a copy of the replica's current state vector.
func (d *Doc) StateVector() StateVector {
	sv := make(StateVector, len(d.logs))
	for r, log := range d.logs {
		sv[r] = uint64(len(log))
	}
	return sv
}

func (d *Doc) nextOp(kind string) op {
	d.clock++
	return op{
		Replica: d.replica,
		Seq:     uint64(len(d.logs[d.replica])) + 1,
		Clock:   d.clock,
		Kind:    kind,
	}
}

func (d *Doc) appendLocal(o op) {
	d.logs[d.replica] = append(d.logs[d.replica], o)
}

// AddSlot appends a new slot to the given page and returns its id.
// A zero slot id is replaced with a fresh UUID; ids are never
// regenerated after that, even across concurrent merges.
func (d *Doc) AddSlot(page int, s Slot) (uuid.UUID, error) {
	if page < 1 || page > NumPages {
		return uuid.Nil, fmt.Errorf("crdt: page %d out of range 1..%d", page, NumPages)
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	o := d.nextOp(opAddSlot)
	o.Page = page
	o.SlotID = s.ID
	init := s
	o.Init = &init
	d.appendLocal(o)
	return s.ID, nil
}

// SetSlotName updates a slot's display name.
func (d *Doc) SetSlotName(id uuid.UUID, name string) error {
	return d.setField(id, FieldName, name, 0)
}

// SetSlotRole updates a slot's role.
func (d *Doc) SetSlotRole(id uuid.UUID, role string) error {
	return d.setField(id, FieldRole, role, 0)
}

// SetSlotGearScore updates a slot's gear score.
func (d *Doc) SetSlotGearScore(id uuid.UUID, score int) error {
	return d.setField(id, FieldGearScore, "", score)
}

func (d *Doc) setField(id uuid.UUID, field, sv string, iv int) error {
	if !d.slotKnown(id) {
		return fmt.Errorf("crdt: unknown slot %s", id)
	}
	o := d.nextOp(opSetField)
	o.SlotID = id
	o.Field = field
	o.StrVal = sv
	o.IntVal = iv
	d.appendLocal(o)
	return nil
}

// RemoveSlot tombstones a slot. Removal is permanent: a remove always
// wins over concurrent field edits.
func (d *Doc) RemoveSlot(id uuid.UUID) error {
	if !d.slotKnown(id) {
		return fmt.Errorf("crdt: unknown slot %s", id)
	}
	o := d.nextOp(opRemoveSlot)
	o.SlotID = id
	d.appendLocal(o)
	return nil
}

func (d *Doc) slotKnown(id uuid.UUID) bool {
	for _, log := range d.logs {
		for _, o := range log {
			if o.Kind == opAddSlot && o.SlotID == id {
				return true
			}
		}
	}
	return false
}

// slotState accumulates the fold over one slot's ops.
type slotState struct {
	add     op
	removed bool
	// best set op per field
	sets map[string]op
}

// Pages materializes the document: page number -> ordered slots.
// Every page 1..NumPages is present, empty pages as empty slices.
func (d *Doc) Pages() map[int][]Slot {
	states := make(map[uuid.UUID]*slotState)
	for _, log := range d.logs {
		for _, o := range log {
			switch o.Kind {
			case opAddSlot:
				st := stateFor(states, o.SlotID)
				// duplicate adds cannot happen (ids are unique), but
				// keep the smallest stamp if they ever do
				if st.add.Kind == "" || stampLess(o.stamp(), st.add.stamp()) {
					st.add = o
				}
			case opRemoveSlot:
				stateFor(states, o.SlotID).removed = true
			case opSetField:
				st := stateFor(states, o.SlotID)
				if prev, ok := st.sets[o.Field]; !ok || stampLess(prev.stamp(), o.stamp()) {
					st.sets[o.Field] = o
				}
			}
		}
	}

	pages := make(map[int][]Slot, NumPages)
	for p := 1; p <= NumPages; p++ {
		pages[p] = []Slot{}
	}
	for _, st := range states {
		if st.add.Kind == "" || st.removed {
			continue
		}
		s := *st.add.Init
		s.ID = st.add.SlotID
		for field, o := range st.sets {
			switch field {
			case FieldName:
				s.Name = o.StrVal
			case FieldRole:
				s.Role = o.StrVal
			case FieldGearScore:
				s.GearScore = o.IntVal
			}
		}
		pages[st.add.Page] = append(pages[st.add.Page], s)
	}
	for p := range pages {
		slots := pages[p]
		adds := make(map[uuid.UUID][3]uint64, len(slots))
		for _, s := range slots {
			adds[s.ID] = states[s.ID].add.stamp()
		}
		sort.Slice(slots, func(i, j int) bool {
			return stampLess(adds[slots[i].ID], adds[slots[j].ID])
		})
	}
	return pages
}

func stateFor(states map[uuid.UUID]*slotState, id uuid.UUID) *slotState {
	st, ok := states[id]
	if !ok {
		st = &slotState{sets: make(map[string]op)}
		states[id] = st
	}
	return st
}
