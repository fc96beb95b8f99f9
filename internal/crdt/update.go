package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrCorruptUpdate marks update bytes that could not be decoded.
// Callers are expected to drop the update and keep serving.
var ErrCorruptUpdate = errors.New("crdt: corrupt update")

// updateEnvelope is the wire form of an update. Vector is the sender's
// full state vector, so a receiver can tell which part of its own
// state the sender already holds. Ops are sorted per replica by Seq.
type updateEnvelope struct {
	Vector StateVector `json:"sv"`
	Ops    []op        `json:"ops"`
}

// EncodeStateAsUpdate encodes the replica's entire op set. Applying it
// to an empty document reproduces this document's logical state.
func (d *Doc) EncodeStateAsUpdate() []byte {
	return d.encodeSince(nil)
}

// EncodeUpdateSince encodes only the ops the remote vector has not
// incorporated yet.
func (d *Doc) EncodeUpdateSince(remote StateVector) []byte {
	return d.encodeSince(remote)
}

func (d *Doc) encodeSince(remote StateVector) []byte {
	env := updateEnvelope{Vector: d.StateVector()}
	replicas := make([]uint32, 0, len(d.logs))
	for r := range d.logs {
		replicas = append(replicas, r)
	}
	sort.Slice(replicas, func(i, j int) bool { return replicas[i] < replicas[j] })
	for _, r := range replicas {
		from := remote[r] // zero when remote is nil or lacks the replica
		log := d.logs[r]
		if from >= uint64(len(log)) {
			continue
		}
		env.Ops = append(env.Ops, log[from:]...)
	}
	buf, err := json.Marshal(env)
	if err != nil {
		// ops hold only plain values, marshal cannot fail
		panic(err)
	}
	return buf
}

// ApplyUpdate merges update bytes produced by another replica's
// EncodeStateAsUpdate or EncodeUpdateSince. Ops already incorporated
// are skipped, so applying the same update twice is a no-op; ops
// arriving ahead of a causal gap are buffered until the gap fills.
func (d *Doc) ApplyUpdate(data []byte) error {
	var env updateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptUpdate, err)
	}
	for _, o := range env.Ops {
		if err := d.ingest(o); err != nil {
			return err
		}
	}
	d.drainPending()
	return nil
}

func (d *Doc) ingest(o op) error {
	switch o.Kind {
	case opAddSlot, opSetField, opRemoveSlot:
	default:
		return fmt.Errorf("%w: unknown op kind %q", ErrCorruptUpdate, o.Kind)
	}
	if o.Kind == opAddSlot && o.Init == nil {
		return fmt.Errorf("%w: add op without slot payload", ErrCorruptUpdate)
	}
	have := uint64(len(d.logs[o.Replica]))
	switch {
	case o.Seq <= have:
		// already incorporated
	case o.Seq == have+1:
		d.logs[o.Replica] = append(d.logs[o.Replica], o)
		if o.Clock > d.clock {
			d.clock = o.Clock
		}
	default:
		if d.pending[o.Replica] == nil {
			d.pending[o.Replica] = make(map[uint64]op)
		}
		d.pending[o.Replica][o.Seq] = o
	}
	return nil
}

func (d *Doc) drainPending() {
	for r, buf := range d.pending {
		for {
			next := uint64(len(d.logs[r])) + 1
			o, ok := buf[next]
			if !ok {
				break
			}
			delete(buf, next)
			d.logs[r] = append(d.logs[r], o)
			if o.Clock > d.clock {
				d.clock = o.Clock
			}
		}
		if len(buf) == 0 {
			delete(d.pending, r)
		}
	}
}
