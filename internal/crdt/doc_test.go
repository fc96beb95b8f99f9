package crdt

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSlot_PageRange(t *testing.T) {
	d := NewWithReplica(1)

	_, err := d.AddSlot(0, Slot{Name: "a"})
	assert.Error(t, err)
	_, err = d.AddSlot(NumPages+1, Slot{Name: "a"})
	assert.Error(t, err)

	id, err := d.AddSlot(1, Slot{Name: "a", Role: "DPS", GearScore: 1490})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestPages_AppendOrderAndDefaults(t *testing.T) {
	d := NewWithReplica(1)
	first, _ := d.AddSlot(3, Slot{Name: "first", Role: "DPS"})
	second, _ := d.AddSlot(3, Slot{Name: "second", Role: "Support"})

	pages := d.Pages()
	require.Len(t, pages, NumPages)
	assert.Empty(t, pages[1])

	slots := pages[3]
	require.Len(t, slots, 2)
	assert.Equal(t, first, slots[0].ID)
	assert.Equal(t, second, slots[1].ID)
	assert.Equal(t, "first", slots[0].Name)
}

func TestSetField_UnknownSlot(t *testing.T) {
	d := NewWithReplica(1)
	err := d.SetSlotName(uuid.New(), "ghost")
	assert.Error(t, err)
	err = d.RemoveSlot(uuid.New())
	assert.Error(t, err)
}

func TestSetFields_ApplyToProjection(t *testing.T) {
	d := NewWithReplica(1)
	id, _ := d.AddSlot(1, Slot{Name: "a", Role: "DPS", GearScore: 1000})

	require.NoError(t, d.SetSlotName(id, "renamed"))
	require.NoError(t, d.SetSlotRole(id, "Support"))
	require.NoError(t, d.SetSlotGearScore(id, 1620))

	slots := d.Pages()[1]
	require.Len(t, slots, 1)
	assert.Equal(t, "renamed", slots[0].Name)
	assert.Equal(t, "Support", slots[0].Role)
	assert.Equal(t, 1620, slots[0].GearScore)
}

func TestRemoveSlot_Tombstone(t *testing.T) {
	a := NewWithReplica(1)
	b := NewWithReplica(2)

	id, _ := a.AddSlot(2, Slot{Name: "x"})
	require.NoError(t, b.ApplyUpdate(a.EncodeStateAsUpdate()))

	// concurrent: a removes, b edits
	require.NoError(t, a.RemoveSlot(id))
	require.NoError(t, b.SetSlotName(id, "still here?"))

	ua := a.EncodeStateAsUpdate()
	ub := b.EncodeStateAsUpdate()
	require.NoError(t, a.ApplyUpdate(ub))
	require.NoError(t, b.ApplyUpdate(ua))

	assert.Empty(t, a.Pages()[2])
	assert.Equal(t, a.Pages(), b.Pages())
}

// Updates from a finite op set must commute: replicas receiving the
// same updates in different orders converge to identical pages.
func TestConvergence_OrderPermutations(t *testing.T) {
	src1 := NewWithReplica(1)
	src2 := NewWithReplica(2)

	id1, _ := src1.AddSlot(1, Slot{Name: "alpha", Role: "DPS", GearScore: 1500})
	_, _ = src2.AddSlot(1, Slot{Name: "beta", Role: "Support", GearScore: 1540})
	_, _ = src2.AddSlot(7, Slot{Name: "gamma", Role: "DPS"})
	require.NoError(t, src1.SetSlotGearScore(id1, 1580))

	u1 := src1.EncodeStateAsUpdate()
	u2 := src2.EncodeStateAsUpdate()

	forward := NewWithReplica(10)
	require.NoError(t, forward.ApplyUpdate(u1))
	require.NoError(t, forward.ApplyUpdate(u2))

	backward := NewWithReplica(11)
	require.NoError(t, backward.ApplyUpdate(u2))
	require.NoError(t, backward.ApplyUpdate(u1))

	assert.Equal(t, forward.Pages(), backward.Pages())
	assert.Equal(t, forward.StateVector(), backward.StateVector())
}

func TestIdempotence_DoubleApply(t *testing.T) {
	src := NewWithReplica(1)
	id, _ := src.AddSlot(4, Slot{Name: "solo", Role: "DPS"})
	require.NoError(t, src.SetSlotName(id, "duo"))
	u := src.EncodeStateAsUpdate()

	d := NewWithReplica(2)
	require.NoError(t, d.ApplyUpdate(u))
	once := d.Pages()
	require.NoError(t, d.ApplyUpdate(u))

	assert.Equal(t, once, d.Pages())
	assert.Equal(t, src.StateVector(), d.StateVector())
}

func TestFullState_RoundTrip(t *testing.T) {
	src := NewWithReplica(1)
	for p := 1; p <= NumPages; p++ {
		_, err := src.AddSlot(p, Slot{Name: "p", Role: "DPS", GearScore: p * 100})
		require.NoError(t, err)
	}

	dst := NewWithReplica(2)
	require.NoError(t, dst.ApplyUpdate(src.EncodeStateAsUpdate()))
	assert.Equal(t, src.Pages(), dst.Pages())
}

func TestConcurrentEdits_LastWriterWins(t *testing.T) {
	a := NewWithReplica(1)
	id, _ := a.AddSlot(1, Slot{Name: "base", Role: "DPS"})

	b := NewWithReplica(2)
	require.NoError(t, b.ApplyUpdate(a.EncodeStateAsUpdate()))

	require.NoError(t, a.SetSlotName(id, "from-a"))
	require.NoError(t, b.SetSlotName(id, "from-b"))

	ua := a.EncodeUpdateSince(b.StateVector())
	ub := b.EncodeUpdateSince(a.StateVector())
	require.NoError(t, a.ApplyUpdate(ub))
	require.NoError(t, b.ApplyUpdate(ua))

	// same Lamport clock, replica 2 wins the tie deterministically
	assert.Equal(t, a.Pages(), b.Pages())
	assert.Equal(t, "from-b", a.Pages()[1][0].Name)
}

func TestSlotIDs_StableAcrossMerge(t *testing.T) {
	a := NewWithReplica(1)
	b := NewWithReplica(2)
	idA, _ := a.AddSlot(1, Slot{Name: "a"})
	idB, _ := b.AddSlot(1, Slot{Name: "b"})

	require.NoError(t, a.ApplyUpdate(b.EncodeStateAsUpdate()))
	require.NoError(t, b.ApplyUpdate(a.EncodeStateAsUpdate()))

	ids := map[uuid.UUID]bool{}
	for _, s := range a.Pages()[1] {
		ids[s.ID] = true
	}
	assert.True(t, ids[idA])
	assert.True(t, ids[idB])
	assert.Len(t, ids, 2)
}
