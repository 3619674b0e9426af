package world

import (
	gonet "net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/tmwgo/server/internal/net"
)

type denyRing struct{}

func (denyRing) CanEquip(_ *Player, _ uint32, slot EquipSlot) bool { return slot != SlotRing }

func testSession(t *testing.T, id uint64) *net.Session {
	t.Helper()
	server, client := gonet.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	return net.NewSession(server, id, net.SessionOptions{InQueueSize: 4, OutQueueSize: 4}, zaptest.NewLogger(t))
}

func TestInventoryAdd(t *testing.T) {
	inv := NewInventory()
	inv.Add(501, 1)
	inv.Add(501, 2)
	inv.Add(502, 1)

	assert.Equal(t, 2, inv.Size())
	assert.Equal(t, 3, inv.Count(501))
	assert.True(t, inv.Has(502))
	assert.False(t, inv.Has(503))
	assert.Zero(t, inv.Count(503))
}

func TestInventoryStackCap(t *testing.T) {
	inv := NewInventory()
	inv.Add(1, MaxStack)
	inv.Add(1, 5)
	assert.Equal(t, MaxStack, inv.Count(1))
}

func TestEquip(t *testing.T) {
	p := NewPlayer(1, "Ada", 1, 10, 10)
	p.Inv.Add(501, 1)
	p.Inv.Add(601, 1)

	assert.False(t, p.Equip(999, SlotWeapon, nil), "not possessed")
	assert.False(t, p.Equip(501, SlotMax, nil), "invalid slot")
	assert.False(t, p.Equip(601, SlotRing, denyRing{}), "rejected by rules")
	assert.False(t, p.Dirty)
	assert.Zero(t, p.Gear.Slots[SlotRing])

	assert.True(t, p.Equip(501, SlotWeapon, denyRing{}))
	assert.Equal(t, uint32(501), p.Gear.Slots[SlotWeapon])
	assert.True(t, p.Dirty)
}

func TestParseEquipSlot(t *testing.T) {
	slot, err := ParseEquipSlot("necklace")
	require.NoError(t, err)
	assert.Equal(t, SlotNecklace, slot)
	assert.Equal(t, "necklace", slot.String())

	_, err = ParseEquipSlot("tail")
	assert.Error(t, err)
}

func TestSnapshotIsACopy(t *testing.T) {
	p := NewPlayer(7, "Bo", 2, 3, 4)
	p.Inv.Add(10, 2)
	p.Gear.Set(SlotHead, 10)

	snap := p.Snapshot()
	p.Inv.Add(10, 1)
	p.X = 99

	assert.Equal(t, 3, snap.X)
	assert.Equal(t, []InvItem{{ItemID: 10, Count: 2}}, snap.Items)
	assert.Equal(t, uint32(10), snap.Equipment[SlotHead])
}

func TestAreAround(t *testing.T) {
	assert.True(t, AreAround(0, 0, AroundAreaInTiles, AroundAreaInTiles))
	assert.True(t, AreAround(5, 5, 5, 5))
	assert.False(t, AreAround(0, 0, AroundAreaInTiles+1, 0))
	assert.False(t, AreAround(0, 0, 0, -AroundAreaInTiles-1))
}

func TestAreAroundSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x1 := rapid.IntRange(-1000, 1000).Draw(t, "x1")
		y1 := rapid.IntRange(-1000, 1000).Draw(t, "y1")
		x2 := rapid.IntRange(-1000, 1000).Draw(t, "x2")
		y2 := rapid.IntRange(-1000, 1000).Draw(t, "y2")
		if AreAround(x1, y1, x2, y2) != AreAround(x2, y2, x1, y1) {
			t.Fatalf("asymmetric for (%d,%d) (%d,%d)", x1, y1, x2, y2)
		}
	})
}

func TestIsAroundRequiresSameMap(t *testing.T) {
	a := NewPlayer(1, "A", 1, 10, 10)
	b := NewPlayer(2, "B", 2, 10, 10)
	assert.False(t, a.IsAround(b))
	b.MapID = 1
	assert.True(t, a.IsAround(b))
	assert.True(t, a.IsAround(a))
}

func TestStateBindAndRemove(t *testing.T) {
	st := NewState()
	s1 := testSession(t, 1)
	p := NewPlayer(42, "Ada", 1, 0, 0)

	assert.Nil(t, st.AddPlayer(p, s1))
	assert.Same(t, p, st.GetBySession(1))
	assert.Same(t, p, st.GetByCharID(42))
	assert.Equal(t, uint64(1), p.SessionID)

	assert.Same(t, p, st.RemovePlayer(1))
	assert.Nil(t, st.GetByCharID(42))
	assert.Nil(t, st.RemovePlayer(1))
	assert.Zero(t, st.PlayerCount())
}

func TestStateRebindDisplacesOlderSession(t *testing.T) {
	st := NewState()
	s1, s2 := testSession(t, 1), testSession(t, 2)
	older := NewPlayer(42, "Ada", 1, 0, 0)
	newer := NewPlayer(42, "Ada", 1, 0, 0)

	st.AddPlayer(older, s1)
	displaced := st.AddPlayer(newer, s2)
	assert.Same(t, older, displaced)
	assert.Nil(t, st.GetBySession(1))

	// reaping the older session must not unbind the newer one
	st.RemovePlayer(1)
	assert.Same(t, newer, st.GetByCharID(42))
	assert.Same(t, newer, st.GetBySession(2))
}

func TestAOIGridNeighbourhood(t *testing.T) {
	g := NewAOIGrid()
	g.Add(1, 1, 5, 5)
	g.Add(2, 1, 25, 5)  // two cells away
	g.Add(3, 1, -3, 14) // negative coordinates
	g.Add(4, 2, 5, 5)   // other map

	assert.ElementsMatch(t, []uint64{1, 3}, g.GetNearby(1, 5, 5))
	assert.ElementsMatch(t, []uint64{2}, g.GetNearby(1, 29, 0))

	g.Add(1, 1, 21, 5) // moves next to 2
	assert.ElementsMatch(t, []uint64{1, 2}, g.GetNearby(1, 25, 5))

	g.Remove(1)
	g.Remove(1)
	assert.Len(t, g.at, 3)
	assert.ElementsMatch(t, []uint64{2}, g.GetNearby(1, 25, 5))
}

func TestNearbyMatchesAreAround(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		st := NewState()
		n := rapid.IntRange(1, 12).Draw(t, "n")
		players := make([]*Player, n)
		for i := range players {
			p := NewPlayer(int64(i+1), "p",
				rapid.IntRange(1, 2).Draw(t, "map"),
				rapid.IntRange(-40, 40).Draw(t, "x"),
				rapid.IntRange(-40, 40).Draw(t, "y"))
			// sessions are only used for their IDs here
			st.bySession[uint64(i+1)] = p
			st.byCharID[p.ID] = p
			p.SessionID = uint64(i + 1)
			st.aoi.Add(p.SessionID, p.MapID, p.X, p.Y)
			players[i] = p
		}

		speaker := players[rapid.IntRange(0, n-1).Draw(t, "speaker")]
		var want []*Player
		for _, p := range players {
			if speaker.IsAround(p) {
				want = append(want, p)
			}
		}
		got := st.Nearby(speaker)
		if len(got) != len(want) {
			t.Fatalf("got %d listeners, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("listener %d: got session %d, want %d", i, got[i].SessionID, want[i].SessionID)
			}
		}
	})
}

func TestStateTracksPositionsForNearby(t *testing.T) {
	st := NewState()
	a := NewPlayer(1, "Ada", 1, 10, 10)
	b := NewPlayer(2, "Bea", 1, 20, 20)
	c := NewPlayer(3, "Cid", 1, 21, 10)
	st.AddPlayer(a, testSession(t, 1))
	st.AddPlayer(b, testSession(t, 2))
	st.AddPlayer(c, testSession(t, 3))

	assert.Equal(t, []*Player{a, b}, st.Nearby(a))
	assert.Equal(t, []*Player{b, c}, st.Nearby(c))

	st.RemovePlayer(2)
	assert.Equal(t, []*Player{a}, st.Nearby(a))

	// a displaced binding leaves the grid with its session
	again := NewPlayer(1, "Ada", 1, 10, 10)
	st.AddPlayer(again, testSession(t, 4))
	assert.Equal(t, []*Player{again}, st.Nearby(again))
	assert.Len(t, st.aoi.at, 2)
}
