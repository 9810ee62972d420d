package coherence

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/archsim/cadss/bus"
	"github.com/archsim/cadss/coherence/protocol"
)

func newHarness(t *testing.T, scheme protocol.Scheme, numProcs int) (*bus.SimpleBus, []*Controller, [][]uint64, [][]uint64) {
	t.Helper()
	b, err := bus.NewSimpleBus(numProcs, zerolog.Nop())
	require.NoError(t, err)

	granted := make([][]uint64, numProcs)
	invalidated := make([][]uint64, numProcs)
	controllers := make([]*Controller, numProcs)
	for i := 0; i < numProcs; i++ {
		i := i
		proto, err := protocol.New(scheme)
		require.NoError(t, err)
		c := NewController(i, proto, b,
			func(addr uint64, procNum int) { granted[i] = append(granted[i], addr) },
			func(addr uint64, procNum int) { invalidated[i] = append(invalidated[i], addr) },
			zerolog.Nop())
		controllers[i] = c
		require.NoError(t, b.RegisterSnooper(i, c))
	}
	return b, controllers, granted, invalidated
}

// Two processors under MESI: proc 0 reads and misses with nobody else
// sharing, reaching ExclusiveClean directly off the DATA response - the
// first scenario from the bus-and-coherence contract.
func Test_Controller_When_ReadMissNoSharers_Then_BecomesExclusiveClean(t *testing.T) {
	_, controllers, granted, _ := newHarness(t, protocol.MESI, 2)

	avail, err := controllers[0].PermReq(true, 0x40)
	require.NoError(t, err)
	require.False(t, avail, "a cold read must round-trip the bus before permission is available")
	require.Equal(t, []uint64{0x40}, granted[0], "no other sharer means a bare DATA response grants E")
}

// A store from proc 0 while proc 1 holds Shared forces proc 1 to invalidate.
func Test_Controller_When_RemoteStoreSnoopsSharingLine_Then_Invalidates(t *testing.T) {
	_, controllers, granted, invalidated := newHarness(t, protocol.MSI, 2)

	// Get proc 1 into Sharing first.
	avail, err := controllers[1].PermReq(true, 0x40)
	require.NoError(t, err)
	require.False(t, avail)
	require.Equal(t, []uint64{0x40}, granted[1])

	// Now proc 0 stores to the same address.
	avail, err = controllers[0].PermReq(false, 0x40)
	require.NoError(t, err)
	require.False(t, avail)

	require.Equal(t, []uint64{0x40}, invalidated[1], "proc 1's Sharing copy must be invalidated by proc 0's BusWr")
	require.Equal(t, []uint64{0x40}, granted[0], "proc 0's BusWr must eventually complete via DATA/SHARED")
}

// A read under MOESI against a Modified remote line hands data off without
// memory writeback, leaving the remote cache Owned rather than Invalid.
func Test_Controller_When_MOESIRemoteReadAgainstModified_Then_RemoteOwnsData(t *testing.T) {
	_, controllers, granted, _ := newHarness(t, protocol.MOESI, 2)

	_, err := controllers[0].PermReq(false, 0x40) // proc 0 becomes Modified (eventually)
	require.NoError(t, err)
	require.Equal(t, []uint64{0x40}, granted[0])

	_, err = controllers[1].PermReq(true, 0x40) // proc 1 reads, snoops proc 0's Modified line
	require.NoError(t, err)
	require.Equal(t, []uint64{0x40}, granted[1], "proc 1 should receive the forwarded data and be granted access")
	require.Equal(t, protocol.Owned, controllers[0].states.get(0x40), "proc 0 keeps the dirty data as Owned")
}

func Test_InvlReq_When_Called_Then_DropsTrackedState(t *testing.T) {
	_, controllers, _, _ := newHarness(t, protocol.MESI, 1)

	_, err := controllers[0].PermReq(true, 0x40)
	require.NoError(t, err)
	require.Equal(t, 1, controllers[0].states.Len())

	flush := controllers[0].InvlReq(0x40)
	require.False(t, flush, "a solo ExclusiveClean reader holds no dirty data to flush")
	require.Equal(t, 0, controllers[0].states.Len())
}

// A line evicted while Modified must be flushed: the eviction is the only
// path that data will ever take back to memory.
func Test_InvlReq_When_StateIsDirty_Then_ReportsFlushAndEmitsData(t *testing.T) {
	_, controllers, _, _ := newHarness(t, protocol.MESI, 2)

	_, err := controllers[0].PermReq(false, 0x40) // proc 0 becomes Modified
	require.NoError(t, err)
	require.Equal(t, protocol.Modified, controllers[0].states.get(0x40))

	flush := controllers[0].InvlReq(0x40)
	require.True(t, flush, "Modified data must be flushed on eviction")
	require.Equal(t, 0, controllers[0].states.Len())
}

func Test_StateMap_When_AddressNeverSet_Then_DefaultsToInvalid(t *testing.T) {
	m := NewStateMap()
	require.Equal(t, protocol.Invalid, m.get(0x1234))
}

func Test_StateMap_When_SetToInvalid_Then_RemovesEntry(t *testing.T) {
	m := NewStateMap()
	m.set(0x40, protocol.Modified)
	require.Equal(t, 1, m.Len())
	m.set(0x40, protocol.Invalid)
	require.Equal(t, 0, m.Len())
}

// Three processors all load the same line under MESIF, in order. The
// most recent filler - the one whose read resolved off a peer's Shared
// assertion rather than a bare memory response - holds the Forward role;
// everyone before it has been demoted to plain Sharing.
func Test_Controller_When_ThreeProcessorsLoadUnderMESIF_Then_ExactlyOneForwarder(t *testing.T) {
	_, controllers, granted, _ := newHarness(t, protocol.MESIF, 3)

	for p := 0; p < 3; p++ {
		_, err := controllers[p].PermReq(true, 0x40)
		require.NoError(t, err)
		require.Equal(t, []uint64{0x40}, granted[p])
	}

	forwarders := 0
	for p := 0; p < 3; p++ {
		switch s := controllers[p].states.get(0x40); s {
		case protocol.Owned:
			forwarders++
			require.Equal(t, 2, p, "the Forward role belongs to the most recent filler")
		case protocol.Sharing:
		default:
			t.Fatalf("proc %d ended in %s, want O or S", p, s)
		}
	}
	require.Equal(t, 1, forwarders)
}

// At every quiescent point, at most one processor holds Modified or
// ExclusiveClean for an address, and a Modified holder excludes Sharing
// copies everywhere else.
func Test_Controller_When_QuiescentAfterStoreLoadStore_Then_ExclusivityInvariantsHold(t *testing.T) {
	_, controllers, _, _ := newHarness(t, protocol.MESI, 2)

	checkExclusive := func() {
		t.Helper()
		exclusive, sharers := 0, 0
		for _, c := range controllers {
			switch c.states.get(0x40) {
			case protocol.Modified, protocol.ExclusiveClean:
				exclusive++
			case protocol.Sharing:
				sharers++
			}
		}
		require.LessOrEqual(t, exclusive, 1, "M/E must be exclusive across processors")
		if exclusive == 1 {
			require.Zero(t, sharers, "an M/E holder excludes Sharing copies")
		}
	}

	_, err := controllers[0].PermReq(false, 0x40) // proc 0 stores: I -> IM -> M
	require.NoError(t, err)
	require.Equal(t, protocol.Modified, controllers[0].states.get(0x40))
	checkExclusive()

	_, err = controllers[1].PermReq(true, 0x40) // proc 1 loads: both settle in S
	require.NoError(t, err)
	require.Equal(t, protocol.Sharing, controllers[0].states.get(0x40))
	require.Equal(t, protocol.Sharing, controllers[1].states.get(0x40))
	checkExclusive()

	_, err = controllers[1].PermReq(false, 0x40) // proc 1 upgrades: S -> SM -> M
	require.NoError(t, err)
	require.Equal(t, protocol.Modified, controllers[1].states.get(0x40))
	require.Equal(t, protocol.Invalid, controllers[0].states.get(0x40))
	checkExclusive()
}

// After a small MOESI interleaving, compare each processor's whole state
// map against the expected picture at once, rather than probing addresses
// one at a time.
func Test_Controller_When_MOESIInterleavingSettles_Then_StateMapsMatchExpectedPicture(t *testing.T) {
	_, controllers, _, _ := newHarness(t, protocol.MOESI, 2)

	_, err := controllers[0].PermReq(false, 0x40) // proc 0 stores: ends Modified
	require.NoError(t, err)
	_, err = controllers[1].PermReq(true, 0x40) // proc 1 reads: proc 0 hands off, keeps Owned
	require.NoError(t, err)
	_, err = controllers[1].PermReq(true, 0x80) // untouched line: proc 1 alone, ExclusiveClean
	require.NoError(t, err)

	want := []map[uint64]protocol.State{
		{0x40: protocol.Owned},
		{0x40: protocol.Sharing, 0x80: protocol.ExclusiveClean},
	}
	for p, c := range controllers {
		if diff := cmp.Diff(want[p], c.states.states); diff != "" {
			t.Fatalf("proc %d state map mismatch (-want +got):\n%s", p, diff)
		}
	}
}
