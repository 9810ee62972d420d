package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func reqTypes(reqs []BusRequest) []BusReqType {
	out := make([]BusReqType, len(reqs))
	for i, r := range reqs {
		out[i] = r.Type
	}
	return out
}

func Test_New_When_GivenEachScheme_Then_ReturnsMatchingProtocol(t *testing.T) {
	for _, s := range []Scheme{MI, MSI, MESI, MOESI, MESIF} {
		p, err := New(s)
		require.NoError(t, err)
		require.Equal(t, s, p.Scheme())
	}
}

func Test_New_When_UnknownScheme_Then_Errors(t *testing.T) {
	_, err := New(Scheme(99))
	require.Error(t, err)
}

// A read miss that finds no other sharer should land in ExclusiveClean
// under MESI, reached via Data with no preceding Shared.
func Test_MESI_When_ReadMissNoSharers_Then_BecomesExclusiveClean(t *testing.T) {
	p, _ := New(MESI)

	next, avail, req, err := p.Cache(true, Invalid, 0x40, 0)
	require.NoError(t, err)
	require.False(t, avail)
	require.Equal(t, InvalidSharing, next)
	require.NotNil(t, req)
	require.Equal(t, BusRd, req.Type)

	action, next, reqs, err := p.Snoop(Data, next, 0x40, 0)
	require.NoError(t, err)
	require.Equal(t, DataRecv, action)
	require.Equal(t, ExclusiveClean, next)
	require.Empty(t, reqs)
}

// A store from ExclusiveClean upgrades to Modified with no bus traffic.
func Test_MESI_When_StoreFromExclusiveClean_Then_UpgradesSilently(t *testing.T) {
	p, _ := New(MESI)

	next, avail, req, err := p.Cache(false, ExclusiveClean, 0x40, 0)
	require.NoError(t, err)
	require.True(t, avail)
	require.Equal(t, Modified, next)
	require.Nil(t, req, "E -> M upgrade must not touch the bus")
}

// A remote read snooped against a Modified line under MESI flushes data,
// asserts Shared, and downgrades the line to Sharing (not Owned).
func Test_MESI_When_RemoteReadSnoopsModified_Then_DowngradesToSharing(t *testing.T) {
	p, _ := New(MESI)

	action, next, reqs, err := p.Snoop(BusRd, Modified, 0x40, 1)
	require.NoError(t, err)
	require.Equal(t, NoAction, action)
	require.Equal(t, Sharing, next)
	require.ElementsMatch(t, []BusReqType{Shared, Data}, reqTypes(reqs))
}

// Under MOESI, the same remote read keeps the data dirty and uncommitted,
// moving the line to Owned rather than clean Sharing.
func Test_MOESI_When_RemoteReadSnoopsModified_Then_BecomesOwned(t *testing.T) {
	p, _ := New(MOESI)

	action, next, _, err := p.Snoop(BusRd, Modified, 0x40, 1)
	require.NoError(t, err)
	require.Equal(t, NoAction, action)
	require.Equal(t, Owned, next)
}

// A store against an Owned line under MOESI moves to the intermediate
// OwnedModified state (never straight to Modified) until permission is
// confirmed.
func Test_MOESI_When_StoreFromOwned_Then_GoesToIntermediateOwnedModified(t *testing.T) {
	p, _ := New(MOESI)

	next, avail, req, err := p.Cache(false, Owned, 0x40, 0)
	require.NoError(t, err)
	require.False(t, avail)
	require.Equal(t, OwnedModified, next)
	require.NotNil(t, req)
	require.True(t, next.Intermediate())
}

// Under MESIF, a BusRd snoop against the Forward (Owned) holder forwards
// the data and gives up the Forward role to the requester, downgrading
// itself to plain Sharing - never staying designated forwarder twice.
func Test_MESIF_When_ForwarderSnoopsBusRd_Then_RelinquishesForwardRole(t *testing.T) {
	p, _ := New(MESIF)

	action, next, reqs, err := p.Snoop(BusRd, Owned, 0x40, 1)
	require.NoError(t, err)
	require.Equal(t, NoAction, action)
	require.Equal(t, Sharing, next)
	require.ElementsMatch(t, []BusReqType{Shared, Data}, reqTypes(reqs))
}

// The requester that receives Shared (rather than bare Data) becomes the
// new Forward designee under MESIF, but would have become plain Sharing
// under MOESI for the same Shared signal - the two protocols diverge here.
func Test_MESIF_When_InvalidSharingSeesShared_Then_BecomesForwarder(t *testing.T) {
	p, _ := New(MESIF)

	action, next, _, err := p.Snoop(Shared, InvalidSharing, 0x40, 0)
	require.NoError(t, err)
	require.Equal(t, DataRecv, action)
	require.Equal(t, Owned, next)
}

func Test_MOESI_When_InvalidSharingSeesShared_Then_BecomesPlainSharing(t *testing.T) {
	p, _ := New(MOESI)

	action, next, _, err := p.Snoop(Shared, InvalidSharing, 0x40, 0)
	require.NoError(t, err)
	require.Equal(t, DataRecv, action)
	require.Equal(t, Sharing, next)
}

// MI has no shared state at all: even a load forces exclusive ownership.
func Test_MI_When_Load_Then_RequestsExclusiveOwnership(t *testing.T) {
	p, _ := New(MI)

	next, avail, req, err := p.Cache(true, Invalid, 0x40, 0)
	require.NoError(t, err)
	require.False(t, avail)
	require.Equal(t, InvalidModified, next)
	require.NotNil(t, req)
	require.Equal(t, BusWr, req.Type)
}

func Test_Protocols_When_StateUnsupported_Then_ReturnsErrUnsupportedState(t *testing.T) {
	p, _ := New(MI)
	_, _, _, err := p.Cache(true, Sharing, 0x40, 0)
	require.ErrorIs(t, err, ErrUnsupportedState)
}

func Test_State_Intermediate_When_GivenStableStates_Then_False(t *testing.T) {
	for _, s := range []State{Invalid, Modified, Sharing, ExclusiveClean, Owned} {
		require.False(t, s.Intermediate(), "%s should be stable", s)
	}
	for _, s := range []State{InvalidModified, InvalidSharing, SharingModified, OwnedModified} {
		require.True(t, s.Intermediate(), "%s should be intermediate", s)
	}
}
