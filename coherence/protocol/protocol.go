// Package protocol implements the snoop-based coherence state machines
// themselves, as a set of pure functions over (request, current state) ->
// (next state, bus requests to issue). It has no notion of an address
// space, a directory, or an actual bus wire - that belongs to the
// coherence and bus packages, which depend on this one and never the
// reverse. Deliberately, Cache and Snoop never call out to a bus
// themselves: they return the requests they'd like issued as plain data,
// so the caller can commit the resulting state before any bus traffic
// goes out. A protocol function that sent bus requests as a side effect
// could have a synchronous, same-processor echo (the bus answering a cold
// read with Data when nobody else has the line) observe the *old* state,
// since the caller hadn't committed the new one yet.
package protocol

import (
	"errors"
	"fmt"
)

// BusReqType is a message carried on the shared snoop bus. The same four
// kinds serve as both outbound requests a cache issues (BusRd, BusWr) and
// inbound notifications every other cache's snoop logic reacts to (Data,
// Shared).
type BusReqType int

const (
	BusRd BusReqType = iota
	BusWr
	Data
	Shared
)

func (t BusReqType) String() string {
	switch t {
	case BusRd:
		return "BusRd"
	case BusWr:
		return "BusWr"
	case Data:
		return "Data"
	case Shared:
		return "Shared"
	default:
		return fmt.Sprintf("BusReqType(%d)", int(t))
	}
}

// CacheAction tells a coherence controller what a snoop result requires of
// the local cache array: nothing, accept data being handed to it, or
// invalidate the line outright.
type CacheAction int

const (
	NoAction CacheAction = iota
	DataRecv
	Invalidate
)

func (a CacheAction) String() string {
	switch a {
	case NoAction:
		return "NoAction"
	case DataRecv:
		return "DataRecv"
	case Invalidate:
		return "Invalidate"
	default:
		return fmt.Sprintf("CacheAction(%d)", int(a))
	}
}

// State is a per-line coherence state. The zero value is Invalid, matching
// the convention that an address absent from a state map is implicitly
// Invalid (it has never been cached, or was evicted).
type State int

const (
	Invalid State = iota
	Modified
	Sharing
	ExclusiveClean
	Owned
	InvalidModified
	InvalidSharing
	SharingModified
	OwnedModified
)

func (s State) String() string {
	switch s {
	case Invalid:
		return "I"
	case Modified:
		return "M"
	case Sharing:
		return "S"
	case ExclusiveClean:
		return "E"
	case Owned:
		return "O"
	case InvalidModified:
		return "IM"
	case InvalidSharing:
		return "IS"
	case SharingModified:
		return "SM"
	case OwnedModified:
		return "OM"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Intermediate reports whether s is one of the four states a line only
// passes through while awaiting a bus response, never a state a processor
// request should observe twice in a row without an intervening snoop.
func (s State) Intermediate() bool {
	switch s {
	case InvalidModified, InvalidSharing, SharingModified, OwnedModified:
		return true
	default:
		return false
	}
}

// Scheme names one of the five supported coherence protocols.
type Scheme int

const (
	MI Scheme = iota
	MSI
	MESI
	MOESI
	MESIF
)

func (s Scheme) String() string {
	switch s {
	case MI:
		return "MI"
	case MSI:
		return "MSI"
	case MESI:
		return "MESI"
	case MOESI:
		return "MOESI"
	case MESIF:
		return "MESIF"
	default:
		return fmt.Sprintf("Scheme(%d)", int(s))
	}
}

// ErrUnsupportedState reports a (scheme, state) pair that should never
// occur - a line sitting in a state that scheme never produces.
var ErrUnsupportedState = errors.New("protocol: state not supported by this scheme")

// BusRequest is a single bus message a Cache or Snoop transition wants
// issued, described as plain data rather than as a side-effecting call.
type BusRequest struct {
	Type    BusReqType
	Addr    uint64
	ProcNum int
}

// Protocol is a snoop-based coherence scheme, expressed as two pure
// transition functions. Cache handles a request arriving from the local
// processor; Snoop handles a request observed on the bus, issued by some
// other processor. Neither touches cache-line contents or timing, and
// neither touches the bus directly - that is the coherence package's job,
// committing the returned state and then dispatching the returned
// requests through a bus.Interconnect.
type Protocol interface {
	// Cache computes the next state for a local load (isRead) or store
	// request seen in current. It returns whether read/write permission is
	// already available (no bus round trip required) and, if a bus
	// request must be issued, a non-nil BusRequest describing it.
	Cache(isRead bool, current State, addr uint64, procNum int) (next State, permAvail bool, req *BusRequest, err error)

	// Snoop computes the next state and required cache action for a bus
	// message of the given type observed while the line is in current. It
	// may request further bus messages of its own (forwarding data,
	// asserting Shared), returned in issue order.
	Snoop(reqType BusReqType, current State, addr uint64, procNum int) (action CacheAction, next State, reqs []BusRequest, err error)

	// Scheme reports which coherence scheme this Protocol implements.
	Scheme() Scheme
}

// New returns the Protocol implementing scheme.
func New(scheme Scheme) (Protocol, error) {
	switch scheme {
	case MI:
		return miProtocol{}, nil
	case MSI:
		return msiProtocol{}, nil
	case MESI:
		return mesiProtocol{}, nil
	case MOESI:
		return moesiProtocol{}, nil
	case MESIF:
		return mesifProtocol{}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown scheme %d", int(scheme))
	}
}

func busRd(addr uint64, procNum int) *BusRequest { return &BusRequest{Type: BusRd, Addr: addr, ProcNum: procNum} }
func busWr(addr uint64, procNum int) *BusRequest { return &BusRequest{Type: BusWr, Addr: addr, ProcNum: procNum} }
func dataReq(addr uint64, procNum int) BusRequest {
	return BusRequest{Type: Data, Addr: addr, ProcNum: procNum}
}

// sharedReq is how a snooping cache tells the requester (and anyone else
// listening) that it still holds a copy, so the requester must settle for
// Sharing/Owned rather than ExclusiveClean/Modified.
func sharedReq(addr uint64, procNum int) BusRequest {
	return BusRequest{Type: Shared, Addr: addr, ProcNum: procNum}
}

func unsupported(scheme Scheme, s State) error {
	return fmt.Errorf("%w: %s saw state %s", ErrUnsupportedState, scheme, s)
}
