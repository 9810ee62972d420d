package bus

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/archsim/cadss/coherence/protocol"
)

// MinProcessors and MaxProcessors bound a SimpleBus's processor count.
const (
	MinProcessors = 1
	MaxProcessors = 256
)

var (
	// ErrProcessorCountOutOfRange reports a requested processor count
	// outside [MinProcessors, MaxProcessors].
	ErrProcessorCountOutOfRange = errors.New("bus: processor count out of range")
	// ErrProcNumOutOfRange reports a procNum outside the registered range.
	ErrProcNumOutOfRange = errors.New("bus: processor number out of range")
	// ErrAlreadyRegistered reports a second RegisterSnooper call for the
	// same procNum.
	ErrAlreadyRegistered = errors.New("bus: processor already registered")
)

// Snooper is the inbound half of the bus, as seen from a coherence
// controller's perspective: receive a broadcast request. coherence.Controller
// satisfies this interface structurally; bus never imports the coherence
// package, which is what lets coherence import bus without a cycle.
type Snooper interface {
	BusReq(reqType protocol.BusReqType, addr uint64, procNum int)
}

// Interconnect is the outbound half: a cache-coherent system issues
// requests through it and ticks it forward alongside its caches.
type Interconnect interface {
	RegisterSnooper(procNum int, s Snooper) error
	BusReq(reqType protocol.BusReqType, addr uint64, procNum int)
	Tick()
	Finish(w io.Writer) error
	Destroy() error
}

// SimpleBus is a single shared bus connecting every processor: every
// BusReq reaches every other registered Snooper on the same tick, with no
// contention model and no arbitration delay. It is "simple" in the same
// sense the reference simulator's bus was - correctness over realism.
type SimpleBus struct {
	snoopers []Snooper
	log      zerolog.Logger

	busReqCount uint64

	// responseHook, when non-nil, is invoked by a nested Data/Shared BusReq
	// to tell the enclosing BusRd/BusWr call that some peer answered, so it
	// should not fabricate a memory response of its own. It forms a stack
	// across recursive BusReq calls purely via normal Go call-stack nesting:
	// each BusRd/BusWr invocation saves and restores the previous hook.
	responseHook func()
}

// NewSimpleBus allocates a bus for numProcessors processors, numbered
// 0..numProcessors-1. log receives per-request diagnostics; the zero
// zerolog.Logger discards them.
func NewSimpleBus(numProcessors int, log zerolog.Logger) (*SimpleBus, error) {
	if numProcessors < MinProcessors || numProcessors > MaxProcessors {
		return nil, fmt.Errorf("%w: got %d", ErrProcessorCountOutOfRange, numProcessors)
	}
	return &SimpleBus{
		snoopers: make([]Snooper, numProcessors),
		log:      log,
	}, nil
}

// RegisterSnooper attaches a Snooper as processor procNum's listener. Each
// procNum may be registered exactly once.
func (b *SimpleBus) RegisterSnooper(procNum int, s Snooper) error {
	if procNum < 0 || procNum >= len(b.snoopers) {
		return fmt.Errorf("%w: %d", ErrProcNumOutOfRange, procNum)
	}
	if b.snoopers[procNum] != nil {
		return fmt.Errorf("%w: proc %d", ErrAlreadyRegistered, procNum)
	}
	b.snoopers[procNum] = s
	return nil
}

// BusReq broadcasts reqType to every registered snooper other than procNum
// itself. A snoop handler that itself issues further bus requests (forwarding
// data, asserting Shared) reenters BusReq synchronously, exactly as the
// originating request would have if it had triggered the same chain.
//
// A BusRd or BusWr that no peer answers with Data or Shared gets a Data
// response synthesized back to the requester once the broadcast completes,
// standing in for main memory: the interconnect this bus replaces always
// has some backing store to fall back on, and a cold read or write with no
// sharers must still resolve to permission, never hang forever (scenario:
// a solo processor's first touch of a line resolves to ExclusiveClean via
// a bare Data response).
func (b *SimpleBus) BusReq(reqType protocol.BusReqType, addr uint64, procNum int) {
	b.busReqCount++
	b.log.Debug().Stringer("type", reqType).Uint64("addr", addr).Int("proc", procNum).
		Msg("bus request")

	if reqType == protocol.Data || reqType == protocol.Shared {
		if b.responseHook != nil {
			b.responseHook()
		}
	}

	var responded bool
	if reqType == protocol.BusRd || reqType == protocol.BusWr {
		prevHook := b.responseHook
		b.responseHook = func() { responded = true }
		defer func() { b.responseHook = prevHook }()
	}

	for i, s := range b.snoopers {
		if i == procNum || s == nil {
			continue
		}
		s.BusReq(reqType, addr, procNum)
	}

	if (reqType == protocol.BusRd || reqType == protocol.BusWr) && !responded {
		if s := b.snoopers[procNum]; s != nil {
			b.busReqCount++
			s.BusReq(protocol.Data, addr, procNum)
		}
	}
}

// Tick exists to satisfy Interconnect; SimpleBus has no internal timing of
// its own to advance.
func (b *SimpleBus) Tick() {}

// Finish writes a one-line summary of bus traffic.
func (b *SimpleBus) Finish(w io.Writer) error {
	_, err := fmt.Fprintf(w, "bus: %d processors, %d requests\n", len(b.snoopers), b.busReqCount)
	return err
}

// Destroy releases the bus's snooper table.
func (b *SimpleBus) Destroy() error {
	b.snoopers = nil
	return nil
}

// Stats reports a short human-readable summary, in the style of this
// codebase's per-component Stats methods.
func (b *SimpleBus) Stats() string {
	return fmt.Sprintf("SimpleBus{processors=%d, busReqs=%d}", len(b.snoopers), b.busReqCount)
}
