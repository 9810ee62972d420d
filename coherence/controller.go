package coherence

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/archsim/cadss/bus"
	"github.com/archsim/cadss/coherence/protocol"
)

// PermCallback notifies the owning cache.Controller of a coherence event
// for one of its lines: permission granted (DataRecv) or an external
// invalidation (Invalidate).
type PermCallback func(addr uint64, procNum int)

// Controller is one processor's coherence state machine: a protocol.Protocol
// implementation, a map from address to current state, and a bus.Interconnect
// to talk to every other processor's Controller through. It implements
// bus.Snooper, so it can be registered directly with a bus.Interconnect.
type Controller struct {
	procNum int
	proto   protocol.Protocol
	bus     bus.Interconnect
	states  *StateMap
	log     zerolog.Logger

	onGrant      PermCallback
	onInvalidate PermCallback
}

// NewController builds a Controller for procNum, running proto, issuing
// requests through busI. onGrant fires when a pending permission request
// completes (the line received DataRecv, from a peer's response or from
// the bus's stand-in memory response); onInvalidate fires when this processor's copy of a line is
// forced out by another processor's request. Either callback may be nil.
func NewController(procNum int, proto protocol.Protocol, busI bus.Interconnect, onGrant, onInvalidate PermCallback, log zerolog.Logger) *Controller {
	return &Controller{
		procNum:      procNum,
		proto:        proto,
		bus:          busI,
		states:       NewStateMap(),
		log:          log,
		onGrant:      onGrant,
		onInvalidate: onInvalidate,
	}
}

// PermReq asks whether this processor already holds sufficient permission
// (read for a load, read+write for a store) on addr, advancing the local
// state machine as a side effect and issuing a bus request if a round trip
// is required. A request arriving while addr is already in one of the four
// intermediate states is logged, not rejected - it is treated the way the
// underlying protocol treats it: the new request is folded into the
// pending transition, since the cache module guarantees only one
// outstanding memory request at a time and will have already fired the
// prior request's callback before this one is issued.
func (c *Controller) PermReq(isRead bool, addr uint64) (permAvail bool, err error) {
	current := c.states.get(addr)
	if current.Intermediate() {
		c.log.Warn().Uint64("addr", addr).Stringer("state", current).Int("proc", c.procNum).
			Msg("memory request observed an address still in an intermediate coherence state")
	}

	next, avail, req, err := c.proto.Cache(isRead, current, addr, c.procNum)
	if err != nil {
		c.log.Error().Err(err).Uint64("addr", addr).Int("proc", c.procNum).
			Msg("processor request hit an unsupported coherence state")
		// An undefined state escaping the protocol's own switch is coerced
		// back to Invalid rather than left to fester: no permission is
		// granted, but the map entry can't wedge the address forever.
		c.states.set(addr, protocol.Invalid)
		return false, err
	}
	// Commit the new state before dispatching the bus request: a
	// synchronous, same-processor echo (the bus synthesizing a memory
	// response when no peer answers) must see the post-transition state.
	c.states.set(addr, next)
	if req != nil {
		c.bus.BusReq(req.Type, req.Addr, req.ProcNum)
	}
	return avail, nil
}

// BusReq implements bus.Snooper: react to a request broadcast by another
// processor (or, for Data/Shared messages, by a response to this
// processor's own earlier request). The broadcaster's procNum identifies
// who triggered this snoop, but any reply this Controller issues (Data,
// Shared) must be attributed to itself, not forwarded from procNum: the
// bus excludes a message's own attributed processor from receiving it,
// and it is the original requester who needs to receive the reply.
func (c *Controller) BusReq(reqType protocol.BusReqType, addr uint64, procNum int) {
	current := c.states.get(addr)
	action, next, reqs, err := c.proto.Snoop(reqType, current, addr, c.procNum)
	if err != nil {
		c.log.Error().Err(err).Uint64("addr", addr).Int("proc", c.procNum).
			Msg("snoop hit an unsupported coherence state")
		c.states.set(addr, protocol.Invalid)
		return
	}
	c.states.set(addr, next)
	for _, r := range reqs {
		c.bus.BusReq(r.Type, r.Addr, r.ProcNum)
	}

	switch action {
	case protocol.DataRecv:
		if c.onGrant != nil {
			c.onGrant(addr, c.procNum)
		}
	case protocol.Invalidate:
		if c.onInvalidate != nil {
			c.onInvalidate(addr, c.procNum)
		}
	}
}

// dirty reports whether s is one of the coherence states treated as
// carrying data that must be flushed: Modified, Owned, and the two
// in-flight upgrade states OwnedModified and SharingModified. The check
// is by state alone, so Owned counts as dirty under MESIF too, where it
// stands for the clean Forward role.
func dirty(s protocol.State) bool {
	switch s {
	case protocol.Modified, protocol.Owned, protocol.OwnedModified, protocol.SharingModified:
		return true
	default:
		return false
	}
}

// InvlReq tells the coherence state machine that this processor's cache
// has dropped addr of its own accord (a conflict-miss eviction with no
// victim cache to catch it, or a victim-cache overflow), so its coherence
// state doesn't outlive the data it described. It reports whether the
// state being dropped carried dirty data; when it does, the controller
// flushes that data onto the bus as a Data message before removing the
// entry, since no other path would ever write it back.
func (c *Controller) InvlReq(addr uint64) (flush bool) {
	current := c.states.get(addr)
	flush = dirty(current)
	c.states.set(addr, protocol.Invalid)
	if flush {
		c.bus.BusReq(protocol.Data, addr, c.procNum)
	}
	return flush
}

// Scheme reports which coherence scheme this Controller runs.
func (c *Controller) Scheme() protocol.Scheme { return c.proto.Scheme() }

// Stats reports a short human-readable summary of this processor's
// coherence state.
func (c *Controller) Stats() string {
	return fmt.Sprintf("Controller{proc=%d, scheme=%s, trackedLines=%d}",
		c.procNum, c.proto.Scheme(), c.states.Len())
}
