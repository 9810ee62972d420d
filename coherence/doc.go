// Package coherence wires a protocol.Protocol state machine to a single
// processor's view of the system: a map from block address to coherence
// state, a bus.Interconnect to send requests on and receive snoops from,
// and an injected callback back into the owning cache.Controller to carry
// out DataRecv/Invalidate actions and completed permission grants.
// ════════════════════════════════════════════════════════════════════
// coherence never touches cache line contents or timing directly - the
// cache package owns that - but it does decide, on every processor memory
// request, whether the cache's classify/age/evict pipeline may proceed
// immediately (permission already available) or must first round-trip the
// bus.
package coherence
