// ═══════════════════════════════════════════════════════════════════════════
// Package cache: set-associative cache with optional victim cache
// ───────────────────────────────────────────────────────────────────────────
//
// Models one processor's private cache: S = 2^s sets of E lines each,
// addressed by a 64-bit address split into tag / set / block-offset fields,
// plus an optional fully-associative victim cache of v lines that rescues
// lines evicted on a conflict miss.
//
// Two replacement disciplines share one per-line "evict" metric:
//   - LRU: evict is an age, incremented on every set access, reset to 0
//     on the touched line.
//   - RRIP: evict is a re-reference prediction value (RRPV) in [0, 2^k-1];
//     distant values predict "evict me soon".
//
// Exactly one outstanding memory request is modeled per processor, timed
// by a tick countdown (Controller.Tick) rather than by blocking - there are
// no goroutines, channels, or suspension points in this package.
// ═══════════════════════════════════════════════════════════════════════════
package cache
