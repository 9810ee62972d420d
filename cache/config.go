package cache

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// MaxRRPVBits bounds the RRPV width so 1<<k stays inside an int32.
const MaxRRPVBits = 31

// OpKind distinguishes a load from a store in a trace operation.
type OpKind int

const (
	LOAD OpKind = iota
	STORE
)

func (k OpKind) String() string {
	if k == STORE {
		return "store"
	}
	return "load"
}

// Op is the trace operation handed to Controller.MemoryRequest.
type Op struct {
	Kind       OpKind
	MemAddress uint64
}

// MemCallback is invoked exactly once per accepted request, either when its
// countdown expires or when a later request preempts it.
type MemCallback func(procNum int, tag uint64)

// EvictCallback is invoked whenever a valid line is permanently displaced
// from this cache - either pushed out of the victim cache on overflow, or
// evicted directly on a conflict miss with no victim cache configured. It is
// the hook by which a coherence controller's InvlReq is driven from the
// cache module, keeping the two modules coupled only through an injected
// callback, not through a direct import.
type EvictCallback func(addr uint64)

// Config holds the cache's shape: associativity E, set-index width s,
// block-offset width b, victim-cache entry count v (0 disables it), and
// RRPV width R (negative selects LRU mode).
type Config struct {
	E int // associativity, E >= 1
	S int // set-index bit width, s >= 0
	B int // block-offset bit width, b >= 0
	V int // victim-cache entries, v >= 0
	R int // RRPV bit width; R < 0 selects LRU mode

	// Log receives diagnostic output. The zero value is fine: a disabled
	// zerolog.Logger discards writes.
	Log zerolog.Logger

	// OnEvict is called for every line permanently displaced from the
	// cache. May be nil.
	OnEvict EvictCallback
}

var (
	// ErrInvalidAssociativity reports E < 1.
	ErrInvalidAssociativity = errors.New("cache: associativity E must be >= 1")
	// ErrInvalidSetBits reports s < 0.
	ErrInvalidSetBits = errors.New("cache: set-index bit width s must be >= 0")
	// ErrInvalidBlockBits reports b < 0.
	ErrInvalidBlockBits = errors.New("cache: block-offset bit width b must be >= 0")
	// ErrInvalidVictimEntries reports v < 0.
	ErrInvalidVictimEntries = errors.New("cache: victim-cache entry count v must be >= 0")
	// ErrRRPVTooWide reports R > MaxRRPVBits.
	ErrRRPVTooWide = errors.New("cache: RRPV bit width R exceeds the supported maximum")
)

func (cfg Config) validate() error {
	if cfg.E < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidAssociativity, cfg.E)
	}
	if cfg.S < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSetBits, cfg.S)
	}
	if cfg.B < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBlockBits, cfg.B)
	}
	if cfg.V < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidVictimEntries, cfg.V)
	}
	if cfg.R > MaxRRPVBits {
		return fmt.Errorf("%w: got %d, max %d", ErrRRPVTooWide, cfg.R, MaxRRPVBits)
	}
	return nil
}

// rrip reports whether this configuration uses RRIP replacement rather
// than LRU. A negative or absent R selects LRU.
func (cfg Config) rrip() bool { return cfg.R >= 0 }

// maxRRPV returns 2^R - 1, the saturating "evict me" RRPV value.
func (cfg Config) maxRRPV() int32 {
	return int32(uint32(1)<<uint(cfg.R)) - 1
}

// numSets returns S = 2^s.
func (cfg Config) numSets() int {
	return 1 << uint(cfg.S)
}

// decompose splits a 64-bit address into a block-aligned address (tag bits
// plus set bits, offset stripped), the per-set tag (block address with the
// set-index bits further stripped), and the set index. When s == 0 the set
// index is always 0 and no 64-bit shift is attempted.
func (cfg Config) decompose(addr uint64) (blockAddr, tag uint64, set int) {
	blockAddr = addr >> uint(cfg.B)
	if cfg.S == 0 {
		return blockAddr, blockAddr, 0
	}
	tag = blockAddr >> uint(cfg.S)
	set = int(blockAddr & ((uint64(1) << uint(cfg.S)) - 1))
	return blockAddr, tag, set
}
