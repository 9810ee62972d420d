package cache

import "io"

// Latency constants, in ticks, for each way a request can resolve.
const (
	hitLatency            = 1
	coldMissLatency       = 100
	cleanConflictLatency  = 100
	dirtyConflictLatency  = 150 // writeback
	victimRescueLatency   = 1
	victimOverflowClean   = 100
	victimOverflowDirty   = 150
)

// pendingRequest is the single in-flight request a Controller ever tracks.
// If countDown != 0, pending is populated and its callback is the sole
// callback that will fire on countdown expiry.
type pendingRequest struct {
	tag      uint64
	procNum  int
	callback MemCallback
}

// Controller is the cache module's single public entry point: one
// outstanding request at a time, timed by a tick countdown.
type Controller struct {
	cfg    Config
	sets   [][]Line
	victim *victimCache

	countDown int
	pending   pendingRequest
}

// New constructs a Controller, allocating S sets of E lines in a single
// pass, and, if cfg.V > 0, one victim cache.
func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	numSets := cfg.numSets()
	sets := make([][]Line, numSets)
	for i := range sets {
		sets[i] = make([]Line, cfg.E)
	}

	c := &Controller{
		cfg:    cfg,
		sets:   sets,
		victim: newVictimCache(cfg.V),
	}
	cfg.Log.Debug().Int("sets", numSets).Int("E", cfg.E).Int("B", 1<<uint(cfg.B)).
		Msg("initialized cache")
	return c, nil
}

// MemoryRequest accepts one request. If a prior request is still
// outstanding (countDown != 0), its callback fires immediately and
// synchronously before the new request is classified - a best-effort
// serialization with no queueing model. callback must be non-nil; a nil
// callback is a violated precondition and panics.
func (c *Controller) MemoryRequest(op Op, procNum int, tag uint64, callback MemCallback) {
	if callback == nil {
		panic("cache: MemoryRequest requires a non-nil callback")
	}

	if c.countDown != 0 {
		prev := c.pending
		prev.callback(prev.procNum, prev.tag)
	}

	c.pending = pendingRequest{tag: tag, procNum: procNum, callback: callback}

	blockAddr, lineTag, set := c.cfg.decompose(op.MemAddress)
	store := op.Kind == STORE

	line := c.sets[set]
	r := search(line, lineTag)

	var victimEntry Line
	victimHit := false
	if r.matchIndex == -1 {
		victimEntry, victimHit = c.victim.probe(blockAddr)
	}

	c.cfg.age(line, r)

	switch r.classify() {
	case classHit:
		c.countDown = c.handleHit(set, r.matchIndex, store)
	case classColdMiss:
		c.countDown = c.handleColdMiss(set, r.emptyIndex, lineTag, store, victimHit, victimEntry)
	case classConflictMiss:
		c.countDown = c.handleConflictMiss(set, r.evictIndex, lineTag, store, victimHit, victimEntry)
	}

	c.cfg.Log.Debug().Str("op", op.Kind.String()).Uint64("tag", lineTag).Int("set", set).
		Int("countdown", c.countDown).Msg("classified memory request")
}

func (c *Controller) handleHit(set, index int, store bool) int {
	l := &c.sets[set][index]
	l.Evict = 0
	if store && !l.Dirty {
		l.Dirty = true
	}
	c.cfg.Log.Debug().Int("set", set).Int("index", index).Msg("cache hit")
	return hitLatency
}

func (c *Controller) handleColdMiss(set, index int, tag uint64, store, victimHit bool, victimEntry Line) int {
	l := &c.sets[set][index]
	latency := coldMissLatency
	if victimHit {
		*l = Line{Valid: true, Tag: tag, Dirty: victimEntry.Dirty, Evict: 0}
		latency = victimRescueLatency
		c.cfg.Log.Debug().Int("set", set).Int("index", index).Msg("victim cache rescue on cold miss")
	} else {
		*l = Line{Valid: true, Tag: tag, Evict: c.cfg.installRRPV(false)}
	}
	if store {
		l.Dirty = true
	}
	return latency
}

func (c *Controller) handleConflictMiss(set int, index int, tag uint64, store, victimHit bool, victimEntry Line) int {
	l := &c.sets[set][index]
	evicted := *l
	evictedBlockAddr := evicted.blockAddrHint(c.cfg, set)

	var displaced Line
	var overflowed bool
	if c.victim != nil {
		displaced, overflowed = c.cfg.insertVictim(c.victim, evictedBlockAddr, evicted)
	}

	// OnEvict fires only for a line that is genuinely leaving the cache
	// system, never one that is merely relocating into the victim cache:
	// with no victim cache at all, the conflict-evicted line has nowhere
	// else to go; with a victim cache that just overflowed, the line
	// pushed out of the victim cache (not the one that just arrived in
	// it) is the one that is actually gone.
	if c.cfg.OnEvict != nil {
		switch {
		case c.victim == nil:
			c.cfg.OnEvict(evictedBlockAddr)
		case overflowed:
			c.cfg.OnEvict(displaced.Tag)
		}
	}

	if victimHit {
		*l = Line{Valid: true, Tag: tag, Dirty: victimEntry.Dirty, Evict: 0}
	} else {
		*l = Line{Valid: true, Tag: tag, Evict: c.cfg.installRRPV(false)}
	}

	// The memory penalty tracks where the evicted line actually went, not
	// how the incoming request was satisfied: a miss penalty when there is
	// no victim cache to relocate into (writeback-sized if the evicted line
	// was dirty), a miss penalty when the victim cache itself overflowed
	// (writeback-sized if the displaced entry was dirty), and a single tick
	// when the line settled into spare victim-cache capacity.
	var latency int
	switch {
	case c.victim == nil && evicted.Dirty:
		latency = dirtyConflictLatency
	case c.victim == nil:
		latency = cleanConflictLatency
	case overflowed && displaced.Dirty:
		latency = victimOverflowDirty
	case overflowed:
		latency = victimOverflowClean
	default:
		latency = victimRescueLatency
	}
	if store {
		l.Dirty = true
	}
	c.cfg.Log.Debug().Int("set", set).Int("index", index).Bool("victimHit", victimHit).
		Int("latency", latency).Msg("conflict miss")
	return latency
}

// blockAddrHint reconstructs the full block address of a main-cache line
// from its per-set tag and set index, for the eviction callback.
func (l Line) blockAddrHint(cfg Config, set int) uint64 {
	return (l.Tag << uint(cfg.S)) | uint64(set)
}

// ForceInvalidate drops addr's line wherever it currently resides - main
// cache or victim cache - in response to an external coherence
// invalidation (a snoop-driven Invalidate action delivered through the
// coherence module's registered cache callback). It reports whether a
// line was found at all and, if so, whether it was dirty, so the caller
// can decide whether a flush was owed before the data was dropped.
func (c *Controller) ForceInvalidate(addr uint64) (found, dirty bool) {
	blockAddr, tag, set := c.cfg.decompose(addr)
	for i := range c.sets[set] {
		l := &c.sets[set][i]
		if l.Valid && l.Tag == tag {
			dirty = l.Dirty
			l.clear()
			return true, dirty
		}
	}
	if entry, ok := c.victim.probe(blockAddr); ok {
		return true, entry.Dirty
	}
	return false, false
}

// PendingCountDown reports the ticks remaining on the in-flight request,
// zero if none is pending. It exists for tests and diagnostics that need
// to observe timing without reaching into unexported fields.
func (c *Controller) PendingCountDown() int { return c.countDown }

// Tick advances simulated time by one unit, firing the pending callback
// exactly once when the countdown reaches zero. A zero countdown is a
// no-op.
func (c *Controller) Tick() {
	if c.countDown <= 0 {
		return
	}
	c.countDown--
	if c.countDown == 0 {
		c.pending.callback(c.pending.procNum, c.pending.tag)
	}
}

// Finish performs teardown reporting and must not fire callbacks.
func (c *Controller) Finish(_ io.Writer) error {
	return nil
}

// Destroy tears the controller down. It must not fire pending callbacks -
// a request once accepted always completes via Tick, or not at all.
func (c *Controller) Destroy() error {
	return nil
}
