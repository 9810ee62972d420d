package cache

// victimCache is the optional fully-associative buffer shared by all sets
// of one processor's main cache. Its lines are keyed by the full block
// address (tag plus set-index bits, offset stripped) rather than by the
// main cache's per-set tag, so that a single flat array can address
// entries evicted from any set without collision.
type victimCache struct {
	lines []Line
}

func newVictimCache(entries int) *victimCache {
	if entries == 0 {
		return nil
	}
	return &victimCache{lines: make([]Line, entries)}
}

// probe looks for blockAddr among the victim lines. On a hit it clears the
// slot (no tag may be valid in both the main cache and the victim cache at
// once) and returns the evicted entry by value.
func (v *victimCache) probe(blockAddr uint64) (entry Line, ok bool) {
	if v == nil {
		return Line{}, false
	}
	for i := range v.lines {
		l := &v.lines[i]
		if l.Valid && l.Tag == blockAddr {
			entry = *l
			l.clear()
			return entry, true
		}
	}
	return Line{}, false
}

// insertVictim places a just-evicted main-cache line into the victim cache,
// aging and selecting a replacement victim entry only when no slot is
// free. When insertion displaces an existing victim entry (rather
// than filling an empty slot), it returns that entry and overflowed=true;
// the caller uses its Dirty bit to charge a writeback latency penalty.
func (cfg Config) insertVictim(v *victimCache, blockAddr uint64, evicted Line) (displaced Line, overflowed bool) {
	if v == nil {
		return Line{}, false
	}
	r := search(v.lines, blockAddr) // matchIndex is meaningless here
	if r.emptyIndex != -1 {
		v.lines[r.emptyIndex] = Line{Valid: true, Dirty: evicted.Dirty, Tag: blockAddr, Evict: 0}
		return Line{}, false
	}

	cfg.age(v.lines, searchResult{matchIndex: -1, emptyIndex: -1, evictIndex: r.evictIndex, evictVal: r.evictVal})
	displaced = v.lines[r.evictIndex]
	v.lines[r.evictIndex] = Line{Valid: true, Dirty: evicted.Dirty, Tag: blockAddr, Evict: 0}
	return displaced, true
}
