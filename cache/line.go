package cache

// Line is a single cache line: validity, dirtiness, tag, and the
// replacement metric shared by both disciplines (an LRU age in LRU mode,
// an RRPV in RRIP mode). When Valid is false every other field is
// meaningless and must be ignored on read, zeroed on clear.
type Line struct {
	Valid bool
	Dirty bool
	Tag   uint64
	Evict int32
}

// clear resets a line to its invalid, meaningless-contents state.
func (l *Line) clear() {
	*l = Line{}
}
