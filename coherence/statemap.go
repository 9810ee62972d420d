package coherence

import "github.com/archsim/cadss/coherence/protocol"

// StateMap tracks per-block-address coherence state for one processor. An
// address absent from the map is implicitly protocol.Invalid - equivalent
// to never having been cached - so setting a line back to Invalid removes
// its entry rather than leaving a zero-value tombstone behind, keeping the
// map's size bounded by the number of currently-valid lines rather than
// every address ever touched.
type StateMap struct {
	states map[uint64]protocol.State
}

// NewStateMap returns an empty StateMap.
func NewStateMap() *StateMap {
	return &StateMap{states: make(map[uint64]protocol.State)}
}

func (m *StateMap) get(addr uint64) protocol.State {
	if s, ok := m.states[addr]; ok {
		return s
	}
	return protocol.Invalid
}

func (m *StateMap) set(addr uint64, s protocol.State) {
	if s == protocol.Invalid {
		delete(m.states, addr)
		return
	}
	m.states[addr] = s
}

// Len reports how many addresses currently hold a non-Invalid state.
func (m *StateMap) Len() int {
	return len(m.states)
}
