package protocol

// miProtocol is the two-state MI scheme: a line is either Modified (this
// cache holds the only valid, writable copy) or Invalid. There is no shared
// read-only state, so even a load forces every other sharer to invalidate.
type miProtocol struct{}

func (miProtocol) Scheme() Scheme { return MI }

func (p miProtocol) Cache(isRead bool, current State, addr uint64, procNum int) (State, bool, *BusRequest, error) {
	switch current {
	case Invalid:
		// MI draws no distinction between a load and a store: both need
		// exclusive ownership, since there is no shared state to read into.
		return InvalidModified, false, busWr(addr, procNum), nil
	case Modified:
		return Modified, true, nil, nil
	case InvalidModified:
		return InvalidModified, false, nil, nil
	default:
		return current, false, nil, unsupported(MI, current)
	}
}

func (p miProtocol) Snoop(reqType BusReqType, current State, addr uint64, procNum int) (CacheAction, State, []BusRequest, error) {
	switch current {
	case Invalid:
		return NoAction, Invalid, nil, nil
	case Modified:
		// Any bus request targets this line, since M is always exclusive;
		// flush and give it up unconditionally.
		return Invalidate, Invalid, []BusRequest{dataReq(addr, procNum)}, nil
	case InvalidModified:
		if reqType == Data {
			return DataRecv, Modified, nil, nil
		}
		return NoAction, InvalidModified, nil, nil
	default:
		return NoAction, current, nil, unsupported(MI, current)
	}
}
