package protocol

// moesiProtocol adds an Owned state to MESI: on a remote read, a Modified
// line can hand off data without first writing back to memory, becoming
// Owned (dirty-but-shared) instead of clean Sharing. The owner keeps
// answering future BusRd snoops with Data until a store or invalidation
// retires it.
type moesiProtocol struct{}

func (moesiProtocol) Scheme() Scheme { return MOESI }

func (p moesiProtocol) Cache(isRead bool, current State, addr uint64, procNum int) (State, bool, *BusRequest, error) {
	switch current {
	case Invalid:
		if isRead {
			return InvalidSharing, false, busRd(addr, procNum), nil
		}
		return InvalidModified, false, busWr(addr, procNum), nil
	case Modified:
		return Modified, true, nil, nil
	case InvalidModified:
		return InvalidModified, false, nil, nil
	case Sharing:
		if isRead {
			return Sharing, true, nil, nil
		}
		return SharingModified, false, busWr(addr, procNum), nil
	case InvalidSharing:
		return InvalidSharing, false, nil, nil
	case SharingModified:
		return SharingModified, false, nil, nil
	case ExclusiveClean:
		if isRead {
			return ExclusiveClean, true, nil, nil
		}
		return Modified, true, nil, nil
	case Owned:
		if isRead {
			return Owned, true, nil, nil
		}
		return OwnedModified, false, busWr(addr, procNum), nil
	case OwnedModified:
		return OwnedModified, false, nil, nil
	default:
		return current, false, nil, unsupported(MOESI, current)
	}
}

func (p moesiProtocol) Snoop(reqType BusReqType, current State, addr uint64, procNum int) (CacheAction, State, []BusRequest, error) {
	switch current {
	case Invalid:
		return NoAction, Invalid, nil, nil
	case Modified:
		switch reqType {
		case BusRd:
			// Hand the dirty data off without writing back; the requester
			// becomes a sharer and this cache becomes the Owned source of
			// truth.
			return NoAction, Owned, []BusRequest{sharedReq(addr, procNum), dataReq(addr, procNum)}, nil
		case BusWr:
			return Invalidate, Invalid, []BusRequest{dataReq(addr, procNum)}, nil
		default:
			return NoAction, Modified, nil, nil
		}
	case InvalidModified:
		if reqType == Data || reqType == Shared {
			return DataRecv, Modified, nil, nil
		}
		return NoAction, InvalidModified, nil, nil
	case Sharing:
		switch reqType {
		case BusRd:
			return NoAction, Sharing, []BusRequest{sharedReq(addr, procNum)}, nil
		case BusWr:
			return Invalidate, Invalid, nil, nil
		default:
			return NoAction, Sharing, nil, nil
		}
	case InvalidSharing:
		switch reqType {
		case Shared:
			return DataRecv, Sharing, nil, nil
		case Data:
			return DataRecv, ExclusiveClean, nil, nil
		default:
			return NoAction, InvalidSharing, nil, nil
		}
	case SharingModified:
		if reqType == Data || reqType == Shared {
			return DataRecv, Modified, nil, nil
		}
		if reqType == BusRd {
			return NoAction, SharingModified, []BusRequest{sharedReq(addr, procNum)}, nil
		}
		return NoAction, SharingModified, nil, nil
	case ExclusiveClean:
		switch reqType {
		case BusWr:
			return Invalidate, Invalid, nil, nil
		case BusRd:
			return NoAction, Sharing, []BusRequest{sharedReq(addr, procNum)}, nil
		default:
			return NoAction, ExclusiveClean, nil, nil
		}
	case Owned:
		switch reqType {
		case BusRd:
			// E (and so M) never coexists with O, so handing out Data here
			// is always safe.
			return NoAction, Owned, []BusRequest{sharedReq(addr, procNum), dataReq(addr, procNum)}, nil
		case BusWr:
			return Invalidate, Invalid, []BusRequest{dataReq(addr, procNum)}, nil
		default:
			return NoAction, Owned, nil, nil
		}
	case OwnedModified:
		switch {
		case reqType == Data || reqType == Shared:
			return DataRecv, Modified, nil, nil
		case reqType == BusRd:
			return NoAction, OwnedModified, []BusRequest{sharedReq(addr, procNum), dataReq(addr, procNum)}, nil
		case reqType == BusWr:
			return NoAction, OwnedModified, []BusRequest{dataReq(addr, procNum)}, nil
		}
		return NoAction, OwnedModified, nil, nil
	default:
		return NoAction, current, nil, unsupported(MOESI, current)
	}
}
