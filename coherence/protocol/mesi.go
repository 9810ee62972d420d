package protocol

// mesiProtocol adds an exclusive-clean state to MSI: a load that misses with
// no other sharer present lands in ExclusiveClean rather than Sharing, so a
// later store from this same cache upgrades for free (no bus traffic)
// instead of paying for a BusWr round trip.
type mesiProtocol struct{}

func (mesiProtocol) Scheme() Scheme { return MESI }

func (p mesiProtocol) Cache(isRead bool, current State, addr uint64, procNum int) (State, bool, *BusRequest, error) {
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
	default:
		return current, false, nil, unsupported(MESI, current)
	}
}

func (p mesiProtocol) Snoop(reqType BusReqType, current State, addr uint64, procNum int) (CacheAction, State, []BusRequest, error) {
	switch current {
	case Invalid:
		return NoAction, Invalid, nil, nil
	case Modified:
		switch reqType {
		case BusRd:
			return NoAction, Sharing, []BusRequest{sharedReq(addr, procNum), dataReq(addr, procNum)}, nil
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
			// DATA with no preceding SHARED means nobody else has a copy.
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
	default:
		return NoAction, current, nil, unsupported(MESI, current)
	}
}
