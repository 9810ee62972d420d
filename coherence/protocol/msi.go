package protocol

// msiProtocol adds a read-shared state to MI: a load that misses joins
// Sharing rather than forcing every other copy to invalidate, and a store
// from Sharing upgrades via BusWr instead of re-fetching data.
type msiProtocol struct{}

func (msiProtocol) Scheme() Scheme { return MSI }

func (p msiProtocol) Cache(isRead bool, current State, addr uint64, procNum int) (State, bool, *BusRequest, error) {
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
	default:
		return current, false, nil, unsupported(MSI, current)
	}
}

func (p msiProtocol) Snoop(reqType BusReqType, current State, addr uint64, procNum int) (CacheAction, State, []BusRequest, error) {
	switch current {
	case Invalid:
		return NoAction, Invalid, nil, nil
	case Modified:
		switch reqType {
		case BusRd:
			return NoAction, Sharing, []BusRequest{dataReq(addr, procNum)}, nil
		case BusWr:
			return Invalidate, Invalid, []BusRequest{dataReq(addr, procNum)}, nil
		default:
			return NoAction, Modified, nil, nil
		}
	case InvalidModified:
		if reqType == Data {
			return DataRecv, Modified, nil, nil
		}
		return NoAction, InvalidModified, nil, nil
	case Sharing:
		if reqType == BusWr {
			return Invalidate, Invalid, nil, nil
		}
		return NoAction, Sharing, nil, nil
	case InvalidSharing:
		if reqType == Data {
			return DataRecv, Sharing, nil, nil
		}
		return NoAction, InvalidSharing, nil, nil
	case SharingModified:
		if reqType == Data {
			return DataRecv, Modified, nil, nil
		}
		return NoAction, SharingModified, nil, nil
	default:
		return NoAction, current, nil, unsupported(MSI, current)
	}
}
