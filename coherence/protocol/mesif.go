package protocol

// mesifProtocol replaces MOESI's Owned (dirty-but-shared) role with Forward
// (clean-but-designated-responder): exactly one sharer, chosen as the most
// recent one to receive the line, answers future BusRd snoops with Data so
// memory itself doesn't have to. Unlike MOESI's Owned, the Forward role
// never implies dirty data - it is purely an optimization to avoid every
// sharer (or memory) racing to respond.
type mesifProtocol struct{}

func (mesifProtocol) Scheme() Scheme { return MESIF }

func (p mesifProtocol) Cache(isRead bool, current State, addr uint64, procNum int) (State, bool, *BusRequest, error) {
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
	case Owned: // the Forward role
		if isRead {
			return Owned, true, nil, nil
		}
		return OwnedModified, false, busWr(addr, procNum), nil
	case OwnedModified:
		// Waiting on a bus response to finish the F -> M upgrade; a second
		// local request in the meantime just has to wait it out.
		return OwnedModified, false, nil, nil
	default:
		return current, false, nil, unsupported(MESIF, current)
	}
}

func (p mesifProtocol) Snoop(reqType BusReqType, current State, addr uint64, procNum int) (CacheAction, State, []BusRequest, error) {
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
			// S can exist without F (reached via M -> S), so this sharer
			// still has to assert Shared on every subsequent read.
			return NoAction, Sharing, []BusRequest{sharedReq(addr, procNum)}, nil
		case BusWr:
			return Invalidate, Invalid, nil, nil
		default:
			return NoAction, Sharing, nil, nil
		}
	case InvalidSharing:
		switch reqType {
		case Shared:
			return DataRecv, Owned, nil, nil // becomes the Forward designee
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
			// This is the forward: hand the requester Data and relinquish
			// the Forward role, since the requester becomes the new most-
			// recent sharer and takes it over instead.
			return NoAction, Sharing, []BusRequest{sharedReq(addr, procNum), dataReq(addr, procNum)}, nil
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
		return NoAction, current, nil, unsupported(MESIF, current)
	}
}
