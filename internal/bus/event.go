package bus

// Event is one item from a subscription's receive stream. The set of
// implementations is closed: Received, NeighborUp, NeighborDown, Lagged.
type Event interface {
	isEvent()
}

// Received carries a broadcast payload. From is the originating peer, which
// equals the local peer for self-echoes.
type Received struct {
	From    PeerID
	Content []byte
}

// NeighborUp reports a newly connected neighbour.
type NeighborUp struct {
	Peer PeerID
}

// NeighborDown reports a neighbour that disconnected.
type NeighborDown struct {
	Peer PeerID
}

// Lagged reports that the receiver fell behind and Missed events were dropped.
type Lagged struct {
	Missed int
}

func (Received) isEvent()     {}
func (NeighborUp) isEvent()   {}
func (NeighborDown) isEvent() {}
func (Lagged) isEvent()       {}
