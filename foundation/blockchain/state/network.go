package state

import (
	"github.com/chainlite/node/foundation/blockchain/peer"
)

// RegisterNodes adds the addresses to the set of known peers. When the list
// is empty the fallback address is registered. Nothing is registered when
// any address is invalid. A background resolve is signaled when new peers
// were registered.
func (s *State) RegisterNodes(addresses []string, fallback string) ([]peer.Peer, error) {
	peers, err := s.knownPeers.Register(addresses, fallback)
	if err != nil {
		return nil, err
	}

	for _, p := range peers {
		s.evHandler("state: RegisterNodes: registered: peer[%s]", p.Host)
	}

	if len(peers) > 0 && s.Worker != nil {
		s.Worker.SignalResolve()
	}

	return peers, nil
}

// UnregisterNodes removes the addresses from the set of known peers.
// Addresses that aren't known are ignored.
func (s *State) UnregisterNodes(addresses []string) {
	s.knownPeers.UnregisterMany(addresses)

	for _, addr := range addresses {
		s.evHandler("state: UnregisterNodes: unregistered: peer[%s]", addr)
	}
}

// KnownPeers retrieves a copy of the known peer list sorted by address.
func (s *State) KnownPeers() []peer.Peer {
	return s.knownPeers.Copy()
}
