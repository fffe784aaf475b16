// Package peer maintains the peer related information such as the set
// of known peers and how to reach them.
package peer

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrInvalidAddress is returned when a peer address can't be normalized.
var ErrInvalidAddress = errors.New("invalid peer address")

// Peer represents information about a Node in the network. The host is
// the normalized base address in the form scheme://host:port.
type Peer struct {
	Host string `json:"host"`
}

// New contructs a new peer value from a normalized host.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// URL returns the url for the specified path on this peer.
func (p Peer) URL(path string) string {
	return p.Host + path
}

// =============================================================================

// Normalize converts a raw address into the scheme://host:port form. The
// scheme defaults to http, the scheme and host are lower cased, the port
// defaults by scheme and any path is dropped.
func Normalize(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %s", ErrInvalidAddress, raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	var defPort string
	switch scheme {
	case "http":
		defPort = "80"
	case "https":
		defPort = "443"
	default:
		return "", fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidAddress, raw, scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q: missing host", ErrInvalidAddress, raw)
	}

	port := u.Port()
	switch port {
	case "":
		port = defPort
	default:
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return "", fmt.Errorf("%w: %q: invalid port %q", ErrInvalidAddress, raw, port)
		}
		port = strconv.Itoa(n)
	}

	return scheme + "://" + net.JoinHostPort(host, port), nil
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
// The node's own address is never part of the set.
type PeerSet struct {
	mu    sync.RWMutex
	self  string
	alias aliases
	set   map[Peer]struct{}
}

// NewPeerSet constructs a new info set to manage node peer information. The
// self address is normalized when possible so it can be recognized. When
// self is a wildcard or loopback address, the loopback names and local
// interface addresses on the same port are recognized as this node too.
func NewPeerSet(self string) *PeerSet {
	if host, err := Normalize(self); err == nil {
		self = host
	}

	return &PeerSet{
		self:  self,
		alias: newAliases(self),
		set:   make(map[Peer]struct{}),
	}
}

// Self returns the normalized address of this node.
func (ps *PeerSet) Self() string {
	return ps.self
}

// Register normalizes the addresses and adds the new ones to the set. If
// any address is invalid nothing is added. When the list is empty the
// fallback address is registered instead. The normalized addresses from the
// call are returned, without the node's own address.
func (ps *PeerSet) Register(raw []string, fallback string) ([]Peer, error) {
	if len(raw) == 0 {
		if fallback == "" {
			return nil, fmt.Errorf("%w: no addresses provided", ErrInvalidAddress)
		}
		raw = []string{fallback}
	}

	peers := make([]Peer, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, addr := range raw {
		host, err := Normalize(addr)
		if err != nil {
			return nil, err
		}

		if ps.isSelf(New(host)) {
			continue
		}
		if _, exists := seen[host]; exists {
			continue
		}

		seen[host] = struct{}{}
		peers = append(peers, New(host))
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, peer := range peers {
		ps.set[peer] = struct{}{}
	}

	return peers, nil
}

// Add adds a new node to the set.
func (ps *PeerSet) Add(peer Peer) bool {
	if ps.isSelf(peer) {
		return false
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = struct{}{}
		return true
	}

	return false
}

// Unregister removes a node from the set. Removing an address that isn't
// registered is not an error.
func (ps *PeerSet) Unregister(raw string) {
	ps.UnregisterMany([]string{raw})
}

// UnregisterMany removes the nodes from the set. Addresses that are invalid
// or not registered are ignored.
func (ps *PeerSet) UnregisterMany(raw []string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, addr := range raw {
		host, err := Normalize(addr)
		if err != nil {
			continue
		}
		delete(ps.set, New(host))
	}
}

// Copy returns a list of the known peers sorted by address.
func (ps *PeerSet) Copy() []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for peer := range ps.set {
		peers = append(peers, peer)
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Host < peers[j].Host
	})

	return peers
}

// isSelf reports whether the peer is this node.
func (ps *PeerSet) isSelf(peer Peer) bool {
	if peer.Match(ps.self) {
		return true
	}

	return ps.alias.match(peer.Host)
}

// =============================================================================

// aliases holds the local hosts that reach this node on its port.
type aliases struct {
	scheme string
	port   string
	hosts  map[string]struct{}
}

func newAliases(self string) aliases {
	u, err := url.Parse(self)
	if err != nil || u.Port() == "" {
		return aliases{}
	}

	host := u.Hostname()
	if !isLoopback(host) && !isUnspecified(host) {
		return aliases{}
	}

	hosts := map[string]struct{}{
		"localhost": {},
		"127.0.0.1": {},
		"::1":       {},
		"0.0.0.0":   {},
		"::":        {},
	}

	// A wildcard bind is reachable on every interface of the machine.
	if isUnspecified(host) {
		if addrs, err := net.InterfaceAddrs(); err == nil {
			for _, addr := range addrs {
				if ipn, ok := addr.(*net.IPNet); ok {
					hosts[ipn.IP.String()] = struct{}{}
				}
			}
		}
	}

	return aliases{
		scheme: u.Scheme,
		port:   u.Port(),
		hosts:  hosts,
	}
}

func (a aliases) match(host string) bool {
	if len(a.hosts) == 0 {
		return false
	}

	u, err := url.Parse(host)
	if err != nil || u.Scheme != a.scheme || u.Port() != a.port {
		return false
	}

	h := u.Hostname()
	if _, exists := a.hosts[h]; exists {
		return true
	}

	return isLoopback(h)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isUnspecified(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsUnspecified()
}
