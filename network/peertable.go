package network

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// perIPCap bounds how many peers this table will track from a single IP,
// so one host can't exhaust the table by cycling ports.
const perIPCap = 10

// keepaliveCutoff is how long a peer may go without contact before a
// keepalive sweep purges it.
const keepaliveCutoff = 5 * time.Minute

// Peer is one entry of the peer table: a reachable endpoint and the
// bookkeeping the table's secondary indices are built from.
type Peer struct {
	Endpoint             string // "ip:port", the table's primary key
	NodeID               crypto.PublicKey
	LastContact          time.Time
	LastBootstrapAttempt time.Time
	LastRepResponse      time.Time
	RepWeight            uint64
}

func (p *Peer) ip() string {
	host, _, err := net.SplitHostPort(p.Endpoint)
	if err != nil {
		return p.Endpoint
	}
	return host
}

// repWeightItem orders the btree.BTree index by descending representative
// weight, breaking ties by endpoint so iteration order is deterministic.
type repWeightItem struct {
	weight   uint64
	endpoint string
}

func (a repWeightItem) Less(than btree.Item) bool {
	b := than.(repWeightItem)
	if a.weight != b.weight {
		return a.weight > b.weight // descending
	}
	return a.endpoint < b.endpoint
}

// PeerTable is the node's view of reachable peers, indexed by endpoint
// with a secondary btree index over representative weight so RepCrawler
// and confirm_req targeting can cheaply ask "who are the heaviest known
// representatives" without a linear scan.
type PeerTable struct {
	mu        sync.Mutex
	byEnd     map[string]*Peer
	byIP      map[string]int
	repWeight *btree.BTree
}

// NewPeerTable constructs an empty PeerTable.
func NewPeerTable() *PeerTable {
	return &PeerTable{
		byEnd:     make(map[string]*Peer),
		byIP:      make(map[string]int),
		repWeight: btree.New(32),
	}
}

// Insert adds or refreshes p, rejecting it if p's IP is already at its cap
// and this isn't a refresh of an existing entry. Returns whether p was
// admitted.
func (t *PeerTable) Insert(p *Peer) bool {
	if !IsRoutable(p.ip()) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byEnd[p.Endpoint]; ok {
		t.repWeight.Delete(repWeightItem{weight: existing.RepWeight, endpoint: p.Endpoint})
		t.byEnd[p.Endpoint] = p
		t.repWeight.ReplaceOrInsert(repWeightItem{weight: p.RepWeight, endpoint: p.Endpoint})
		return true
	}

	ip := p.ip()
	if t.byIP[ip] >= perIPCap {
		return false
	}
	t.byEnd[p.Endpoint] = p
	t.byIP[ip]++
	t.repWeight.ReplaceOrInsert(repWeightItem{weight: p.RepWeight, endpoint: p.Endpoint})
	return true
}

// Touch updates an existing peer's LastContact, inserting it fresh if it
// isn't already tracked (commonly used for the sender of an inbound
// keepalive).
func (t *PeerTable) Touch(endpoint string, nodeID crypto.PublicKey, now time.Time) {
	t.mu.Lock()
	p, ok := t.byEnd[endpoint]
	t.mu.Unlock()
	if !ok {
		t.Insert(&Peer{Endpoint: endpoint, NodeID: nodeID, LastContact: now})
		return
	}
	t.mu.Lock()
	p.LastContact = now
	if nodeID != nil {
		p.NodeID = nodeID
	}
	t.mu.Unlock()
}

// SetRepWeight updates endpoint's representative weight, re-sorting the
// btree index.
func (t *PeerTable) SetRepWeight(endpoint string, weight uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byEnd[endpoint]
	if !ok {
		return
	}
	t.repWeight.Delete(repWeightItem{weight: p.RepWeight, endpoint: endpoint})
	p.RepWeight = weight
	t.repWeight.ReplaceOrInsert(repWeightItem{weight: weight, endpoint: endpoint})
}

// MarkRepResponse records that endpoint answered a confirm_req.
func (t *PeerTable) MarkRepResponse(endpoint string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.byEnd[endpoint]; ok {
		p.LastRepResponse = now
	}
}

// Remove drops endpoint from the table entirely.
func (t *PeerTable) Remove(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byEnd[endpoint]
	if !ok {
		return
	}
	delete(t.byEnd, endpoint)
	t.byIP[p.ip()]--
	if t.byIP[p.ip()] <= 0 {
		delete(t.byIP, p.ip())
	}
	t.repWeight.Delete(repWeightItem{weight: p.RepWeight, endpoint: endpoint})
}

// PurgeStale drops every peer whose LastContact is older than
// keepaliveCutoff relative to now, returning the endpoints removed.
func (t *PeerTable) PurgeStale(now time.Time) []string {
	t.mu.Lock()
	var stale []string
	for end, p := range t.byEnd {
		if now.Sub(p.LastContact) > keepaliveCutoff {
			stale = append(stale, end)
		}
	}
	t.mu.Unlock()
	for _, end := range stale {
		t.Remove(end)
	}
	return stale
}

// All returns every tracked peer, in no particular order.
func (t *PeerTable) All() []*Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Peer, 0, len(t.byEnd))
	for _, p := range t.byEnd {
		out = append(out, p)
	}
	return out
}

// Len reports how many peers are tracked.
func (t *PeerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byEnd)
}

// Has reports whether endpoint is currently tracked.
func (t *PeerTable) Has(endpoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.byEnd[endpoint]
	return ok
}

// TopByWeight returns up to n peers ordered by descending representative
// weight, the view RepCrawler and direct confirm_req targeting use.
func (t *PeerTable) TopByWeight(n int) []*Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Peer, 0, n)
	t.repWeight.Ascend(func(it btree.Item) bool {
		ri := it.(repWeightItem)
		if p, ok := t.byEnd[ri.endpoint]; ok {
			out = append(out, p)
		}
		return len(out) < n
	})
	return out
}

// FanoutSample returns ceil(sqrt(|peers|)) uniformly random peers, the
// rebroadcast fanout used for publish/confirm_ack gossip.
func (t *PeerTable) FanoutSample(rng func(n int) int) []*Peer {
	all := t.All()
	k := fanoutSize(len(all))
	if k >= len(all) {
		return all
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Endpoint < all[j].Endpoint })
	// Fisher-Yates partial shuffle: only the first k positions need to be
	// randomized to get a uniform sample without reshuffling the whole slice.
	for i := 0; i < k; i++ {
		j := i + rng(len(all)-i)
		all[i], all[j] = all[j], all[i]
	}
	return all[:k]
}

// fanoutSize computes ceil(sqrt(n)).
func fanoutSize(n int) int {
	if n <= 0 {
		return 0
	}
	root := 1
	for root*root < n {
		root++
	}
	return root
}

// IsRoutable reports whether ip is eligible for the peer table: not
// unspecified, loopback, link-local, multicast, a private/documentation
// range, or otherwise unparseable. Used to silently discard reserved
// addresses instead of letting them occupy peer state.
func IsRoutable(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if ip.IsUnspecified() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsPrivate() {
		return false
	}
	for _, blk := range documentationRanges {
		if blk.Contains(ip) {
			return false
		}
	}
	return true
}

var documentationRanges = mustParseCIDRs(
	"192.0.2.0/24",    // TEST-NET-1
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24",  // TEST-NET-3
	"2001:db8::/32",   // IPv6 documentation range
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}
