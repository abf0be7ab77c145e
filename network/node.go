package network

import (
	"bytes"
	"crypto/tls"
	"errors"
	"log"
	"math/rand"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

// errMissingBootstrapTLS is returned by NewNode when a bootstrap address is
// configured without a TLS config to serve it with.
var errMissingBootstrapTLS = errors.New("network: BootstrapAddr set without TLS config")

// keepaliveInterval is how often this node announces itself to its peer
// set and sweeps stale entries.
const keepaliveInterval = 60 * time.Second

// Error-taxonomy counters for the transport and handshake drop classes,
// plus received publish/confirm_ack counts. The two network.vote counters
// are registered but nothing increments them; vote classification happens
// in the election package, which keeps no counters.
var (
	metricBadMagic       = metrics.GetOrRegisterCounter("network.transport.bad_magic", nil)
	metricUnknownType    = metrics.GetOrRegisterCounter("network.transport.unknown_type", nil)
	metricReservedSender = metrics.GetOrRegisterCounter("network.transport.reserved_sender", nil)
	metricRateLimited    = metrics.GetOrRegisterCounter("network.transport.rate_limited", nil)
	metricBadVoteSig     = metrics.GetOrRegisterCounter("network.vote.bad_signature", nil)
	metricVoteReplay     = metrics.GetOrRegisterCounter("network.vote.replay", nil)
	metricHandshakeFail  = metrics.GetOrRegisterCounter("network.handshake.failed", nil)
	metricPublishIn      = metrics.GetOrRegisterCounter("network.publish.received", nil)
	metricConfirmAckIn   = metrics.GetOrRegisterCounter("network.confirm_ack.received", nil)
)

// BlockSink is the collaborator a Node hands newly arrived wire blocks and
// votes to; implemented by the block/vote processors so network never
// imports them directly.
type BlockSink interface {
	ProcessBlock(blk *core.Block)
	ProcessVote(v *core.Vote, sender string)
}

// Config bundles a Node's construction-time dependencies.
type Config struct {
	ListenAddr     string
	BootstrapAddr  string // TCP address for the TLS bootstrap listener; empty disables it
	NodeKey        crypto.PrivateKey
	TLS            *tls.Config // bootstrap listener's server config; required if BootstrapAddr is set
	Bus            *observer.Bus
	Sink           BlockSink
	RepWeight      func(crypto.Hash) uint64 // used to keep the peer table's weight index current as reps are learned
}

// Node is the UDP peer-and-gossip transport: it implements
// election.Broadcaster, maintains the peer table and syn-cookie
// handshake, and runs the keepalive loop.
type Node struct {
	cfg      Config
	conn     *net.UDPConn
	boot     net.Listener // TLS bootstrap listener, nil if BootstrapAddr is unset
	peers    *PeerTable
	cookies  *CookieTable
	limiter  *IPRateLimiter

	mu        sync.Mutex
	repByAcct map[crypto.Hash]string // representative account -> endpoint, filled by LearnRepresentative

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewNode constructs a Node bound to cfg.ListenAddr. Call Start to begin
// serving.
func NewNode(cfg Config) (*Node, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	n := &Node{
		cfg:       cfg,
		conn:      conn,
		peers:     NewPeerTable(),
		cookies:   NewCookieTable(),
		limiter:   NewIPRateLimiter(10 * time.Minute),
		repByAcct: make(map[crypto.Hash]string),
		stop:      make(chan struct{}),
	}
	if cfg.BootstrapAddr != "" {
		if cfg.TLS == nil {
			conn.Close()
			return nil, errMissingBootstrapTLS
		}
		ln, err := tls.Listen("tcp", cfg.BootstrapAddr, cfg.TLS)
		if err != nil {
			conn.Close()
			return nil, err
		}
		n.boot = ln
	}
	return n, nil
}

// LocalAddr returns the UDP address this node is actually bound to.
func (n *Node) LocalAddr() net.Addr { return n.conn.LocalAddr() }

// Start launches the receive loop, the keepalive/sweep ticker, and (if
// configured) the TLS bootstrap listener.
func (n *Node) Start() {
	n.wg.Add(2)
	go n.receiveLoop()
	go n.keepaliveLoop()
	if n.boot != nil {
		n.wg.Add(1)
		go n.bootstrapLoop()
	}
}

// Stop halts every loop and closes both sockets.
func (n *Node) Stop() {
	close(n.stop)
	n.conn.Close()
	if n.boot != nil {
		n.boot.Close()
	}
	n.wg.Wait()
}

// bootstrapLoop accepts TLS connections on the bootstrap listener, each
// carrying a stream of publish-framed blocks (a minimal bulk_push-style
// surface — frontier negotiation and bulk_pull's request/response framing
// are out of scope, but blocks delivered this way still go through the
// same Sink as gossip-received ones).
func (n *Node) bootstrapLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.boot.Accept()
		select {
		case <-n.stop:
			return
		default:
		}
		if err != nil {
			continue
		}
		n.wg.Add(1)
		go n.serveBootstrapConn(conn)
	}
}

func (n *Node) serveBootstrapConn(conn net.Conn) {
	defer n.wg.Done()
	defer conn.Close()
	for {
		msg, err := Decode(conn)
		if err != nil {
			return
		}
		if msg.Header.Type == MessagePublish && n.cfg.Sink != nil {
			n.cfg.Sink.ProcessBlock(msg.Block)
		}
	}
}

// AddPeer seeds the table with a known peer endpoint, e.g. from config's
// seed-peer list at startup.
func (n *Node) AddPeer(endpoint string) {
	n.peers.Insert(&Peer{Endpoint: endpoint})
	n.sendHandshakeQuery(endpoint)
}

func (n *Node) receiveLoop() {
	defer n.wg.Done()
	buf := make([]byte, 4096)
	for {
		ln, addr, err := n.conn.ReadFromUDP(buf)
		select {
		case <-n.stop:
			return
		default:
		}
		if err != nil {
			continue
		}
		n.handleDatagram(addr.String(), addr.IP.String(), buf[:ln])
	}
}

func (n *Node) handleDatagram(endpoint, ip string, data []byte) {
	if !IsRoutable(ip) {
		metricReservedSender.Inc(1)
		return
	}
	if !n.limiter.Allow(ip) {
		metricRateLimited.Inc(1)
		return
	}

	msg, err := Decode(bytes.NewReader(data))
	if err != nil {
		metricBadMagic.Inc(1)
		return
	}

	now := time.Now()
	switch msg.Header.Type {
	case MessageKeepalive:
		n.peers.Touch(endpoint, nil, now)
		n.handleKeepalive(msg)
	case MessagePublish:
		metricPublishIn.Inc(1)
		n.peers.Touch(endpoint, nil, now)
		if n.cfg.Sink != nil {
			n.cfg.Sink.ProcessBlock(msg.Block)
		}
	case MessageConfirmReq:
		n.peers.Touch(endpoint, nil, now)
		if n.cfg.Sink != nil {
			n.cfg.Sink.ProcessBlock(msg.Block)
		}
	case MessageConfirmAck:
		metricConfirmAckIn.Inc(1)
		n.peers.Touch(endpoint, nil, now)
		n.peers.MarkRepResponse(endpoint, now)
		if n.cfg.Sink != nil {
			n.cfg.Sink.ProcessVote(msg.Vote, endpoint)
		}
	case MessageNodeIDHandshake:
		n.handleHandshake(endpoint, msg)
	default:
		metricUnknownType.Inc(1)
	}
}

func (n *Node) handleKeepalive(msg Message) {
	for _, t := range msg.Keepalive {
		ip := net.IP(t.IP[:])
		if ip.To4() != nil {
			ip = ip.To4()
		}
		if !IsRoutable(ip.String()) {
			continue
		}
		endpoint := net.JoinHostPort(ip.String(), portString(t.Port))
		n.peers.Insert(&Peer{Endpoint: endpoint})
	}
}

// sendHandshakeQuery issues a fresh cookie for endpoint and sends a
// node_id_handshake carrying only the query half.
func (n *Node) sendHandshakeQuery(endpoint string) {
	cookie, ok := n.cookies.Issue(endpoint, time.Now())
	if !ok {
		return
	}
	h := newHeader(MessageNodeIDHandshake)
	h.Extensions |= extHandshakeQuery
	n.send(endpoint, Message{Header: h, Handshake: &HandshakePayload{Query: &cookie}})
}

// handleHandshake answers an incoming query (signing it and, if we don't
// yet have this endpoint's node ID, issuing our own query back) and
// validates an incoming response (promoting the sender to the peer table
// on success).
func (n *Node) handleHandshake(endpoint string, msg Message) {
	if msg.Handshake == nil {
		return
	}
	now := time.Now()

	if msg.Handshake.ResponsePub != nil {
		if n.cookies.Validate(endpoint, msg.Handshake.ResponsePub, msg.Handshake.ResponseSig, now) {
			n.peers.Insert(&Peer{Endpoint: endpoint, NodeID: msg.Handshake.ResponsePub, LastContact: now})
			n.cfg.Bus.PublishEndpoint(observer.KindEndpoint, endpoint, msg.Handshake.ResponsePub)
		} else {
			metricHandshakeFail.Inc(1)
		}
	}

	if msg.Handshake.Query != nil {
		h := newHeader(MessageNodeIDHandshake)
		h.Extensions |= extHandshakeResponse
		resp := &HandshakePayload{
			ResponsePub: n.cfg.NodeKey.Public(),
			ResponseSig: SignCookie(n.cfg.NodeKey, *msg.Handshake.Query),
		}
		if !n.peers.Has(endpoint) {
			if cookie, ok := n.cookies.Issue(endpoint, now); ok {
				h.Extensions |= extHandshakeQuery
				resp.Query = &cookie
			}
		}
		n.send(endpoint, Message{Header: h, Handshake: resp})
	}
}

func (n *Node) keepaliveLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			n.peers.PurgeStale(time.Now())
			n.limiter.Sweep(time.Now())
			n.cookies.Purge(time.Now())
			n.broadcastKeepalive()
		}
	}
}

func (n *Node) broadcastKeepalive() {
	peers := n.peers.All()
	tuples := make([]AddressTuple, keepaliveAddressCount)
	for i := 0; i < keepaliveAddressCount && i < len(peers); i++ {
		tuples[i] = addressTupleOf(peers[i].Endpoint)
	}
	for i := len(peers); i < keepaliveAddressCount; i++ {
		tuples[i] = AddressTuple{}
	}
	msg := Message{Header: newHeader(MessageKeepalive), Keepalive: tuples}
	for _, p := range peers {
		n.send(p.Endpoint, msg)
	}
}

func addressTupleOf(endpoint string) AddressTuple {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return AddressTuple{}
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return AddressTuple{}
	}
	var t AddressTuple
	copy(t.IP[:], ip.To16())
	t.Port = uint16(portNum(portStr))
	return t
}

// --- election.Broadcaster ---

// BroadcastVote fans v out to ceil(sqrt(|peers|)) uniformly random peers.
func (n *Node) BroadcastVote(v *core.Vote) {
	msg := Message{Header: newHeader(MessageConfirmAck), Vote: v}
	n.fanout(msg)
}

// BroadcastPublish fans blk out the same way as BroadcastVote.
func (n *Node) BroadcastPublish(blk *core.Block) {
	msg := Message{Header: newHeader(MessagePublish), Block: blk}
	n.fanout(msg)
}

func (n *Node) fanout(msg Message) {
	sample := n.peers.FanoutSample(rand.Intn)
	for _, p := range sample {
		n.send(p.Endpoint, msg)
	}
}

// SendConfirmReq asks rep directly for a vote on blk, if a reachable
// endpoint for rep is known from a completed handshake.
func (n *Node) SendConfirmReq(rep crypto.Hash, blk *core.Block) bool {
	n.mu.Lock()
	endpoint, ok := n.repByAcct[rep]
	n.mu.Unlock()
	if !ok {
		return false
	}
	n.send(endpoint, Message{Header: newHeader(MessageConfirmReq), Block: blk})
	return true
}

// LearnRepresentative associates a representative account with the
// endpoint its votes have been arriving from, so SendConfirmReq can target
// it directly instead of relying on broadcast fanout.
func (n *Node) LearnRepresentative(account crypto.Hash, endpoint string) {
	n.mu.Lock()
	n.repByAcct[account] = endpoint
	n.mu.Unlock()
	if n.cfg.RepWeight != nil {
		n.peers.SetRepWeight(endpoint, n.cfg.RepWeight(account))
	}
}

// RepCrawler returns up to max of the heaviest known representatives'
// accounts, used to seed election.Config.KnownReps.
func (n *Node) RepCrawler(max int) []crypto.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]crypto.Hash, 0, len(n.repByAcct))
	for acct := range n.repByAcct {
		out = append(out, acct)
	}
	if n.cfg.RepWeight != nil {
		sort.Slice(out, func(i, j int) bool { return n.cfg.RepWeight(out[i]) > n.cfg.RepWeight(out[j]) })
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func (n *Node) send(endpoint string, msg Message) {
	addr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return
	}
	var buf bytes.Buffer
	if err := Encode(&buf, msg); err != nil {
		log.Printf("[network] encode %s to %s: %v", msg.Header.Type, endpoint, err)
		return
	}
	if _, err := n.conn.WriteToUDP(buf.Bytes(), addr); err != nil {
		log.Printf("[network] write to %s: %v", endpoint, err)
	}
}

func portString(p uint16) string {
	return strconv.Itoa(int(p))
}

func portNum(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
