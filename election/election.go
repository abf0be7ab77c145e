// Package election resolves which variant of a block wins at each
// lattice root by weighted representative vote, and drives confirmation
// (cementing) once a winner clears quorum. It implements the
// processor.Scheduler interface so the block processor can hand it
// freshly progressed and conflicting blocks without importing it back.
package election

import (
	"sync"
	"time"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

// blocksPerElection caps how many competing variants a single election
// tracks; past this a new variant is admitted only if it already out-polls
// the weakest tracked variant, bounding memory under fork spam.
const blocksPerElection = 10

// recentlyConfirmedWindow is how long a confirmed root's winning hash is
// remembered, so a late-arriving duplicate vote or publish for it is
// recognized as a replay rather than spawning a new election.
const recentlyConfirmedWindow = 5 * time.Minute

// confirmReqTickInterval: every Nth broadcast tick, send confirm_req
// directly to known representatives instead of re-announcing the winner.
const confirmReqTickInterval = 4

// maxAnnouncements bounds how many broadcast ticks an election stays in
// its normal (every-tick) announcement cadence before falling back to a
// sparse retry cadence.
const maxAnnouncements = 200

// Status is an election's position in its state machine.
type Status int

const (
	StatusOpen Status = iota
	StatusConfirmed
	StatusAborted
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusConfirmed:
		return "confirmed"
	case StatusAborted:
		return "aborted"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Broadcaster is the gossip-layer collaborator an election announces
// itself through. Implemented by the network package; kept narrow here
// so election never imports it.
type Broadcaster interface {
	BroadcastVote(v *core.Vote)
	BroadcastPublish(blk *core.Block)
	// SendConfirmReq asks rep directly for a vote on blk, returning
	// whether rep has a known reachable endpoint.
	SendConfirmReq(rep crypto.Hash, blk *core.Block) bool
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastVote(*core.Vote)                     {}
func (noopBroadcaster) BroadcastPublish(*core.Block)                 {}
func (noopBroadcaster) SendConfirmReq(crypto.Hash, *core.Block) bool { return false }

// deps bundles the collaborators every Election needs but that belong to
// the owning ActiveElections, not to any one election.
type deps struct {
	weight           WeightFunc
	online           *OnlineReps
	quorumPercentage uint64
	broadcaster      Broadcaster
	bus              *observer.Bus
	localRep         func() (crypto.Hash, bool)
	onConfirm        func(root crypto.Hash, winner *core.Block)
}

// Election tracks every known variant of the block at one lattice root,
// the votes cast for each, and the state machine described in the active
// elections contract: Open, Confirmed, Aborted, Expired.
type Election struct {
	*deps

	mu            sync.Mutex
	root          crypto.Hash
	blocks        map[crypto.Hash]*core.Block
	lastVotes     map[crypto.Hash]*core.Vote // voter account -> their last vote
	votedReps     map[crypto.Hash]bool
	status        Status
	confirmedHash crypto.Hash
	createdAt     time.Time
	announcements int
	confirmOnce   sync.Once
}

func newElection(blk *core.Block, d *deps) *Election {
	return &Election{
		deps:      d,
		root:      blk.Root(),
		blocks:    map[crypto.Hash]*core.Block{blk.Hash(): blk},
		lastVotes: make(map[crypto.Hash]*core.Vote),
		votedReps: make(map[crypto.Hash]bool),
		status:    StatusOpen,
		createdAt: time.Now(),
	}
}

// Root returns the lattice root this election is contesting.
func (e *Election) Root() crypto.Hash { return e.root }

// Status reports the election's current state.
func (e *Election) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Winner returns the current tally's leading block, which may not have
// reached quorum yet.
func (e *Election) Winner() (*core.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tallyLocked()
	blk, ok := e.blocks[t.Winner]
	return blk, ok
}

// Blocks returns every variant currently tracked by this election.
func (e *Election) Blocks() []*core.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*core.Block, 0, len(e.blocks))
	for _, b := range e.blocks {
		out = append(out, b)
	}
	return out
}

func (e *Election) tallyLocked() Tally {
	return computeTally(e.lastVotes, e.weight)
}

// publish offers another variant of the contested root. Rejected once the
// election has left Open, or once at capacity unless blk's current tally
// already beats the weakest tracked variant's.
func (e *Election) publish(blk *core.Block) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusOpen {
		return false
	}
	hash := blk.Hash()
	if _, ok := e.blocks[hash]; ok {
		return false
	}
	if len(e.blocks) < blocksPerElection {
		e.blocks[hash] = blk
		return true
	}

	buckets := make(map[crypto.Hash]uint64)
	for voter, v := range e.lastVotes {
		buckets[v.Hash()] += e.weight(voter)
	}
	var weakest crypto.Hash
	var weakestWeight uint64
	first := true
	for h := range e.blocks {
		w := buckets[h]
		if first || w < weakestWeight {
			weakest, weakestWeight = h, w
			first = false
		}
	}
	if buckets[hash] <= weakestWeight {
		return false
	}
	delete(e.blocks, weakest)
	e.blocks[hash] = blk
	return true
}

// vote records v from voterAccount and re-checks quorum, returning the
// freshly recomputed tally.
func (e *Election) vote(voterAccount crypto.Hash, v *core.Vote) Tally {
	e.mu.Lock()
	if e.status != StatusOpen {
		t := e.tallyLocked()
		e.mu.Unlock()
		return t
	}
	if stored, ok := e.lastVotes[voterAccount]; !ok || v.Supersedes(stored) {
		e.lastVotes[voterAccount] = v
	}
	e.votedReps[voterAccount] = true
	t := e.tallyLocked()
	e.mu.Unlock()

	online := e.online.Weight(time.Now())
	if t.HasQuorum(online, e.quorumPercentage) {
		e.confirm(t.Winner)
	}
	return t
}

// confirm transitions the election to Confirmed with winner, firing the
// confirmation callback exactly once.
func (e *Election) confirm(winner crypto.Hash) {
	e.mu.Lock()
	if e.status != StatusOpen {
		e.mu.Unlock()
		return
	}
	blk, ok := e.blocks[winner]
	e.status = StatusConfirmed
	e.confirmedHash = winner
	e.mu.Unlock()
	if !ok {
		return
	}
	e.confirmOnce.Do(func() {
		e.onConfirm(e.root, blk)
	})
}

// abort drops the election before quorum, e.g. because the block that
// started it failed a later dependency re-check.
func (e *Election) abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusOpen {
		e.status = StatusAborted
	}
}

// tick advances the broadcast cadence by one step, called roughly every
// 16ms by the owning ActiveElections' announcement loop. Returns false
// once the election has left Open (confirmed or aborted). An election still
// Open past maxAnnouncements stays live on the sparse retry cadence; tick
// never moves it to StatusExpired and never retires it for running long.
func (e *Election) tick(reps []crypto.Hash, maxReps int) bool {
	e.mu.Lock()
	if e.status != StatusOpen {
		e.mu.Unlock()
		return e.status == StatusOpen
	}
	e.announcements++
	n := e.announcements
	blk, ok := e.blocks[e.tallyLocked().Winner]
	rep, isRep := e.localRep()
	votedReps := e.votedReps
	e.mu.Unlock()
	if !ok {
		return true
	}

	if n > maxAnnouncements && n%8 != 0 {
		// Sparse retry cadence once an election has run long without
		// confirming: still alive, but only announces occasionally.
		return true
	}

	if isRep {
		v := &core.Vote{Account: crypto.AccountFromHash(rep), Sequence: uint64(n)}
		v.Block = blk
		e.broadcaster.BroadcastVote(v)
	} else {
		e.broadcaster.BroadcastPublish(blk)
	}

	if n%confirmReqTickInterval == 0 {
		sent := 0
		for _, r := range reps {
			if votedReps[r] {
				continue
			}
			if sent >= maxReps {
				break
			}
			if e.broadcaster.SendConfirmReq(r, blk) {
				sent++
			}
		}
	}
	return true
}

// ActiveElections owns every live Election, routes votes and newly
// progressed or conflicting blocks to them, and drives confirmation
// through to the ledger and the observer bus.
type ActiveElections struct {
	mu        sync.Mutex
	byRoot    map[crypto.Hash]*Election
	byHash    map[crypto.Hash]crypto.Hash // block hash -> root
	confirmed map[crypto.Hash]time.Time   // winning hash -> confirmation time

	ledger   *core.Ledger
	store    core.KVStore
	bus      *observer.Bus
	weight   WeightFunc
	online   *OnlineReps
	inactive *InactiveVoteCache

	quorumPercentage uint64
	broadcaster      Broadcaster
	localRep         func() (crypto.Hash, bool)
	knownReps        func() []crypto.Hash
	maxReps          int
}

// Config bundles ActiveElections' construction-time dependencies.
type Config struct {
	Ledger           *core.Ledger
	Store            core.KVStore
	Bus              *observer.Bus
	Weight           WeightFunc
	Online           *OnlineReps
	Inactive         *InactiveVoteCache
	QuorumPercentage uint64 // e.g. 67
	Broadcaster      Broadcaster
	LocalRep         func() (crypto.Hash, bool)
	KnownReps        func() []crypto.Hash
	MaxReps          int
}

// NewActiveElections constructs the manager from cfg, filling in
// no-op collaborators for anything left nil so a node can run
// non-voting or without a broadcaster wired yet.
func NewActiveElections(cfg Config) *ActiveElections {
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = noopBroadcaster{}
	}
	if cfg.LocalRep == nil {
		cfg.LocalRep = func() (crypto.Hash, bool) { return crypto.Hash{}, false }
	}
	if cfg.KnownReps == nil {
		cfg.KnownReps = func() []crypto.Hash { return nil }
	}
	if cfg.MaxReps == 0 {
		cfg.MaxReps = 10
	}
	if cfg.QuorumPercentage == 0 {
		cfg.QuorumPercentage = 67
	}
	return &ActiveElections{
		byRoot:           make(map[crypto.Hash]*Election),
		byHash:           make(map[crypto.Hash]crypto.Hash),
		confirmed:        make(map[crypto.Hash]time.Time),
		ledger:           cfg.Ledger,
		store:            cfg.Store,
		bus:              cfg.Bus,
		weight:           cfg.Weight,
		online:           cfg.Online,
		inactive:         cfg.Inactive,
		quorumPercentage: cfg.QuorumPercentage,
		broadcaster:      cfg.Broadcaster,
		localRep:         cfg.LocalRep,
		knownReps:        cfg.KnownReps,
		maxReps:          cfg.MaxReps,
	}
}

func (a *ActiveElections) deps() *deps {
	return &deps{
		weight:           a.weight,
		online:           a.online,
		quorumPercentage: a.quorumPercentage,
		broadcaster:      a.broadcaster,
		bus:              a.bus,
		localRep:         a.localRep,
		onConfirm:        a.onConfirm,
	}
}

// StartElection implements processor.Scheduler: start (idempotently) an
// election for blk's root, importing any inactive-vote-cache entry
// already accumulated for it.
func (a *ActiveElections) StartElection(blk *core.Block) {
	root := blk.Root()
	a.mu.Lock()
	if e, ok := a.byRoot[root]; ok {
		a.mu.Unlock()
		if e.publish(blk) {
			a.mu.Lock()
			a.byHash[blk.Hash()] = root
			a.mu.Unlock()
		}
		a.checkQuorum(e)
		return
	}
	if _, ok := a.confirmed[blk.Hash()]; ok {
		a.mu.Unlock()
		return
	}
	e := newElection(blk, a.deps())
	a.byRoot[root] = e
	a.byHash[blk.Hash()] = root
	a.mu.Unlock()

	if entry, ok := a.inactive.Drain(blk.Hash()); ok {
		for voter, v := range entry.Voters {
			e.vote(voter, v)
		}
	}
	a.checkQuorum(e)
}

// ResolveFork implements processor.Scheduler: incoming conflicts with
// whatever block the ledger currently holds at this root. Starts an
// election seeded with both variants if one doesn't exist yet, or offers
// incoming as an additional variant to the existing one.
func (a *ActiveElections) ResolveFork(incoming *core.Block) {
	root := incoming.Root()
	a.mu.Lock()
	e, ok := a.byRoot[root]
	a.mu.Unlock()
	if ok {
		if e.publish(incoming) {
			a.mu.Lock()
			a.byHash[incoming.Hash()] = root
			a.mu.Unlock()
		}
		a.checkQuorum(e)
		return
	}

	e = newElection(incoming, a.deps())
	txn := core.BeginRead(a.store)
	if successor, err := a.ledger.Successor(txn, root); err == nil {
		if current, err := a.ledger.BlockGet(txn, successor); err == nil {
			e.publish(current)
		}
	}

	a.mu.Lock()
	a.byRoot[root] = e
	for h := range e.blocks {
		a.byHash[h] = root
	}
	a.mu.Unlock()
	a.checkQuorum(e)
}

// Vote routes v, cast by voterAccount, to the election contesting its
// target hash. If no election is tracking that hash and it hasn't been
// recently confirmed, the vote is parked in the inactive-vote cache for
// when the block eventually arrives. Returns whether a live election
// received the vote.
func (a *ActiveElections) Vote(voterAccount crypto.Hash, v *core.Vote) bool {
	hash := v.Hash()
	a.mu.Lock()
	root, ok := a.byHash[hash]
	var e *Election
	if ok {
		e = a.byRoot[root]
	}
	_, recent := a.confirmed[hash]
	a.mu.Unlock()

	if e != nil {
		e.vote(voterAccount, v)
		a.checkQuorum(e)
		return true
	}
	if !recent {
		a.inactive.Vote(voterAccount, v)
	}
	return false
}

func (a *ActiveElections) checkQuorum(e *Election) {
	if e.Status() == StatusConfirmed {
		a.erase(e.root)
	}
}

// onConfirm is the Election confirmation callback: commits the winner
// into the ledger if it isn't already stored, first rolling back the block
// that currently holds this root and every block built on it,
// advances confirmation height via the observer bus, and retires the
// election.
func (a *ActiveElections) onConfirm(root crypto.Hash, winner *core.Block) {
	txn := core.BeginWrite(a.store)
	if existing, err := a.ledger.BlockGet(txn, winner.Hash()); err != nil || existing == nil {
		loser, lerr := a.ledger.Successor(txn, root)
		if lerr != nil {
			if info, ierr := a.ledger.AccountInfoGet(txn, root); ierr == nil {
				loser, lerr = info.OpenBlock, nil
			}
		}
		if lerr == nil {
			if err := a.ledger.RollbackFrom(txn, loser); err != nil {
				txn.Discard()
				return
			}
		}
		if _, err := a.ledger.Process(txn, winner); err != nil {
			txn.Discard()
			return
		}
	}
	if err := txn.Commit(); err != nil {
		return
	}

	account := a.blockAccount(winner)
	a.bus.PublishConfirmation(winner.Hash(), account, 0)

	a.mu.Lock()
	a.confirmed[winner.Hash()] = time.Now()
	a.mu.Unlock()
	a.erase(root)
}

func (a *ActiveElections) blockAccount(b *core.Block) crypto.Hash {
	if b.Account != (crypto.Hash{}) {
		return b.Account
	}
	txn := core.BeginRead(a.store)
	if prev, err := a.ledger.BlockGet(txn, b.Previous); err == nil {
		return a.blockAccount(prev)
	}
	return crypto.Hash{}
}

// erase drops root's election and its hash index entries, called once
// confirmed, aborted, or explicitly requested.
func (a *ActiveElections) erase(root crypto.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.byRoot[root]
	if !ok {
		return
	}
	for h := range e.blocks {
		delete(a.byHash, h)
	}
	delete(a.byRoot, root)
}

// Erase aborts and drops the election at root, if any.
func (a *ActiveElections) Erase(root crypto.Hash) {
	a.mu.Lock()
	e, ok := a.byRoot[root]
	a.mu.Unlock()
	if !ok {
		return
	}
	e.abort()
	a.erase(root)
}

// Size reports how many elections are currently live.
func (a *ActiveElections) Size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byRoot)
}

// ListActive returns up to n live elections in no particular order.
func (a *ActiveElections) ListActive(n int) []*Election {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Election, 0, n)
	for _, e := range a.byRoot {
		if len(out) >= n {
			break
		}
		out = append(out, e)
	}
	return out
}

// Election returns the live election at root, if any.
func (a *ActiveElections) Election(root crypto.Hash) (*Election, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.byRoot[root]
	return e, ok
}

// Tick drives one broadcast-cadence step across every live election; the
// node wires this to an alarm firing roughly every 16ms. Elections that
// confirm or abort as a side effect of this tick are retired immediately.
func (a *ActiveElections) Tick() {
	a.mu.Lock()
	elections := make([]*Election, 0, len(a.byRoot))
	for _, e := range a.byRoot {
		elections = append(elections, e)
	}
	a.mu.Unlock()

	reps := a.knownReps()
	for _, e := range elections {
		if !e.tick(reps, a.maxReps) {
			a.erase(e.root)
		}
		if e.Status() != StatusOpen {
			a.erase(e.root)
		}
	}

	a.mu.Lock()
	now := time.Now()
	for hash, at := range a.confirmed {
		if now.Sub(at) > recentlyConfirmedWindow {
			delete(a.confirmed, hash)
		}
	}
	a.mu.Unlock()
}
