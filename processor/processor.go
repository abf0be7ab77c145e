// Package processor is the single entry point blocks take into the
// ledger, whether they arrived from the network, from a wallet-originated
// send, or from a bootstrap pull. A lone worker goroutine drains a bounded
// queue so that ledger writes are serialized without a global lock,
// mirroring how the node keeps one writer touching chain state at a time.
package processor

import (
	"log"
	"sync"
	"time"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/observer"
)

// queueSize bounds how many not-yet-processed blocks the processor will
// hold before Add starts reporting Full; past this the caller (network
// read loop, bootstrap puller) is expected to apply its own backpressure.
const queueSize = 16384

// forcedQueueSize bounds the priority lane used for locally originated
// blocks (wallet sends), which must never be starved by network traffic.
const forcedQueueSize = 1024

// forkFlapWindow is how long a fork classification is held to be possible
// announcement flapping (two variants racing each other over the network)
// before it's treated as a genuine fork worth resolving by election.
const forkFlapWindow = 15 * time.Second

// Scheduler reacts to terminal processing outcomes by starting or feeding
// elections. Implemented by the election package; kept as a narrow
// interface here so processor never imports it.
type Scheduler interface {
	// StartElection is called once for a block that just progressed and
	// arrived recently over live network gossip (not bootstrap replay).
	StartElection(blk *core.Block)
	// ResolveFork is called when incoming conflicts with the ledger's
	// canonical block at the same root, and the conflict has persisted
	// past forkFlapWindow.
	ResolveFork(incoming *core.Block)
}

type noopScheduler struct{}

func (noopScheduler) StartElection(*core.Block) {}
func (noopScheduler) ResolveFork(*core.Block)   {}

// item is a queued unit of work.
type item struct {
	block      *core.Block
	originated time.Time
	live       bool // true for network-arrived or locally-forced blocks
	reply      chan core.ProcessResult
}

// Processor validates and applies incoming blocks against the ledger from
// a single worker goroutine.
type Processor struct {
	ledger    *core.Ledger
	store     core.KVStore
	unchecked *core.UncheckedBuffer
	arrivals  *core.ArrivalCache
	gaps      *core.GapCache
	bus       *observer.Bus

	mu        sync.Mutex
	scheduler Scheduler

	workThreshold uint64

	queue  chan item
	forced chan item
	quit   chan struct{}
	done   chan struct{}

	inFlight sync.WaitGroup
}

// New creates a Processor bound to ledger (backed by store) and bus. The
// unchecked buffer and gap cache are created fresh; callers that need to
// share them (e.g. for RPC introspection) can read them back via Unchecked
// and Gaps.
func New(ledger *core.Ledger, store core.KVStore, bus *observer.Bus) *Processor {
	return &Processor{
		ledger:        ledger,
		store:         store,
		unchecked:     core.NewUncheckedBuffer(),
		arrivals:      core.NewArrivalCache(),
		gaps:          core.NewGapCache(),
		bus:           bus,
		scheduler:     noopScheduler{},
		workThreshold: crypto.WorkThreshold,
		queue:         make(chan item, queueSize),
		forced:        make(chan item, forcedQueueSize),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// SetWorkThreshold overrides the minimum proof-of-work difficulty accepted
// for incoming blocks; used by tests and by nodes configured for a
// different network's difficulty.
func (p *Processor) SetWorkThreshold(threshold uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workThreshold = threshold
}

// SetScheduler wires the election scheduler in once it's constructed; safe
// to call before Run starts the worker.
func (p *Processor) SetScheduler(s Scheduler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduler = s
}

// Unchecked returns the buffer of blocks waiting on a missing dependency.
func (p *Processor) Unchecked() *core.UncheckedBuffer { return p.unchecked }

// Gaps returns the cache of voting weight accumulated behind missing blocks.
func (p *Processor) Gaps() *core.GapCache { return p.gaps }

// Full reports whether the network-priority queue is at capacity; callers
// should drop or defer network-sourced blocks rather than block on Add.
func (p *Processor) Full() bool {
	return len(p.queue) >= queueSize
}

// Add enqueues blk, received live over the network at originationTime, for
// asynchronous processing. Returns false without queuing if the queue is
// full. The result, once available, is published on the observer bus
// rather than returned to the caller.
func (p *Processor) Add(blk *core.Block, originationTime time.Time) bool {
	return p.enqueue(item{block: blk, originated: originationTime, live: true})
}

// AddBootstrap enqueues blk as replayed bootstrap data: it is still fully
// validated, but never registers in the arrival cache, so a fresh progress
// result from it does not start an election of its own accord.
func (p *Processor) AddBootstrap(blk *core.Block, originationTime time.Time) bool {
	return p.enqueue(item{block: blk, originated: originationTime, live: false})
}

func (p *Processor) enqueue(it item) bool {
	select {
	case p.queue <- it:
		p.inFlight.Add(1)
		return true
	default:
		return false
	}
}

// Force enqueues blk on the priority lane used for locally originated
// blocks, and blocks until it has been processed, returning the outcome
// directly. Used by the RPC process method so its caller learns the
// outcome synchronously. Bypasses neither the ledger nor the work check.
func (p *Processor) Force(blk *core.Block) core.ProcessResult {
	reply := make(chan core.ProcessResult, 1)
	p.inFlight.Add(1)
	p.forced <- item{block: blk, originated: time.Now(), live: true, reply: reply}
	return <-reply
}

// Flush blocks until every block queued so far (forced or not) has been
// processed.
func (p *Processor) Flush() {
	p.inFlight.Wait()
}

// Run starts the worker goroutine. It returns immediately; call Stop to
// shut the worker down.
func (p *Processor) Run() {
	go p.loop()
}

// Stop signals the worker to exit and waits for it to do so.
func (p *Processor) Stop() {
	close(p.quit)
	<-p.done
}

func (p *Processor) loop() {
	defer close(p.done)
	for {
		// Drain the priority lane first so wallet-originated sends never
		// queue behind a burst of network traffic.
		select {
		case <-p.quit:
			return
		case it := <-p.forced:
			p.handle(it)
			continue
		default:
		}

		select {
		case <-p.quit:
			return
		case it := <-p.forced:
			p.handle(it)
		case it := <-p.queue:
			p.handle(it)
		}
	}
}

func (p *Processor) handle(it item) {
	defer p.inFlight.Done()
	result := p.process(it)
	if it.reply != nil {
		it.reply <- result
	}
}

// process runs one block through the work check, the ledger, and the
// per-result follow-up the block processor contract specifies: election
// scheduling on progress, unchecked/gap bookkeeping on a dependency gap,
// highest-work retention on a duplicate, and fork resolution once a
// conflict has outlived the announcement-flapping window.
func (p *Processor) process(it item) core.ProcessResult {
	blk := it.block
	hash := blk.Hash()
	now := time.Now()

	if it.live {
		p.arrivals.Add(hash, now)
	}

	p.mu.Lock()
	threshold, sched := p.workThreshold, p.scheduler
	p.mu.Unlock()

	var result core.ProcessResult
	if !crypto.ValidateWork(blk.Root(), blk.Work, threshold) {
		result = core.InsufficientWork
	} else {
		result = p.commitBlock(blk)
	}

	switch result {
	case core.Progress:
		p.gaps.Erase(hash)
		if p.arrivals.Recent(hash, now) {
			sched.StartElection(blk)
		}
		p.releaseDependents(hash)
	case core.Old:
		p.adoptHigherWork(blk)
		p.releaseDependents(hash)
	case core.GapPrevious:
		p.unchecked.Put(blk.Previous, blk)
	case core.GapSource:
		p.unchecked.Put(dependencySource(blk), blk)
	case core.Fork:
		if now.Sub(it.originated) >= forkFlapWindow {
			sched.ResolveFork(blk)
		}
	}

	p.bus.PublishBlock(blk, result)
	return result
}

func (p *Processor) commitBlock(blk *core.Block) core.ProcessResult {
	txn := core.BeginWrite(p.store)
	result, err := p.ledger.Process(txn, blk)
	if err != nil {
		log.Printf("[processor] ledger error processing %s: %v", blk, err)
		txn.Discard()
		return result
	}
	if result != core.Progress {
		txn.Discard()
		return result
	}
	if err := txn.Commit(); err != nil {
		log.Printf("[processor] commit failed for %s: %v", blk, err)
		return core.Fork // treated as not-applied; caller may retry
	}
	return result
}

// adoptHigherWork lets a rebroadcast of an already-stored block replace it
// if the new copy carries more proof-of-work, so the network converges on
// whichever variant is cheapest for peers to re-verify and relay.
func (p *Processor) adoptHigherWork(blk *core.Block) {
	txn := core.BeginWrite(p.store)
	replaced, err := p.ledger.ReplaceIfHigherWork(txn, blk)
	if err != nil {
		txn.Discard()
		return
	}
	if !replaced {
		txn.Discard()
		return
	}
	if err := txn.Commit(); err != nil {
		log.Printf("[processor] work-upgrade commit failed for %s: %v", blk, err)
	}
}

// releaseDependents re-enqueues every block that was waiting on hash,
// letting the worker retry them now that their dependency exists.
func (p *Processor) releaseDependents(hash crypto.Hash) {
	now := time.Now()
	for _, dep := range p.unchecked.Release(hash) {
		p.Add(dep, now)
	}
}

// dependencySource returns the hash a Receive-shaped block depends on: the
// explicit Source field for Open/Receive, or Link for State blocks whose
// link names a send to receive from.
func dependencySource(blk *core.Block) crypto.Hash {
	if blk.Type == core.BlockTypeState {
		return blk.Link
	}
	return blk.Source
}
