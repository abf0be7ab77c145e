// Package observer is the node's internal pub/sub broker: ledger, election,
// and network components publish typed events here instead of calling each
// other directly, and the RPC/callback/websocket layers subscribe to the
// kinds they care about.
package observer

import (
	"log"
	"sync"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// Kind labels the category of an Event.
type Kind string

const (
	// KindBlock fires whenever a block is processed into the ledger,
	// successfully or not.
	KindBlock Kind = "block"
	// KindVote fires when a vote is received and validated, before tally.
	KindVote Kind = "vote"
	// KindConfirmation fires when an election confirms its winner
	// (published by the election with Height 0, before cementing) and
	// again from the cementer for each block it cements, with its height.
	KindConfirmation Kind = "confirmation"
	// KindEndpoint fires when a peer completes its handshake.
	KindEndpoint Kind = "endpoint"
	// KindDisconnect labels a torn-down peer connection; nothing in this
	// module publishes it.
	KindDisconnect Kind = "disconnect"
	// KindAccountBalance fires when an account's balance changes as a
	// side effect of a cemented block.
	KindAccountBalance Kind = "account_balance"
)

// BlockEvent is the KindBlock payload.
type BlockEvent struct {
	Block  *core.Block
	Result core.ProcessResult
}

// VoteEvent is the KindVote payload.
type VoteEvent struct {
	Vote *core.Vote
}

// ConfirmationEvent is the KindConfirmation payload.
type ConfirmationEvent struct {
	Hash    crypto.Hash
	Account crypto.Hash
	Height  uint64
}

// EndpointEvent is the KindEndpoint / KindDisconnect payload.
type EndpointEvent struct {
	Address string
	NodeID  crypto.PublicKey
}

// AccountBalanceEvent is the KindAccountBalance payload.
type AccountBalanceEvent struct {
	Account crypto.Hash
	Balance uint64
	Pending bool
}

// Event is the envelope delivered to every Handler; only the field matching
// Kind is populated.
type Event struct {
	Kind Kind

	Block        *BlockEvent
	Vote         *VoteEvent
	Confirmation *ConfirmationEvent
	Endpoint     *EndpointEvent
	AccountBal   *AccountBalanceEvent
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Bus is the node-wide pub/sub broker. Subscribe before Publish; delivery
// is synchronous and best-effort, a crashing subscriber never brings the
// node down.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

// New creates a Bus with no subscribers.
func New() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Subscribe registers h to be called whenever an event of kind is published.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish delivers ev to every subscriber of ev.Kind. Each handler runs
// under panic recovery so one bad RPC/callback subscriber can't take down
// block processing.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := b.handlers[ev.Kind]
	b.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[observer] handler panicked for %s: %v", ev.Kind, r)
				}
			}()
			h(ev)
		}()
	}
}

// PublishBlock is a convenience wrapper for the common KindBlock case.
func (b *Bus) PublishBlock(blk *core.Block, result core.ProcessResult) {
	b.Publish(Event{Kind: KindBlock, Block: &BlockEvent{Block: blk, Result: result}})
}

// PublishVote is a convenience wrapper for the common KindVote case.
func (b *Bus) PublishVote(v *core.Vote) {
	b.Publish(Event{Kind: KindVote, Vote: &VoteEvent{Vote: v}})
}

// PublishConfirmation is a convenience wrapper for KindConfirmation.
func (b *Bus) PublishConfirmation(hash, account crypto.Hash, height uint64) {
	b.Publish(Event{Kind: KindConfirmation, Confirmation: &ConfirmationEvent{Hash: hash, Account: account, Height: height}})
}

// PublishAccountBalance is a convenience wrapper for KindAccountBalance.
func (b *Bus) PublishAccountBalance(account crypto.Hash, balance uint64, pending bool) {
	b.Publish(Event{Kind: KindAccountBalance, AccountBal: &AccountBalanceEvent{Account: account, Balance: balance, Pending: pending}})
}

// PublishEndpoint is a convenience wrapper for KindEndpoint / KindDisconnect.
func (b *Bus) PublishEndpoint(kind Kind, address string, nodeID crypto.PublicKey) {
	b.Publish(Event{Kind: kind, Endpoint: &EndpointEvent{Address: address, NodeID: nodeID}})
}
