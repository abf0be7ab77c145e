package main

import (
	"time"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/election"
	"github.com/nanocurrency/nano-node-sub002/network"
	"github.com/nanocurrency/nano-node-sub002/processor"
)

// blockSink adapts the block processor and vote processor to
// network.BlockSink, the only two collaborators a Node hands wire traffic
// to.
type blockSink struct {
	processor *processor.Processor
	votes     *election.VoteProcessor
}

var _ network.BlockSink = (*blockSink)(nil)

func (s *blockSink) ProcessBlock(blk *core.Block) {
	s.processor.Add(blk, time.Now())
}

func (s *blockSink) ProcessVote(v *core.Vote, sender string) {
	s.votes.Vote(v, sender)
}
