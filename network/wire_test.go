package network

import (
	"bytes"
	"testing"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

func TestEncodeDecodePublishRoundTrips(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	blk := &core.Block{Type: core.BlockTypeOpen, Source: pub.Account(), Representative: pub.Account(), Account: pub.Account()}
	blk.Sign(priv)

	var buf bytes.Buffer
	msg := Message{Header: newHeader(MessagePublish), Block: blk}
	if err := Encode(&buf, msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Header.Type != MessagePublish {
		t.Fatalf("decoded type = %v, want publish", got.Header.Type)
	}
	if got.Block.Hash() != blk.Hash() {
		t.Fatalf("decoded block hash = %x, want %x", got.Block.Hash(), blk.Hash())
	}
	if got.Block.Signature != blk.Signature {
		t.Fatalf("decoded signature mismatch")
	}
}

func TestEncodeDecodeStateSendRoundTrips(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	_, destPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	blk := &core.Block{
		Type:           core.BlockTypeState,
		Account:        pub.Account(),
		Representative: pub.Account(),
		Balance:        500,
		Link:           destPub.Account(),
	}
	blk.Sign(priv)

	var buf bytes.Buffer
	if err := Encode(&buf, Message{Header: newHeader(MessageConfirmReq), Block: blk}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Block.Account != blk.Account || got.Block.Link != blk.Link || got.Block.Balance != blk.Balance {
		t.Fatalf("decoded state block mismatch: %+v vs %+v", got.Block, blk)
	}
}

func TestEncodeDecodeConfirmAckRoundTrips(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	blk := &core.Block{Type: core.BlockTypeOpen, Source: pub.Account(), Representative: pub.Account(), Account: pub.Account()}
	blk.Sign(priv)

	v := &core.Vote{Sequence: 42, Block: blk}
	v.Sign(priv)

	var buf bytes.Buffer
	if err := Encode(&buf, Message{Header: newHeader(MessageConfirmAck), Vote: v}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Vote.Sequence != 42 || got.Vote.Hash() != v.Hash() {
		t.Fatalf("decoded vote mismatch: %+v", got.Vote)
	}
}

func TestEncodeDecodeKeepaliveRoundTrips(t *testing.T) {
	tuples := make([]AddressTuple, keepaliveAddressCount)
	tuples[0] = AddressTuple{Port: 7075}
	tuples[0].IP[15] = 1

	var buf bytes.Buffer
	if err := Encode(&buf, Message{Header: newHeader(MessageKeepalive), Keepalive: tuples}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Keepalive) != keepaliveAddressCount {
		t.Fatalf("decoded tuple count = %d, want %d", len(got.Keepalive), keepaliveAddressCount)
	}
	if got.Keepalive[0].Port != 7075 || got.Keepalive[0].IP[15] != 1 {
		t.Fatalf("decoded first tuple = %+v, want port 7075", got.Keepalive[0])
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := bytes.NewReader([]byte{0xDE, 0xAD, 18, 18, 18, byte(MessageKeepalive), 0, 0})
	if _, err := Decode(buf); err == nil {
		t.Fatalf("Decode: want error for bad magic")
	}
}

func TestHandshakeQueryRoundTrips(t *testing.T) {
	var cookie [32]byte
	cookie[0] = 0xAB
	h := newHeader(MessageNodeIDHandshake)
	h.Extensions |= extHandshakeQuery

	var buf bytes.Buffer
	if err := Encode(&buf, Message{Header: h, Handshake: &HandshakePayload{Query: &cookie}}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Handshake.Query == nil || *got.Handshake.Query != cookie {
		t.Fatalf("decoded query = %+v, want %x", got.Handshake.Query, cookie)
	}
	if got.Handshake.ResponsePub != nil {
		t.Fatalf("decoded response half should be absent")
	}
}
