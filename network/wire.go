// Package network is the peer and gossip layer: a fixed-size binary wire
// protocol, a peer table indexed for keepalive/fanout/rep-weight lookups, a
// syn-cookie node-ID handshake, and the broadcast/confirm_req engine that
// backs election.Broadcaster.
package network

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// magic identifies this protocol's datagrams on the wire.
const magic uint16 = 0x5243 // "RC"

// protocolVersion is this node's current/min/max supported version. There
// is only one revision so all three agree.
const protocolVersion uint8 = 18

// MessageType tags the payload that follows a Header.
type MessageType uint8

const (
	MessageKeepalive MessageType = iota + 1
	MessagePublish
	MessageConfirmReq
	MessageConfirmAck
	MessageNodeIDHandshake
)

// Handshake extension bits, carried in Header.Extensions.
const (
	extHandshakeQuery    uint16 = 1 << 0
	extHandshakeResponse uint16 = 1 << 1
)

// keepaliveAddressCount is how many (address, port) tuples a keepalive
// message always carries, per the wire contract.
const keepaliveAddressCount = 8

// Header is the 8-byte prefix of every datagram: magic, the three protocol
// version fields, the message type, and an extension bitfield whose bits
// 8-15 carry the block-type code for block-bearing messages.
type Header struct {
	Magic         uint16
	VersionMax    uint8
	VersionUsing  uint8
	VersionMin    uint8
	Type          MessageType
	Extensions    uint16
}

func newHeader(t MessageType) Header {
	return Header{
		Magic:        magic,
		VersionMax:   protocolVersion,
		VersionUsing: protocolVersion,
		VersionMin:   protocolVersion,
		Type:         t,
	}
}

func (h Header) blockType() core.BlockType {
	return core.BlockType(h.Extensions >> 8)
}

func (h *Header) setBlockType(t core.BlockType) {
	h.Extensions = (h.Extensions &^ 0xFF00) | (uint16(t) << 8)
}

func writeHeader(w io.Writer, h Header) error {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Magic)
	buf[2] = h.VersionMax
	buf[3] = h.VersionUsing
	buf[4] = h.VersionMin
	buf[5] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[6:8], h.Extensions)
	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) (Header, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	h := Header{
		Magic:        binary.BigEndian.Uint16(buf[0:2]),
		VersionMax:   buf[2],
		VersionUsing: buf[3],
		VersionMin:   buf[4],
		Type:         MessageType(buf[5]),
		Extensions:   binary.BigEndian.Uint16(buf[6:8]),
	}
	if h.Magic != magic {
		return h, errors.New("network: bad magic")
	}
	return h, nil
}

// blockWireSize returns the fixed encoded size of a block body of type t:
// every hash-typed field relevant to that variant, plus Balance where
// present, plus the trailing Signature and Work common to all variants.
func blockWireSize(t core.BlockType) int {
	hashes := 0
	balance := false
	switch t {
	case core.BlockTypeSend:
		hashes, balance = 2, true // Previous, Destination
	case core.BlockTypeReceive:
		hashes = 2 // Previous, Source
	case core.BlockTypeOpen:
		hashes = 3 // Source, Representative, Account
	case core.BlockTypeChange:
		hashes = 2 // Previous, Representative
	case core.BlockTypeState:
		hashes, balance = 4, true // Account, Previous, Representative, Link
	}
	size := hashes * crypto.HashSize
	if balance {
		size += 8
	}
	return size + crypto.SignatureSize + 8 // Signature, Work
}

// encodeBlock writes blk in its type's fixed-size wire layout. The type
// itself travels in the message header's extension bits, not in the body.
func encodeBlock(w io.Writer, blk *core.Block) error {
	var buf []byte
	appendHash := func(h crypto.Hash) { buf = append(buf, h[:]...) }
	appendU64 := func(v uint64) {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	switch blk.Type {
	case core.BlockTypeSend:
		appendHash(blk.Previous)
		appendHash(blk.Destination)
		appendU64(blk.Balance)
	case core.BlockTypeReceive:
		appendHash(blk.Previous)
		appendHash(blk.Source)
	case core.BlockTypeOpen:
		appendHash(blk.Source)
		appendHash(blk.Representative)
		appendHash(blk.Account)
	case core.BlockTypeChange:
		appendHash(blk.Previous)
		appendHash(blk.Representative)
	case core.BlockTypeState:
		appendHash(blk.Account)
		appendHash(blk.Previous)
		appendHash(blk.Representative)
		appendU64(blk.Balance)
		appendHash(blk.Link)
	default:
		return errors.New("network: cannot encode invalid block type")
	}
	buf = append(buf, blk.Signature[:]...)
	appendU64(blk.Work)

	_, err := w.Write(buf)
	return err
}

// decodeBlock reads a block of type t from r, in the fixed layout
// encodeBlock writes.
func decodeBlock(r io.Reader, t core.BlockType) (*core.Block, error) {
	size := blockWireSize(t)
	if size == 0 {
		return nil, errors.New("network: cannot decode invalid block type")
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	b := &core.Block{Type: t}
	pos := 0
	readHash := func() crypto.Hash {
		var h crypto.Hash
		copy(h[:], buf[pos:pos+crypto.HashSize])
		pos += crypto.HashSize
		return h
	}
	readU64 := func() uint64 {
		v := binary.BigEndian.Uint64(buf[pos : pos+8])
		pos += 8
		return v
	}

	switch t {
	case core.BlockTypeSend:
		b.Previous = readHash()
		b.Destination = readHash()
		b.Balance = readU64()
	case core.BlockTypeReceive:
		b.Previous = readHash()
		b.Source = readHash()
	case core.BlockTypeOpen:
		b.Source = readHash()
		b.Representative = readHash()
		b.Account = readHash()
	case core.BlockTypeChange:
		b.Previous = readHash()
		b.Representative = readHash()
	case core.BlockTypeState:
		b.Account = readHash()
		b.Previous = readHash()
		b.Representative = readHash()
		b.Balance = readU64()
		b.Link = readHash()
	}
	copy(b.Signature[:], buf[pos:pos+crypto.SignatureSize])
	pos += crypto.SignatureSize
	b.Work = readU64()
	return b, nil
}

func encodeVote(w io.Writer, v *core.Vote) error {
	var buf []byte
	buf = append(buf, v.Account...)
	buf = append(buf, v.Signature[:]...)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], v.Sequence)
	buf = append(buf, seq[:]...)
	if _, err := w.Write(buf); err != nil {
		return err
	}
	return encodeBlock(w, v.Block)
}

func decodeVote(r io.Reader, blockType core.BlockType) (*core.Vote, error) {
	prefix := make([]byte, crypto.PublicKeySize+crypto.SignatureSize+8)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	v := &core.Vote{Account: crypto.PublicKey(prefix[:crypto.PublicKeySize])}
	copy(v.Signature[:], prefix[crypto.PublicKeySize:crypto.PublicKeySize+crypto.SignatureSize])
	v.Sequence = binary.BigEndian.Uint64(prefix[crypto.PublicKeySize+crypto.SignatureSize:])

	blk, err := decodeBlock(r, blockType)
	if err != nil {
		return nil, err
	}
	v.Block = blk
	return v, nil
}

// AddressTuple is one entry of a keepalive message: an IPv6 address (v4
// addresses are carried v4-in-v6 mapped) and a port.
type AddressTuple struct {
	IP   [16]byte
	Port uint16
}

// Message is the decoded form of any datagram this protocol sends or
// receives; only the field matching Header.Type is populated.
type Message struct {
	Header Header

	Keepalive []AddressTuple
	Block     *core.Block // Publish, ConfirmReq
	Vote      *core.Vote  // ConfirmAck
	Handshake *HandshakePayload
}

// HandshakePayload carries the optional query/response halves of a
// node-ID handshake, per extHandshakeQuery/extHandshakeResponse.
type HandshakePayload struct {
	Query       *[32]byte
	ResponsePub crypto.PublicKey
	ResponseSig crypto.Signature
}

// Encode serializes m (header + payload) onto w.
func Encode(w io.Writer, m Message) error {
	h := m.Header
	switch h.Type {
	case MessagePublish, MessageConfirmReq:
		h.setBlockType(m.Block.Type)
	case MessageConfirmAck:
		h.setBlockType(m.Vote.Block.Type)
	}
	if err := writeHeader(w, h); err != nil {
		return err
	}
	switch h.Type {
	case MessageKeepalive:
		if len(m.Keepalive) != keepaliveAddressCount {
			return errors.New("network: keepalive must carry exactly 8 tuples")
		}
		for _, t := range m.Keepalive {
			if _, err := w.Write(t.IP[:]); err != nil {
				return err
			}
			var port [2]byte
			binary.BigEndian.PutUint16(port[:], t.Port)
			if _, err := w.Write(port[:]); err != nil {
				return err
			}
		}
		return nil
	case MessagePublish, MessageConfirmReq:
		return encodeBlock(w, m.Block)
	case MessageConfirmAck:
		return encodeVote(w, m.Vote)
	case MessageNodeIDHandshake:
		return encodeHandshake(w, h.Extensions, m.Handshake)
	default:
		return errors.New("network: unknown message type")
	}
}

// Decode reads one Message from r.
func Decode(r io.Reader) (Message, error) {
	h, err := readHeader(r)
	if err != nil {
		return Message{}, err
	}
	m := Message{Header: h}
	switch h.Type {
	case MessageKeepalive:
		m.Keepalive = make([]AddressTuple, keepaliveAddressCount)
		for i := range m.Keepalive {
			var ip [16]byte
			if _, err := io.ReadFull(r, ip[:]); err != nil {
				return Message{}, err
			}
			var port [2]byte
			if _, err := io.ReadFull(r, port[:]); err != nil {
				return Message{}, err
			}
			m.Keepalive[i] = AddressTuple{IP: ip, Port: binary.BigEndian.Uint16(port[:])}
		}
	case MessagePublish, MessageConfirmReq:
		blk, err := decodeBlock(r, h.blockType())
		if err != nil {
			return Message{}, err
		}
		m.Block = blk
	case MessageConfirmAck:
		v, err := decodeVote(r, h.blockType())
		if err != nil {
			return Message{}, err
		}
		m.Vote = v
	case MessageNodeIDHandshake:
		hp, err := decodeHandshake(r, h.Extensions)
		if err != nil {
			return Message{}, err
		}
		m.Handshake = hp
	default:
		return Message{}, errors.New("network: unknown message type")
	}
	return m, nil
}

func encodeHandshake(w io.Writer, ext uint16, hp *HandshakePayload) error {
	if ext&extHandshakeQuery != 0 {
		if _, err := w.Write(hp.Query[:]); err != nil {
			return err
		}
	}
	if ext&extHandshakeResponse != 0 {
		if _, err := w.Write(hp.ResponsePub); err != nil {
			return err
		}
		if _, err := w.Write(hp.ResponseSig[:]); err != nil {
			return err
		}
	}
	return nil
}

func decodeHandshake(r io.Reader, ext uint16) (*HandshakePayload, error) {
	hp := &HandshakePayload{}
	if ext&extHandshakeQuery != 0 {
		var q [32]byte
		if _, err := io.ReadFull(r, q[:]); err != nil {
			return nil, err
		}
		hp.Query = &q
	}
	if ext&extHandshakeResponse != 0 {
		pub := make([]byte, crypto.PublicKeySize)
		if _, err := io.ReadFull(r, pub); err != nil {
			return nil, err
		}
		hp.ResponsePub = crypto.PublicKey(pub)
		var sig [64]byte
		if _, err := io.ReadFull(r, sig[:]); err != nil {
			return nil, err
		}
		copy(hp.ResponseSig[:], sig[:])
	}
	return hp, nil
}
