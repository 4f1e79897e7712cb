// Package pck implements the wire-format packet for the ABP reliable
// UDP transfer: a fixed 4-byte header (flag/sequence byte, CRC-8
// checksum, big-endian payload length) followed by 0-508 payload bytes.
//
// Grounded on original_source/src/pck.rs: the header layout, the CRC-8
// parameters, and the build/encode/decode/corrupt split (decode never
// validates the checksum; Corrupt is a separate predicate so the FSMs
// can tell "not a valid frame at all" apart from "parseable but the
// checksum is wrong").
package pck

import (
	"encoding/binary"

	"abpudp/internal/xerr"
)

// HeaderLen is the fixed header size in bytes.
const HeaderLen = 4

// MaxTotalSize is the maximum encoded packet size (header + payload).
const MaxTotalSize = 512

// MaxPayload is the maximum payload size in bytes.
const MaxPayload = MaxTotalSize - HeaderLen

// Kind identifies the frame type carried in bits 6-4 of the flag byte.
type Kind uint8

const (
	KindData   Kind = 0b000
	KindSYN    Kind = 0b001
	KindFIN    Kind = 0b010
	KindACK    Kind = 0b100
	KindFINACK Kind = 0b110
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindSYN:
		return "SYN"
	case KindFIN:
		return "FIN"
	case KindACK:
		return "ACK"
	case KindFINACK:
		return "FINACK"
	default:
		return "UNKNOWN"
	}
}

func kindToFlagBits(k Kind) (byte, bool) {
	switch k {
	case KindSYN:
		return 0b0001_0000, true
	case KindFIN:
		return 0b0010_0000, true
	case KindACK:
		return 0b0100_0000, true
	case KindFINACK:
		return 0b0110_0000, true
	case KindData:
		return 0b0000_0000, true
	default:
		return 0, false
	}
}

func flagBitsToKind(b byte) (Kind, bool) {
	switch b {
	case 0b0001_0000:
		return KindSYN, true
	case 0b0100_0000:
		return KindACK, true
	case 0b0010_0000:
		return KindFIN, true
	case 0b0110_0000:
		return KindFINACK, true
	case 0b0000_0000:
		return KindData, true
	default:
		return 0, false
	}
}

// Packet is a decoded ABP frame. N is kept as a bool at this boundary
// the codec is the only place it touches the wire byte.
type Packet struct {
	n        bool
	kind     Kind
	checksum byte
	payload  []byte
	buf      []byte
}

// N reports the alternating sequence bit carried by this packet.
func (p *Packet) N() bool { return p.n }

// Kind reports the frame kind.
func (p *Packet) Kind() Kind { return p.kind }

// Payload returns the packet's application payload.
func (p *Packet) Payload() []byte { return p.payload }

// OtherN toggles the alternating sequence bit: OtherN(0)=1, OtherN(1)=0.
func OtherN(n bool) bool { return !n }

// Build constructs a packet, computing and storing its CRC-8 checksum.
// It fails when the payload exceeds MaxPayload.
func Build(n bool, kind Kind, payload []byte) (*Packet, error) {
	if len(payload) > MaxPayload {
		return nil, xerr.Input("payload", "exceeds max payload size")
	}
	flagByte, ok := kindToFlagBits(kind)
	if !ok {
		return nil, xerr.Input("kind", "unknown frame kind")
	}
	if n {
		flagByte |= 0b1000_0000
	}

	payloadLen := uint16(len(payload))
	buf := make([]byte, HeaderLen+len(payload))
	buf[0] = flagByte
	binary.BigEndian.PutUint16(buf[2:4], payloadLen)
	copy(buf[HeaderLen:], payload)

	buf[1] = crc8(buf[0:1], buf[2:4], payload)

	return &Packet{
		n:        n,
		kind:     kind,
		checksum: buf[1],
		payload:  buf[HeaderLen:],
		buf:      buf,
	}, nil
}

// Encode returns the canonical wire representation of p.
func (p *Packet) Encode() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}

// Decode parses raw wire bytes into a Packet. It does NOT validate the
// checksum — the returned packet's Corrupt predicate may be true. Decode
// fails (BadInput) when the buffer is too short, reserved bits are
// nonzero, the kind bits are an unrecognized combination, or the
// declared payload length exceeds the available bytes.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) < HeaderLen {
		return nil, xerr.Input("buffer", "shorter than header length")
	}

	flagByte := buf[0]
	if flagByte&0b0000_1111 != 0 {
		return nil, xerr.Input("reserved", "nonzero reserved bits")
	}

	n := flagByte&0b1000_0000 != 0
	kind, ok := flagBitsToKind(flagByte & 0b0111_0000)
	if !ok {
		return nil, xerr.Input("kind", "unrecognized frame kind bits")
	}

	payloadLen := binary.BigEndian.Uint16(buf[2:4])
	if len(buf) < HeaderLen+int(payloadLen) {
		return nil, xerr.Input("payload", "declared length exceeds buffer")
	}

	out := make([]byte, HeaderLen+int(payloadLen))
	copy(out, buf[:HeaderLen+int(payloadLen)])

	return &Packet{
		n:        n,
		kind:     kind,
		checksum: out[1],
		payload:  out[HeaderLen:],
		buf:      out,
	}, nil
}

// Corrupt recomputes the CRC-8 over the decoded header fields and
// payload, reporting true when it disagrees with the stored checksum.
func (p *Packet) Corrupt() bool {
	return p.checksum != p.calcChecksum()
}

// NotCorrupt is the common-case complement of Corrupt, matching the
// FSM transition guards (`notcorrupt`).
func (p *Packet) NotCorrupt() bool { return !p.Corrupt() }

func (p *Packet) calcChecksum() byte {
	flagByte, _ := kindToFlagBits(p.kind)
	if p.n {
		flagByte |= 0b1000_0000
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(p.payload)))
	return crc8([]byte{flagByte}, lenBuf[:], p.payload)
}
