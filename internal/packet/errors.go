// Package packet implements the wire codec: parsing, building, and
// name-compressing/decompressing DNS messages per RFC 1035 §4. It is the
// lowest-level component that understands wire bytes; the hosts table,
// hints table, transport FSM, and resolver FSM are all built on top of it.
package packet

import "errors"

// Sentinel errors returned by this package. Callers should compare with
// errors.Is; codec errors always abort the current operation and leave the
// packet's logical length (End) exactly as it was before the call.
var (
	// ErrNoBufs indicates the destination buffer was too small to hold the
	// record being pushed. The write was rolled back; retry with a larger
	// buffer.
	ErrNoBufs = errors.New("packet: buffer too small (ENOBUFS)")

	// ErrIllegal indicates malformed wire data: a truncated record, a
	// reserved label-type bit pattern, a compression pointer loop, or a
	// name exceeding the 255-octet limit.
	ErrIllegal = errors.New("packet: malformed wire data")

	// ErrMessageTooShort indicates a message shorter than the 12-byte
	// header, or a read that would run past the buffer's end.
	ErrMessageTooShort = errors.New("packet: message too short")

	// ErrLabelTooLong indicates a label exceeding 63 octets.
	ErrLabelTooLong = errors.New("packet: label exceeds 63 octets")

	// ErrNameTooLong indicates a decoded name exceeding 255 octets.
	ErrNameTooLong = errors.New("packet: name exceeds 255 octets")

	// ErrPointerLoop indicates a compression pointer chain exceeding the
	// 127-hop bound, or a pointer that does not strictly point backwards.
	ErrPointerLoop = errors.New("packet: compression pointer loop or excessive depth")

	// ErrUnknownRDATA indicates a typed RDATA writer/reader was asked to
	// handle a type it does not recognize; callers should fall back to
	// Opaque.
	ErrUnknownRDATA = errors.New("packet: unknown rdata type")
)

// maxPointerHops bounds name-decompression chains (§3 invariant ii).
const maxPointerHops = 127

// maxLabelLength and maxNameLength are the RFC 1035 name-size limits.
const (
	maxLabelLength = 63
	maxNameLength  = 255
)

// dictSize is the fixed compression-dictionary capacity (§4.B, §9 DESIGN
// NOTES: never grow this — RFC limits pointer offsets to 14 bits and the
// fixed bound keeps packet construction O(N·16)).
const dictSize = 16

// maxPointerOffset is the largest offset a 14-bit compression pointer can
// address.
const maxPointerOffset = 1<<14 - 1

// headerSize is the fixed DNS header length in octets.
const headerSize = 12
