package packet

import "encoding/binary"

// Section identifies which of the four DNS message sections a record
// belongs to.
type Section uint8

const (
	Question Section = iota
	Answer
	Authority
	Additional
)

// String renders the section name for debugging/logging, in the style of
// the original dns_strsection pretty-printer this module supplements
// (SPEC_FULL §11).
func (s Section) String() string {
	switch s {
	case Question:
		return "QUESTION"
	case Answer:
		return "ANSWER"
	case Authority:
		return "AUTHORITY"
	case Additional:
		return "ADDITIONAL"
	default:
		return "UNKNOWN"
	}
}

// dictEntry is one slot of the fixed-size compression dictionary: the
// canonical (anchored, case-preserved) name written at offset, used to
// find the longest compressible suffix for later names.
type dictEntry struct {
	name   string
	offset int
	valid  bool
}

// Packet is a contiguous byte buffer plus a logical length (End) and a
// fixed-size compression dictionary of previously-written names. Invariant:
// headerSize <= End <= len(buf); the four section counts in the header are
// kept consistent with records actually pushed.
//
// Push writes only into the caller-provided buffer and never grows it;
// Parse and RR iteration allocate the Go values (names, RR views) they
// return.
type Packet struct {
	buf  []byte
	end  int
	dict [dictSize]dictEntry
	next int // ring-buffer cursor into dict
}

// New wraps buf as an empty packet; callers build a fresh message with
// Init, or call SetBuf to take a complete wire message as the packet's
// contents and then decode it with Parse.
func New(buf []byte) *Packet {
	return &Packet{buf: buf}
}

// Init resets p and writes a zeroed 12-byte header with the given
// transaction ID, ready for Push calls.
func (p *Packet) Init(id uint16) error {
	if len(p.buf) < headerSize {
		return ErrNoBufs
	}
	for i := range p.buf[:headerSize] {
		p.buf[i] = 0
	}
	p.end = headerSize
	p.dict = [dictSize]dictEntry{}
	p.next = 0
	binary.BigEndian.PutUint16(p.buf[0:2], id)
	return nil
}

// Reset clears p back to its zero-length state without touching the
// underlying buffer's backing array size, so it can be reused for the next
// query on the same Socket.
func (p *Packet) Reset() {
	p.end = 0
	p.dict = [dictSize]dictEntry{}
	p.next = 0
}

// Bytes returns the logical wire contents, buf[:end].
func (p *Packet) Bytes() []byte { return p.buf[:p.end] }

// End returns the current logical length.
func (p *Packet) End() int { return p.end }

// Size returns the capacity of the backing buffer.
func (p *Packet) Size() int { return len(p.buf) }

// SetBuf re-points the packet at buf and takes all of buf as its wire
// contents (End becomes len(buf)), clearing the compression dictionary —
// used to load a received message for Parse. Call Init afterwards to
// build a fresh message in buf instead.
func (p *Packet) SetBuf(buf []byte) {
	p.buf = buf
	p.end = len(buf)
	p.dict = [dictSize]dictEntry{}
	p.next = 0
}

// --- header accessors -------------------------------------------------

const (
	flagQR = 1 << 15
	flagAA = 1 << 10
	flagTC = 1 << 9
	flagRD = 1 << 8
	flagRA = 1 << 7
)

func (p *Packet) flags() uint16 { return binary.BigEndian.Uint16(p.buf[2:4]) }

func (p *Packet) setFlags(f uint16) { binary.BigEndian.PutUint16(p.buf[2:4], f) }

// ID returns the transaction ID.
func (p *Packet) ID() uint16 { return binary.BigEndian.Uint16(p.buf[0:2]) }

// SetID overwrites the transaction ID.
func (p *Packet) SetID(id uint16) { binary.BigEndian.PutUint16(p.buf[0:2], id) }

// QR, AA, TC, RD, RA report the corresponding header flag bits.
func (p *Packet) QR() bool { return p.flags()&flagQR != 0 }
func (p *Packet) AA() bool { return p.flags()&flagAA != 0 }
func (p *Packet) TC() bool { return p.flags()&flagTC != 0 }
func (p *Packet) RD() bool { return p.flags()&flagRD != 0 }
func (p *Packet) RA() bool { return p.flags()&flagRA != 0 }

func (p *Packet) setFlag(bit uint16, v bool) {
	f := p.flags()
	if v {
		f |= bit
	} else {
		f &^= bit
	}
	p.setFlags(f)
}

func (p *Packet) SetQR(v bool) { p.setFlag(flagQR, v) }
func (p *Packet) SetAA(v bool) { p.setFlag(flagAA, v) }
func (p *Packet) SetTC(v bool) { p.setFlag(flagTC, v) }
func (p *Packet) SetRD(v bool) { p.setFlag(flagRD, v) }
func (p *Packet) SetRA(v bool) { p.setFlag(flagRA, v) }

// Opcode is the 4-bit operation code.
func (p *Packet) Opcode() uint8 { return uint8(p.flags()>>11) & 0x0F }

func (p *Packet) SetOpcode(op uint8) {
	f := p.flags()
	f = (f &^ (0x0F << 11)) | (uint16(op&0x0F) << 11)
	p.setFlags(f)
}

// Rcode is the 4-bit response code.
func (p *Packet) Rcode() uint8 { return uint8(p.flags() & 0x0F) }

func (p *Packet) SetRcode(rc uint8) {
	f := p.flags()
	f = (f &^ 0x0F) | uint16(rc&0x0F)
	p.setFlags(f)
}

// QDCount, ANCount, NSCount, ARCount read the section counts directly from
// the header.
func (p *Packet) QDCount() uint16 { return binary.BigEndian.Uint16(p.buf[4:6]) }
func (p *Packet) ANCount() uint16 { return binary.BigEndian.Uint16(p.buf[6:8]) }
func (p *Packet) NSCount() uint16 { return binary.BigEndian.Uint16(p.buf[8:10]) }
func (p *Packet) ARCount() uint16 { return binary.BigEndian.Uint16(p.buf[10:12]) }

func (p *Packet) countOffset(s Section) int {
	switch s {
	case Question:
		return 4
	case Answer:
		return 6
	case Authority:
		return 8
	default:
		return 10
	}
}

func (p *Packet) incCount(s Section) {
	off := p.countOffset(s)
	n := binary.BigEndian.Uint16(p.buf[off : off+2])
	if n != 0xFFFF {
		binary.BigEndian.PutUint16(p.buf[off:off+2], n+1)
	}
}

// count returns the declared count for s.
func (p *Packet) count(s Section) uint16 {
	off := p.countOffset(s)
	return binary.BigEndian.Uint16(p.buf[off : off+2])
}

// --- low-level append helpers ------------------------------------------

func (p *Packet) appendUint16(v uint16) error {
	if p.end+2 > len(p.buf) {
		return ErrNoBufs
	}
	binary.BigEndian.PutUint16(p.buf[p.end:], v)
	p.end += 2
	return nil
}

func (p *Packet) appendUint32(v uint32) error {
	if p.end+4 > len(p.buf) {
		return ErrNoBufs
	}
	binary.BigEndian.PutUint32(p.buf[p.end:], v)
	p.end += 4
	return nil
}

func (p *Packet) appendBytes(b []byte) error {
	if p.end+len(b) > len(p.buf) {
		return ErrNoBufs
	}
	copy(p.buf[p.end:], b)
	p.end += len(b)
	return nil
}

// --- record construction ------------------------------------------------

// RDATA is the interface every typed record-data writer implements. Push
// appends the RDATA body (not the 2-byte RDLENGTH prefix, which Push on
// Packet manages) directly into p, using p's compression dictionary for
// any embedded domain names the type permits compressing.
type RDATA interface {
	Type() uint16
	Push(p *Packet) error
	String() string
}

// Push appends a complete resource record to section. For Question it
// writes name/type/class only and increments QDCount. For the other three
// sections it also writes TTL (bit 31 masked to 0) and a length-prefixed
// RDATA body produced by rdata.Push.
//
// On any space shortage the packet is rolled back to its pre-call state and
// ErrNoBufs is returned — safe to retry after growing the buffer.
func (p *Packet) Push(section Section, name string, typ, class uint16, ttl uint32, rdata RDATA) (err error) {
	start := p.end
	savedDict, savedNext := p.dict, p.next
	defer func() {
		if err != nil {
			p.dict, p.next = savedDict, savedNext
		}
	}()

	if err := p.pushName(name); err != nil {
		p.end = start
		return err
	}
	if err := p.appendUint16(typ); err != nil {
		p.end = start
		return err
	}
	if err := p.appendUint16(class); err != nil {
		p.end = start
		return err
	}

	if section == Question {
		p.incCount(section)
		return nil
	}

	if err := p.appendUint32(ttl &^ (1 << 31)); err != nil {
		p.end = start
		return err
	}

	rdlenOff := p.end
	if err := p.appendUint16(0); err != nil {
		p.end = start
		return err
	}
	bodyStart := p.end

	if rdata == nil {
		// No typed writer available (unknown type passed through at the
		// caller's request) — zero-length RDATA.
	} else if err := rdata.Push(p); err != nil {
		p.end = start
		return err
	}

	rdlen := p.end - bodyStart
	if rdlen > 0xFFFF {
		p.end = start
		return ErrNoBufs
	}
	binary.BigEndian.PutUint16(p.buf[rdlenOff:rdlenOff+2], uint16(rdlen))

	p.incCount(section)
	return nil
}
