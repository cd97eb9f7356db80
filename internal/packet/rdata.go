package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// Supported RR types (§6). Unknown types parse as Opaque.
const (
	TypeA     uint16 = 1
	TypeNS    uint16 = 2
	TypeCNAME uint16 = 5
	TypeSOA   uint16 = 6
	TypePTR   uint16 = 12
	TypeMX    uint16 = 15
	TypeTXT   uint16 = 16
	TypeAAAA  uint16 = 28
	TypeSRV   uint16 = 33
	TypeOPT   uint16 = 41
)

// Classes.
const (
	ClassIN  uint16 = 1
	ClassANY uint16 = 255
)

// A is the IPv4 address RDATA (4 bytes, network order).
type A struct{ Addr net.IP }

func (A) Type() uint16 { return TypeA }

func (r A) Push(p *Packet) error {
	v4 := r.Addr.To4()
	if v4 == nil {
		return fmt.Errorf("packet: A record requires an IPv4 address, got %v", r.Addr)
	}
	return p.appendBytes(v4)
}

func (r A) String() string { return r.Addr.String() }

// AAAA is the IPv6 address RDATA (16 bytes).
type AAAA struct{ Addr net.IP }

func (AAAA) Type() uint16 { return TypeAAAA }

func (r AAAA) Push(p *Packet) error {
	v6 := r.Addr.To16()
	if v6 == nil || r.Addr.To4() != nil {
		return fmt.Errorf("packet: AAAA record requires an IPv6 address, got %v", r.Addr)
	}
	return p.appendBytes(v6)
}

func (r AAAA) String() string { return r.Addr.String() }

// NS is a nameserver-host RDATA (one compressed name).
type NS struct{ Host string }

func (NS) Type() uint16                { return TypeNS }
func (r NS) Push(p *Packet) error      { return p.pushName(r.Host) }
func (r NS) String() string            { return r.Host }

// CNAME is a canonical-name alias (one compressed name).
type CNAME struct{ Target string }

func (CNAME) Type() uint16           { return TypeCNAME }
func (r CNAME) Push(p *Packet) error { return p.pushName(r.Target) }
func (r CNAME) String() string       { return r.Target }

// PTR is a reverse-lookup pointer (one compressed name).
type PTR struct{ Host string }

func (PTR) Type() uint16           { return TypePTR }
func (r PTR) Push(p *Packet) error { return p.pushName(r.Host) }
func (r PTR) String() string       { return r.Host }

// MX is a mail-exchange RDATA: 2-byte preference + compressed name.
type MX struct {
	Preference uint16
	Host       string
}

func (MX) Type() uint16 { return TypeMX }

func (r MX) Push(p *Packet) error {
	if err := p.appendUint16(r.Preference); err != nil {
		return err
	}
	return p.pushName(r.Host)
}

func (r MX) String() string { return fmt.Sprintf("%d %s", r.Preference, r.Host) }

// SOA is the zone-authority RDATA: two names plus five 32-bit fields.
type SOA struct {
	MName, RName                             string
	Serial, Refresh, Retry, Expire, Minimum uint32
}

func (SOA) Type() uint16 { return TypeSOA }

func (r SOA) Push(p *Packet) error {
	if err := p.pushName(r.MName); err != nil {
		return err
	}
	if err := p.pushName(r.RName); err != nil {
		return err
	}
	for _, v := range [...]uint32{r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum} {
		if err := p.appendUint32(v); err != nil {
			return err
		}
	}
	return nil
}

func (r SOA) String() string {
	return fmt.Sprintf("%s %s %d %d %d %d %d",
		r.MName, r.RName, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minimum)
}

// SRV is the service-location RDATA: priority, weight, port, target name.
//
// This codec compresses the target name, contrary to RFC 2782's
// recommendation that SRV targets be written uncompressed. That deviation
// is intentional and preserved from the original design (SPEC_FULL §4.B);
// do not "fix" it without checking callers that assume compressible SRV.
type SRV struct {
	Priority, Weight, Port uint16
	Target                 string
}

func (SRV) Type() uint16 { return TypeSRV }

func (r SRV) Push(p *Packet) error {
	for _, v := range [...]uint16{r.Priority, r.Weight, r.Port} {
		if err := p.appendUint16(v); err != nil {
			return err
		}
	}
	return p.pushName(r.Target)
}

func (r SRV) String() string {
	return fmt.Sprintf("%d %d %d %s", r.Priority, r.Weight, r.Port, r.Target)
}

// TXT holds a sequence of length-prefixed octet strings (each <= 255
// bytes), covering the full payload.
type TXT struct{ Chunks [][]byte }

func (TXT) Type() uint16 { return TypeTXT }

func (r TXT) Push(p *Packet) error {
	for _, c := range r.Chunks {
		if len(c) > 255 {
			return fmt.Errorf("packet: TXT chunk exceeds 255 octets")
		}
		if err := p.appendByte(byte(len(c))); err != nil {
			return err
		}
		if err := p.appendBytes(c); err != nil {
			return err
		}
	}
	return nil
}

func (r TXT) String() string {
	parts := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		parts[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(parts, " ")
}

// Opaque carries the raw RDATA bytes for any type this codec does not
// model explicitly; it is passed through unexamined.
type Opaque struct {
	RRType uint16
	Data   []byte
}

func (o Opaque) Type() uint16           { return o.RRType }
func (o Opaque) Push(p *Packet) error   { return p.appendBytes(o.Data) }
func (o Opaque) String() string         { return fmt.Sprintf("\\# %d %x", len(o.Data), o.Data) }

// ParseRDATA decodes the RDATA of type typ occupying p.buf[rdStart:rdStart+rdLen].
// Name-bearing types are expanded against the whole packet (not just the
// RDATA slice), since embedded names may point anywhere earlier in it.
func ParseRDATA(p *Packet, typ uint16, rdStart, rdLen int) (RDATA, error) {
	if rdStart+rdLen > len(p.buf) {
		return nil, ErrMessageTooShort
	}
	body := p.buf[rdStart : rdStart+rdLen]

	switch typ {
	case TypeA:
		if len(body) != 4 {
			return nil, ErrIllegal
		}
		return A{Addr: net.IPv4(body[0], body[1], body[2], body[3])}, nil

	case TypeAAAA:
		if len(body) != 16 {
			return nil, ErrIllegal
		}
		ip := make(net.IP, 16)
		copy(ip, body)
		return AAAA{Addr: ip}, nil

	case TypeNS:
		name, _, err := p.expandName(rdStart)
		if err != nil {
			return nil, err
		}
		return NS{Host: name}, nil

	case TypeCNAME:
		name, _, err := p.expandName(rdStart)
		if err != nil {
			return nil, err
		}
		return CNAME{Target: name}, nil

	case TypePTR:
		name, _, err := p.expandName(rdStart)
		if err != nil {
			return nil, err
		}
		return PTR{Host: name}, nil

	case TypeMX:
		if len(body) < 2 {
			return nil, ErrMessageTooShort
		}
		pref := binary.BigEndian.Uint16(body[0:2])
		name, _, err := p.expandName(rdStart + 2)
		if err != nil {
			return nil, err
		}
		return MX{Preference: pref, Host: name}, nil

	case TypeSOA:
		mname, next, err := p.expandName(rdStart)
		if err != nil {
			return nil, err
		}
		rname, next2, err := p.expandName(next)
		if err != nil {
			return nil, err
		}
		if next2+20 > len(p.buf) {
			return nil, ErrMessageTooShort
		}
		fields := p.buf[next2 : next2+20]
		return SOA{
			MName:   mname,
			RName:   rname,
			Serial:  binary.BigEndian.Uint32(fields[0:4]),
			Refresh: binary.BigEndian.Uint32(fields[4:8]),
			Retry:   binary.BigEndian.Uint32(fields[8:12]),
			Expire:  binary.BigEndian.Uint32(fields[12:16]),
			Minimum: binary.BigEndian.Uint32(fields[16:20]),
		}, nil

	case TypeSRV:
		if len(body) < 6 {
			return nil, ErrMessageTooShort
		}
		priority := binary.BigEndian.Uint16(body[0:2])
		weight := binary.BigEndian.Uint16(body[2:4])
		port := binary.BigEndian.Uint16(body[4:6])
		name, _, err := p.expandName(rdStart + 6)
		if err != nil {
			return nil, err
		}
		return SRV{Priority: priority, Weight: weight, Port: port, Target: name}, nil

	case TypeTXT:
		var chunks [][]byte
		off := 0
		for off < len(body) {
			n := int(body[off])
			off++
			if off+n > len(body) {
				return nil, ErrMessageTooShort
			}
			chunk := make([]byte, n)
			copy(chunk, body[off:off+n])
			chunks = append(chunks, chunk)
			off += n
		}
		return TXT{Chunks: chunks}, nil

	case TypeOPT:
		data := make([]byte, len(body))
		copy(data, body)
		return OPT{Options: data}, nil

	default:
		data := make([]byte, len(body))
		copy(data, body)
		return Opaque{RRType: typ, Data: data}, nil
	}
}

// CompareRDATA imposes a total order over two RDATA values of the same
// type, used by the "order" RR-iteration comparator.
//
// Two deliberate, documented quirks are preserved from the design this
// codec follows (SPEC_FULL §9 DESIGN NOTES):
//   - TXT is always considered "unordered": CompareRDATA never reports TXT
//     records equal or ordered relative to each other beyond identity;
//     callers must not rely on a stable TXT ordering.
//   - SOA orders by serial DESCENDING (a record with a newer serial number
//     compares as "less than" one with an older serial) — unusual, but
//     intentional; use it only for equality/inequality, not for "which
//     SOA is newer" without re-checking the serial directly.
func CompareRDATA(a, b RDATA) int {
	if a.Type() != b.Type() {
		if a.Type() < b.Type() {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case TXT:
		_ = av
		return -1

	case SOA:
		bv := b.(SOA)
		switch {
		case av.Serial > bv.Serial:
			return -1
		case av.Serial < bv.Serial:
			return 1
		default:
			return strings.Compare(strings.ToLower(av.MName), strings.ToLower(bv.MName))
		}

	default:
		var ab, bb bytes.Buffer
		ab.WriteString(a.String())
		bb.WriteString(b.String())
		return strings.Compare(strings.ToLower(ab.String()), strings.ToLower(bb.String()))
	}
}
