package packet

import "encoding/binary"

// OPT is the RDATA of an EDNS0 pseudo-RR (RFC 6891 §6.1): a sequence of
// OPTION-CODE/OPTION-LENGTH/OPTION-DATA triples, opaque to the core
// codec. The pseudo-RR's CLASS field carries the requestor's UDP
// payload size and its TTL field carries extended-RCODE/VERSION/flags
// instead of their usual meaning — PushOPT sets those directly rather
// than through this RDATA value.
type OPT struct{ Options []byte }

func (OPT) Type() uint16 { return TypeOPT }

func (o OPT) Push(p *Packet) error { return p.appendBytes(o.Options) }

func (o OPT) String() string { return Opaque{RRType: TypeOPT, Data: o.Options}.String() }

// CookieOptionCode is the EDNS0 OPTION-CODE for DNS Cookies (RFC 7873).
const CookieOptionCode uint16 = 10

// EncodeEDNS0Option wraps data in one OPTION-CODE/OPTION-LENGTH/
// OPTION-DATA triple.
func EncodeEDNS0Option(code uint16, data []byte) []byte {
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(buf[0:2], code)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(data)))
	copy(buf[4:], data)
	return buf
}

// DecodeEDNS0Options splits a raw OPT RDATA blob back into its
// option-code -> option-data triples. Malformed trailing bytes (a
// truncated header or a length past the end of raw) stop decoding
// without an error, returning whatever options parsed cleanly.
func DecodeEDNS0Options(raw []byte) map[uint16][]byte {
	out := make(map[uint16][]byte)
	off := 0
	for off+4 <= len(raw) {
		code := binary.BigEndian.Uint16(raw[off : off+2])
		length := int(binary.BigEndian.Uint16(raw[off+2 : off+4]))
		off += 4
		if off+length > len(raw) {
			break
		}
		out[code] = raw[off : off+length]
		off += length
	}
	return out
}

// PushOPT appends an EDNS0 OPT pseudo-RR to the Additional section: a
// root-name RR whose CLASS is the advertised UDP payload size and
// whose RDATA is the caller-supplied option TLVs (e.g. from
// EncodeEDNS0Option for a DNS Cookie).
func PushOPT(p *Packet, udpPayloadSize uint16, options []byte) error {
	return p.Push(Additional, ".", TypeOPT, udpPayloadSize, 0, OPT{Options: options})
}

// FindOPT returns the first OPT pseudo-RR's RDATA in m's Additional
// section, if present.
func FindOPT(p *Packet, m *Message) (OPT, bool) {
	for _, rr := range m.Additional {
		if rr.Type != TypeOPT {
			continue
		}
		rd, err := rr.RDATA(p)
		if err != nil {
			continue
		}
		opt, ok := rd.(OPT)
		if !ok {
			continue
		}
		return opt, true
	}
	return OPT{}, false
}

// CookieOption returns the raw COOKIE (RFC 7873) option data from m's
// OPT pseudo-RR, if both are present.
func CookieOption(p *Packet, m *Message) ([]byte, bool) {
	opt, ok := FindOPT(p, m)
	if !ok {
		return nil, false
	}
	data, ok := DecodeEDNS0Options(opt.Options)[CookieOptionCode]
	return data, ok
}
