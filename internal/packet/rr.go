package packet

import (
	"encoding/binary"
	"strings"
)

// Question is a parsed question-section entry.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// RR is the parsed *view* into a packet: offsets and scalar fields, no
// owned RDATA storage until RDATA() is called. Section records which of
// the four sections this record was read from.
type RR struct {
	Section    Section
	NameOffset int
	Name       string
	Type       uint16
	Class      uint16
	TTL        uint32
	RDOffset   int
	RDLength   int
}

// RDATA lazily decodes this record's typed RDATA from p.
func (r RR) RDATA(p *Packet) (RDATA, error) {
	return ParseRDATA(p, r.Type, r.RDOffset, r.RDLength)
}

// Message is the fully parsed view of a packet's four sections.
type Message struct {
	Question   []Question
	Answer     []RR
	Authority  []RR
	Additional []RR
}

// Parse decodes every section declared in the header. Every RR parse is
// bounds-checked against p.End(); a malformed count or truncated record
// aborts with an error rather than reading past the logical length
// (§3 invariant i).
func (p *Packet) Parse() (*Message, error) {
	if p.end < headerSize {
		return nil, ErrMessageTooShort
	}

	m := &Message{}
	off := headerSize

	for i := 0; i < int(p.QDCount()); i++ {
		name, next, err := p.expandName(off)
		if err != nil {
			return nil, err
		}
		if next+4 > p.end {
			return nil, ErrMessageTooShort
		}
		typ := binary.BigEndian.Uint16(p.buf[next : next+2])
		class := binary.BigEndian.Uint16(p.buf[next+2 : next+4])
		m.Question = append(m.Question, Question{Name: name, Type: typ, Class: class})
		off = next + 4
	}

	var err error
	m.Answer, off, err = p.parseRRs(off, int(p.ANCount()), Answer)
	if err != nil {
		return nil, err
	}
	m.Authority, off, err = p.parseRRs(off, int(p.NSCount()), Authority)
	if err != nil {
		return nil, err
	}
	m.Additional, off, err = p.parseRRs(off, int(p.ARCount()), Additional)
	if err != nil {
		return nil, err
	}

	if off != p.end {
		return nil, ErrIllegal
	}

	return m, nil
}

func (p *Packet) parseRRs(off, count int, section Section) ([]RR, int, error) {
	var out []RR
	for i := 0; i < count; i++ {
		nameOff := off
		name, next, err := p.expandName(off)
		if err != nil {
			return nil, 0, err
		}
		if next+10 > p.end {
			return nil, 0, ErrMessageTooShort
		}
		typ := binary.BigEndian.Uint16(p.buf[next : next+2])
		class := binary.BigEndian.Uint16(p.buf[next+2 : next+4])
		ttl := binary.BigEndian.Uint32(p.buf[next+4 : next+8])
		rdlen := int(binary.BigEndian.Uint16(p.buf[next+8 : next+10]))
		rdOff := next + 10
		if rdOff+rdlen > p.end {
			return nil, 0, ErrMessageTooShort
		}
		out = append(out, RR{
			Section:    section,
			NameOffset: nameOff,
			Name:       name,
			Type:       typ,
			Class:      class,
			TTL:        ttl,
			RDOffset:   rdOff,
			RDLength:   rdlen,
		})
		off = rdOff + rdlen
	}
	return out, off, nil
}

// SameRR reports whether a (from pa) and b (from pb) share
// (name, type, class, rdata) — the equality merge() uses to de-duplicate
// records copied from two answers.
func SameRR(pa *Packet, a RR, pb *Packet, b RR) bool {
	if a.Type != b.Type || a.Class != b.Class {
		return false
	}
	if !strings.EqualFold(a.Name, b.Name) {
		return false
	}
	ra, err := a.RDATA(pa)
	if err != nil {
		return false
	}
	rb, err := b.RDATA(pb)
	if err != nil {
		return false
	}
	return strings.EqualFold(ra.String(), rb.String())
}

// Shape is a one-pass summary of a parsed message relative to a pending
// query, computed once and consulted by multiple resolver FSM states
// instead of rescanning — the dns_p_study-equivalent SPEC_FULL §11
// supplements back in.
type Shape struct {
	HasAnswer     bool // AN contains qname/qtype
	HasCNAME      bool // AN contains a CNAME at qname
	CNAMETarget   string
	HasDelegation bool // NS records present in AUTHORITY
	NSNames       []string
}

// Study computes a Shape for m relative to qname/qtype (case-insensitive
// name match). p provides the backing bytes needed to decode the CNAME
// target and NS hostnames it reports.
func Study(p *Packet, m *Message, qname string, qtype uint16) Shape {
	var s Shape

	for _, rr := range m.Answer {
		if !strings.EqualFold(rr.Name, qname) {
			continue
		}
		if rr.Type == qtype {
			s.HasAnswer = true
		}
		if rr.Type == TypeCNAME {
			s.HasCNAME = true
			if rd, err := rr.RDATA(p); err == nil {
				if c, ok := rd.(CNAME); ok {
					s.CNAMETarget = c.Target
				}
			}
		}
	}

	for _, rr := range m.Authority {
		if rr.Type != TypeNS {
			continue
		}
		s.HasDelegation = true
		if rd, err := rr.RDATA(p); err == nil {
			if ns, ok := rd.(NS); ok {
				s.NSNames = append(s.NSNames, ns.Host)
			}
		}
	}

	return s
}
