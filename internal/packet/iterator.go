package packet

import (
	"strings"

	"github.com/dnsscience/resolve/internal/randperm"
)

// Filter selects which RRs an Iterator considers. A nil field matches
// anything; Class additionally treats ClassANY as a wildcard.
type Filter struct {
	Section *Section
	Type    *uint16
	Class   *uint16
	Name    *string
}

func (f Filter) matches(rr RR) bool {
	if f.Section != nil && *f.Section != rr.Section {
		return false
	}
	if f.Type != nil && *f.Type != rr.Type {
		return false
	}
	if f.Class != nil && *f.Class != ClassANY && *f.Class != rr.Class {
		return false
	}
	if f.Name != nil && !strings.EqualFold(*f.Name, rr.Name) {
		return false
	}
	return true
}

// Cmp orders two RRs from the same packet. Built-in comparators always
// fall back to NameOffset as a final tie-break so that Iterator's
// strictly-greater Skip() never stalls on two distinct but equal-ranked
// records.
type Cmp func(p *Packet, a, b RR) int

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// PacketCmp orders RRs by their position in the wire packet — the
// "packet" built-in comparator.
func PacketCmp(p *Packet, a, b RR) int {
	return cmpInt(a.NameOffset, b.NameOffset)
}

// OrderCmp groups by section, then type, then RDATA comparison
// (CompareRDATA) — the "order" built-in comparator.
func OrderCmp(p *Packet, a, b RR) int {
	if c := cmpInt(int(a.Section), int(b.Section)); c != 0 {
		return c
	}
	if c := cmpInt(int(a.Type), int(b.Type)); c != 0 {
		return c
	}
	ra, erra := a.RDATA(p)
	rb, errb := b.RDATA(p)
	if erra == nil && errb == nil {
		if c := CompareRDATA(ra, rb); c != 0 {
			return c
		}
	}
	return cmpInt(a.NameOffset, b.NameOffset)
}

// ShuffleCmp builds the "shuffle" built-in comparator: section, then a
// shuffle8-keyed random order using the given per-iteration seed.
func ShuffleCmp(seed uint8) Cmp {
	return func(p *Packet, a, b RR) int {
		if c := cmpInt(int(a.Section), int(b.Section)); c != 0 {
			return c
		}
		sa := randperm.Shuffle8(uint8(a.NameOffset), seed)
		sb := randperm.Shuffle8(uint8(b.NameOffset), seed)
		if sa != sb {
			if sa < sb {
				return -1
			}
			return 1
		}
		return cmpInt(a.NameOffset, b.NameOffset)
	}
}

// Iterator enumerates RRs in Answer/Authority/Additional matching Filter,
// ordered by Cmp. Start and Skip are each a full O(N) linear scan of the
// packet; no cursor or parsed-message state survives between calls. That
// is deliberate (SPEC_FULL §9 DESIGN NOTES): a restartable resolver may
// re-parse its buffer mid-query, and an iterator that cached offsets
// would silently go stale. Total iteration is O(N^2) — acceptable for the
// message sizes this codec handles.
type Iterator struct {
	p      *Packet
	filter Filter
	cmp    Cmp
}

// NewIterator builds an iterator over p's RRs.
func NewIterator(p *Packet, filter Filter, cmp Cmp) *Iterator {
	return &Iterator{p: p, filter: filter, cmp: cmp}
}

func (it *Iterator) all() ([]RR, error) {
	m, err := it.p.Parse()
	if err != nil {
		return nil, err
	}
	all := make([]RR, 0, len(m.Answer)+len(m.Authority)+len(m.Additional))
	all = append(all, m.Answer...)
	all = append(all, m.Authority...)
	all = append(all, m.Additional...)
	return all, nil
}

// Start returns the globally minimum matching RR under Cmp.
func (it *Iterator) Start() (RR, bool, error) {
	all, err := it.all()
	if err != nil {
		return RR{}, false, err
	}
	var best RR
	found := false
	for _, rr := range all {
		if !it.filter.matches(rr) {
			continue
		}
		if !found || it.cmp(it.p, rr, best) < 0 {
			best = rr
			found = true
		}
	}
	return best, found, nil
}

// Skip returns the minimum matching RR strictly greater than prev under
// Cmp.
func (it *Iterator) Skip(prev RR) (RR, bool, error) {
	all, err := it.all()
	if err != nil {
		return RR{}, false, err
	}
	var best RR
	found := false
	for _, rr := range all {
		if !it.filter.matches(rr) {
			continue
		}
		if it.cmp(it.p, rr, prev) <= 0 {
			continue
		}
		if !found || it.cmp(it.p, rr, best) < 0 {
			best = rr
			found = true
		}
	}
	return best, found, nil
}
