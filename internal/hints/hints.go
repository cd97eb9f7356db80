// Package hints implements the per-zone nameserver address table the
// resolver falls back to when neither the hosts table nor an upstream
// recursive nameserver has an answer: root hints for recursive mode, or
// the configured nameserver list re-keyed under the root zone for stub
// mode.
package hints

import (
	"fmt"
	"net"

	"github.com/dnsscience/resolve/internal/packet"
	"github.com/dnsscience/resolve/internal/randperm"
)

// maxAddrsPerZone bounds each zone's address set; insertion wraps,
// overwriting the oldest entry once full (§3 Hints SOA).
const maxAddrsPerZone = 16

// addr is one nameserver address with its priority. Priority 0 means
// "unset"; ties among equal, non-zero priorities are broken by shuffle.
type addr struct {
	IP       net.IP
	Priority int
}

// Table maps zone names to bounded, ring-buffer address sets.
type Table struct {
	zones map[string][]addr
	next  map[string]int
}

// New builds an empty hints Table.
func New() *Table {
	return &Table{
		zones: make(map[string][]addr),
		next:  make(map[string]int),
	}
}

// Add registers ip as a nameserver address for zone, wrapping mod
// maxAddrsPerZone once the zone's set is full.
func (t *Table) Add(zone string, ip net.IP, priority int) {
	zone = packet.Anchor(zone)
	set := t.zones[zone]
	if len(set) < maxAddrsPerZone {
		t.zones[zone] = append(set, addr{IP: ip, Priority: priority})
		return
	}
	idx := t.next[zone] % maxAddrsPerZone
	set[idx] = addr{IP: ip, Priority: priority}
	t.next[zone] = idx + 1
}

// ZoneCount reports how many distinct zones are registered.
func (t *Table) ZoneCount() int { return len(t.zones) }

// lookupZone walks outward from qname, cleaving the leading label
// repeatedly, until a registered zone matches.
func (t *Table) lookupZone(qname string) (string, []addr, bool) {
	zone := packet.Anchor(qname)
	for {
		if set, ok := t.zones[zone]; ok && len(set) > 0 {
			return zone, set, true
		}
		if zone == "." {
			return "", nil, false
		}
		zone = packet.Cleave(zone)
	}
}

// HintsZoneLabel is the synthetic NS owner name the query answer's
// AUTHORITY section carries, since the hints table itself has no true
// DNS identity.
const HintsZoneLabel = "hints.local."

// Query builds a synthetic referral response into ans for q: a
// hints.local. NS in AUTHORITY, and one A/AAAA ADDITIONAL per stored
// address of the nearest enclosing zone found by repeated cleave. Query
// does not write the question; callers push it into ans beforehand.
// Addresses are emitted in the zone's Iterator order (priority ascending,
// shuffle8 tie-break) rather than raw insertion order, so a configured
// Priority actually steers which nameserver address a resolver tries
// first.
func (t *Table) Query(q packet.Question, ans *packet.Packet, src randperm.Source) (bool, error) {
	zone, _, ok := t.lookupZone(q.Name)
	if !ok {
		return false, nil
	}

	if err := ans.Push(packet.Authority, zone, packet.TypeNS, packet.ClassIN, 0,
		packet.NS{Host: HintsZoneLabel}); err != nil {
		return false, err
	}

	it := t.NewIterator(zone, src)
	for ip, ok := it.Start(); ok; ip, ok = it.Skip(ip) {
		var rd packet.RDATA
		if v4 := ip.To4(); v4 != nil {
			rd = packet.A{Addr: v4}
		} else if v6 := ip.To16(); v6 != nil {
			rd = packet.AAAA{Addr: v6}
		} else {
			continue
		}
		if err := ans.Push(packet.Additional, HintsZoneLabel, rd.Type(), packet.ClassIN, 0, rd); err != nil {
			return true, err
		}
	}

	return true, nil
}

// Iterator enumerates a single zone's addresses, ordered by
// (priority ASC, shuffle8(index, seed) ASC), with the same restartable
// O(N) start/skip discipline as packet.Iterator (§4.D).
type Iterator struct {
	addrs []addr
	seed  uint8
}

// NewIterator builds an iterator over zone's current address set using a
// non-zero per-iteration seed drawn from src.
func (t *Table) NewIterator(zone string, src randperm.Source) *Iterator {
	zone = packet.Anchor(zone)
	seed := uint8(randperm.Uint64(src))
	if seed == 0 {
		seed = 1
	}
	addrs := make([]addr, len(t.zones[zone]))
	copy(addrs, t.zones[zone])
	return &Iterator{addrs: addrs, seed: seed}
}

func (it *Iterator) rank(i int) (int, uint8) {
	return it.addrs[i].Priority, randperm.Shuffle8(uint8(i), it.seed)
}

func (it *Iterator) less(i, j int) bool {
	pi, si := it.rank(i)
	pj, sj := it.rank(j)
	if pi != pj {
		return pi < pj
	}
	return si < sj
}

// Start returns the minimum address under the iterator's order.
func (it *Iterator) Start() (net.IP, bool) {
	if len(it.addrs) == 0 {
		return nil, false
	}
	best := 0
	for i := 1; i < len(it.addrs); i++ {
		if it.less(i, best) {
			best = i
		}
	}
	return it.addrs[best].IP, true
}

// Skip returns the minimum address strictly greater than prev under the
// iterator's order, comparing by IP value as the tie-break identity.
func (it *Iterator) Skip(prev net.IP) (net.IP, bool) {
	prevIdx := -1
	for i, a := range it.addrs {
		if a.IP.Equal(prev) {
			prevIdx = i
			break
		}
	}
	if prevIdx < 0 {
		return nil, false
	}
	best := -1
	for i := range it.addrs {
		if i == prevIdx {
			continue
		}
		if !it.less(prevIdx, i) {
			continue
		}
		if best < 0 || it.less(i, best) {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	return it.addrs[best].IP, true
}

func (a addr) String() string {
	return fmt.Sprintf("%s(p=%d)", a.IP, a.Priority)
}
