// Package hosts implements the in-memory hostname-to-address table the
// resolver consults before issuing any network query.
package hosts

import (
	"net"
	"strings"
	"sync/atomic"

	"github.com/dnsscience/resolve/internal/packet"
)

// Family distinguishes IPv4 from IPv6 entries.
type Family int

const (
	FamilyINET Family = iota
	FamilyINET6
)

// Entry is one hosts-table row: a name bound to an address, or an alias
// bound to another name already present in the table.
type Entry struct {
	FQDN     string
	Family   Family
	Addr     net.IP
	ArpaFQDN string
	IsAlias  bool
	AliasOf  string
}

// Table is an insertion-ordered, refcounted collection of Entry values.
// Refcounts are plain non-atomic-looking arithmetic made atomic via
// atomic.Int32, consistent with the single-threaded contract the rest of
// this resolver assumes (a resolver's operations are strictly serialized)
// while still being safe if a caller shares one Table across resolvers
// running on different goroutines.
type Table struct {
	entries []Entry
	refs    atomic.Int32
}

// New builds an empty, singly-referenced Table.
func New() *Table {
	t := &Table{}
	t.refs.Store(1)
	return t
}

// Acquire increments the refcount and returns t for chaining.
func (t *Table) Acquire() *Table {
	t.refs.Add(1)
	return t
}

// Release decrements the refcount. Every Acquire (including the initial
// New) must be balanced by exactly one Release (§3 invariant v).
func (t *Table) Release() {
	t.refs.Add(-1)
}

// Refs reports the current refcount, chiefly for tests.
func (t *Table) Refs() int32 { return t.refs.Load() }

// Add appends a host entry, preserving insertion order.
func (t *Table) Add(e Entry) {
	if e.Family == FamilyINET || e.Family == FamilyINET6 {
		if arpa, err := packet.PTRName(e.Addr); err == nil {
			e.ArpaFQDN = arpa
		}
	}
	t.entries = append(t.entries, e)
}

// AddAlias appends an alias entry that resolves to target's address when
// matched directly (not via PTR).
func (t *Table) AddAlias(fqdn, target string) {
	t.entries = append(t.entries, Entry{FQDN: fqdn, IsAlias: true, AliasOf: target})
}

// Len reports the number of entries, aliases included.
func (t *Table) Len() int { return len(t.entries) }

// Stats summarizes table contents.
type Stats struct {
	Entries int
	Aliases int
}

// GetStats returns table statistics.
func (t *Table) GetStats() Stats {
	s := Stats{Entries: len(t.entries)}
	for _, e := range t.entries {
		if e.IsAlias {
			s.Aliases++
		}
	}
	return s
}

func familyOf(typ uint16) (Family, bool) {
	switch typ {
	case packet.TypeA:
		return FamilyINET, true
	case packet.TypeAAAA:
		return FamilyINET6, true
	default:
		return 0, false
	}
}

// resolveAlias follows a chain of AddAlias entries to the underlying
// address-bearing entry, if any. Returns ok=false on a dangling alias.
func (t *Table) resolveAlias(name string) (Entry, bool) {
	seen := map[string]bool{}
	for {
		if seen[strings.ToLower(name)] {
			return Entry{}, false
		}
		seen[strings.ToLower(name)] = true

		var found *Entry
		for i := range t.entries {
			e := &t.entries[i]
			if e.IsAlias && strings.EqualFold(e.FQDN, name) {
				found = e
				break
			}
		}
		if found == nil {
			return Entry{}, false
		}
		if !found.IsAlias {
			return *found, true
		}
		// found is itself another alias entry for AliasOf — but AliasOf
		// might name a non-alias entry directly, so look that up next.
		name = found.AliasOf
		for i := range t.entries {
			e := &t.entries[i]
			if !e.IsAlias && strings.EqualFold(e.FQDN, name) {
				return *e, true
			}
		}
	}
}

// Query answers the single question carried by q out of the hosts table.
// For PTR it linear-scans non-alias entries for a matching arpa string;
// for A/AAAA it linear-scans by family and case-insensitive hostname,
// including aliases. Every hit is pushed into ans as an Answer RR with
// TTL 0, per the synthesized-locally convention the rest of the resolver
// relies on to recognize a hosts hit.
func (t *Table) Query(q packet.Question, ans *packet.Packet) (hit bool, err error) {
	switch q.Type {
	case packet.TypePTR:
		for _, e := range t.entries {
			if e.IsAlias || e.ArpaFQDN == "" {
				continue
			}
			if strings.EqualFold(e.ArpaFQDN, q.Name) {
				if err := ans.Push(packet.Answer, q.Name, packet.TypePTR, packet.ClassIN, 0,
					packet.PTR{Host: e.FQDN}); err != nil {
					return hit, err
				}
				hit = true
			}
		}
		return hit, nil

	case packet.TypeA, packet.TypeAAAA:
		wantFamily, ok := familyOf(q.Type)
		if !ok {
			return false, nil
		}
		for _, e := range t.entries {
			if e.IsAlias {
				continue
			}
			if e.Family != wantFamily || !strings.EqualFold(e.FQDN, q.Name) {
				continue
			}
			var rd packet.RDATA
			if e.Family == FamilyINET {
				rd = packet.A{Addr: e.Addr}
			} else {
				rd = packet.AAAA{Addr: e.Addr}
			}
			if err := ans.Push(packet.Answer, q.Name, q.Type, packet.ClassIN, 0, rd); err != nil {
				return hit, err
			}
			hit = true
		}
		if !hit {
			if resolved, ok := t.resolveAlias(q.Name); ok && resolved.Family == wantFamily {
				var rd packet.RDATA
				if resolved.Family == FamilyINET {
					rd = packet.A{Addr: resolved.Addr}
				} else {
					rd = packet.AAAA{Addr: resolved.Addr}
				}
				if err := ans.Push(packet.Answer, q.Name, q.Type, packet.ClassIN, 0, rd); err != nil {
					return hit, err
				}
				hit = true
			}
		}
		return hit, nil

	default:
		return false, nil
	}
}
