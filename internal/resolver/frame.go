package resolver

import (
	"net"

	"github.com/dnsscience/resolve/internal/packet"
	"github.com/dnsscience/resolve/internal/resconf"
)

// subqueryKind records why a sub-frame was pushed, so the owning frame
// knows what to do with the sub-frame's answer on pop.
type subqueryKind int

const (
	subqueryNone subqueryKind = iota
	subqueryNSGlue
	subqueryCNAME
	subquerySmart
)

// frame is one level of the resolver's bounded stack (§3 Resolver
// frame). Frame 0 is the caller's top-level query; deeper frames resolve
// glue, CNAME targets, or smart follow-ups on its behalf.
type frame struct {
	state State

	qname  string
	qtype  uint16
	qclass uint16

	lookupIdx int // index into cfg.Lookup, advanced by Switch
	attempts  int

	search *resconf.SearchState

	// hintsPkt accumulates the current referral/answer this frame is
	// iterating nameservers against; it starts as a synthetic hints.Table
	// response and is replaced by delegation NS sets as iteration
	// descends, or merged with resolved glue.
	hintsPkt *packet.Packet

	// nsOrder is the frame's current nameserver iteration order, computed
	// at ITERATE entry and walked by ForeachNS/ForeachA.
	nsOrder    []nsCandidate
	nsIdx      int
	iterSeed   uint8
	endAtStart int // hintsPkt.End() captured at ITERATE entry, for nameserv_cmp's "original glue" test

	// addrRR/addrRRSet/addrIP are FOREACH_A's restart-safe cursor: the
	// current A/AAAA RR selected for the nameserver named by nsHostname,
	// found by a fresh packet.Iterator scan of hintsPkt's Additional
	// section on every step rather than a frame-cached address slice, so
	// glue appended by a RESOLV1_NS sub-query (via appendGlueA) is always
	// visible on the very next pass (§4.B/§9 restart discipline).
	addrRR    packet.RR
	addrRRSet bool
	addrIP    net.IP

	query     *packet.Packet
	answer    *packet.Packet
	submitted bool // true while query is outstanding on the shared transport socket

	kind       subqueryKind
	cnameRR    packet.RR // the CNAME RR (from the parent's answer) whose target this frame resolves
	nsHostname string    // the NS hostname (parent's ForeachA) whose A this frame resolves
	smartIdx   int       // index into the parent's pending smart-followup targets
	smartDone  bool      // true once Finish has handed this frame to the smart follow-up loop

	// lastChild/lastChildOK carry a just-popped sub-frame's result back to
	// the resume step (Resolv1NS/CName1A/Smart1A) that consumes it.
	lastChild   *frame
	lastChildOK bool
}

// nsCandidate is one nameserver this frame's ForeachNS/ForeachA walks:
// a hostname plus flags recording whether glue for it is known and where
// it came from. The addresses themselves stay in hintsPkt's ADDITIONAL
// section and are read from there.
type nsCandidate struct {
	host          string
	hasGlue       bool
	origGlue      bool // glue RR appeared before endAtStart, i.e. came with the referral itself
	glueAttempted bool // a RESOLV0_NS/RESOLV1_NS sub-query for this host's A already ran
}

func newFrame(qname string, qtype, qclass uint16) *frame {
	return &frame{
		state:  Init,
		qname:  qname,
		qtype:  qtype,
		qclass: qclass,
	}
}
