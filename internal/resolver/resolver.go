package resolver

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/dnsscience/resolve/internal/hints"
	"github.com/dnsscience/resolve/internal/hosts"
	"github.com/dnsscience/resolve/internal/metrics"
	"github.com/dnsscience/resolve/internal/packet"
	"github.com/dnsscience/resolve/internal/randperm"
	"github.com/dnsscience/resolve/internal/resconf"
	"github.com/dnsscience/resolve/internal/rrl"
	"github.com/dnsscience/resolve/internal/transport"
)

// ErrAgain re-exports transport.ErrAgain so callers need only import this
// package to drive Check() in a poll loop.
var ErrAgain = transport.ErrAgain

var (
	ErrStackOverflow = errors.New("resolver: frame stack depth exceeded")
	ErrNotSubmitted  = errors.New("resolver: check called before submit")
)

// Config holds Resolver construction parameters.
type Config struct {
	Hosts   *hosts.Table
	Hints   *hints.Table
	Resconf resconf.Config
	Source  randperm.Source

	// Limiter caps outgoing query rate per nameserver address. Nil
	// disables rate limiting.
	Limiter *rrl.Limiter

	// Metrics records Prometheus counters for this resolver's activity.
	// Nil-safe.
	Metrics *metrics.Recorder

	// OnTransition, if set, is called once per Check() frame-stack step
	// with the frame state about to be acted on and the resolver's
	// request ID, so an embedder can correlate a submit()/check()
	// sequence across log lines without this library owning a logger.
	// Nil by default.
	OnTransition func(TraceEvent)
}

// TraceEvent is passed to Config.OnTransition on every Check() step.
type TraceEvent struct {
	RequestID string
	Depth     int
	State     State
}

// Stats tracks resolver-level counters.
type Stats struct {
	Submits        uint64
	CNAMEChases    uint64
	GlueSubqueries uint64
	SmartFollowups uint64
	ServFails      uint64
	StackTruncated uint64
}

// Resolver drives the bounded frame stack to turn one top-level query
// into a final answer, atop a Socket it owns exclusively for the
// duration of that query (§4.F, §5).
type Resolver struct {
	cfg   Config
	sock  *transport.Socket
	stack []*frame

	completed   bool
	finalAnswer *packet.Packet
	stats       Stats

	// requestID correlates one Submit-to-Fetch sequence across
	// OnTransition callbacks (TraceEvent.RequestID) and RequestID().
	requestID string
}

// New builds a Resolver using cfg. A Socket is constructed internally
// from cfg.Source, cfg.Limiter and cfg.Metrics; cfg.Resconf.Interface is
// not used to bind it.
func New(cfg Config) *Resolver {
	if cfg.Source == nil {
		cfg.Source = randperm.Crypto{}
	}
	return &Resolver{
		cfg: cfg,
		sock: transport.New(transport.Config{
			Mode:    transport.ModeUDPFirst,
			Source:  cfg.Source,
			Limiter: cfg.Limiter,
			Metrics: cfg.Metrics,
		}),
	}
}

// GetStats returns a copy of the resolver's counters.
func (r *Resolver) GetStats() Stats { return r.stats }

// Submit seeds the resolver with a new top-level query, resetting any
// prior state.
func (r *Resolver) Submit(qname string, qtype, qclass uint16) error {
	r.sock.Reset()
	r.stack = []*frame{newFrame(packet.Anchor(qname), qtype, qclass)}
	r.completed = false
	r.finalAnswer = nil
	r.requestID = uuid.NewString()
	r.stats.Submits++
	return nil
}

// RequestID returns the correlation ID assigned by the most recent
// Submit call, or "" if Submit has never been called.
func (r *Resolver) RequestID() string { return r.requestID }

func (r *Resolver) top() *frame { return r.stack[len(r.stack)-1] }

func (r *Resolver) push(f *frame) error {
	if len(r.stack) >= MaxDepth {
		r.stats.StackTruncated++
		return ErrStackOverflow
	}
	r.stack = append(r.stack, f)
	r.cfg.Metrics.ResolverFrameDepth(len(r.stack))
	return nil
}

func (r *Resolver) pop() *frame {
	f := r.top()
	r.stack = r.stack[:len(r.stack)-1]
	return f
}

// Check drives the frame stack as far as it can without blocking. See
// transport.Socket.Check for the EAGAIN contract this mirrors.
func (r *Resolver) Check() error {
	if len(r.stack) == 0 {
		return ErrNotSubmitted
	}

	for {
		f := r.top()

		if r.cfg.OnTransition != nil {
			r.cfg.OnTransition(TraceEvent{RequestID: r.requestID, Depth: len(r.stack), State: f.state})
		}

		switch f.state {
		case Init:
			if len(r.stack) == 1 {
				f.state = Switch
			} else {
				f.state = Glue
			}

		case Glue:
			if r.tryGlue(f) {
				continue
			}
			f.state = Switch

		case Switch:
			if err := r.stepSwitch(f); err != nil {
				return err
			}

		case File:
			r.stepFile(f)

		case Bind:
			f.state = Search

		case Search:
			r.stepSearch(f)

		case Hints:
			if err := r.stepHints(f); err != nil {
				return err
			}

		case Iterate:
			if err := r.stepIterate(f); err != nil {
				return err
			}

		case ForeachNS:
			if err := r.stepForeachNS(f); err != nil {
				return err
			}

		case Resolv1NS:
			r.stepResolv1NS(f)

		case ForeachA:
			r.stepForeachA(f)

		case QueryA:
			again, err := r.stepQueryA(f)
			if err != nil {
				return err
			}
			if again {
				return ErrAgain
			}

		case CName1A:
			r.stepCName1A(f)

		case Finish:
			r.stepFinish(f)

		case Smart0A:
			r.stepSmart0A(f)

		case Smart1A:
			r.stepSmart1A(f)

		case Done:
			if len(r.stack) == 1 {
				r.completed = true
				r.finalAnswer = f.answer
				r.cfg.Metrics.ResolverDone("done")
				return nil
			}
			r.popInto(Done)

		case ServFail:
			r.stats.ServFails++
			if len(r.stack) == 1 {
				r.completed = true
				r.finalAnswer = servfailAnswer(f.query)
				r.cfg.Metrics.ResolverDone("servfail")
				return nil
			}
			r.popInto(ServFail)

		default:
			return fmt.Errorf("resolver: unknown state %v", f.state)
		}
	}
}

// Fetch transfers ownership of the final answer to the caller iff the
// resolver has completed (reached Done or ServFail at frame 0).
func (r *Resolver) Fetch() (*packet.Packet, error) {
	if !r.completed {
		return nil, fmt.Errorf("resolver: fetch called before completion")
	}
	ans := r.finalAnswer
	r.finalAnswer = nil
	return ans, nil
}

func servfailAnswer(query *packet.Packet) *packet.Packet {
	buf := make([]byte, query.Size())
	out := packet.New(buf)
	out.Init(query.ID())
	out.SetQR(true)
	out.SetRcode(2) // SERVFAIL
	if m, err := query.Parse(); err == nil {
		for _, q := range m.Question {
			out.Push(packet.Question, q.Name, q.Type, q.Class, 0, nil)
		}
	}
	return out
}

// popInto pops the completed child frame and resumes its parent at the
// resume-state recorded when the child was pushed, carrying the child's
// terminal state (childState) so the parent can distinguish success from
// failure.
func (r *Resolver) popInto(childState State) {
	child := r.pop()
	parent := r.top()

	switch child.kind {
	case subqueryNSGlue:
		parent.state = Resolv1NS
		parent.lastChild = child
		parent.lastChildOK = childState == Done
	case subqueryCNAME:
		parent.state = CName1A
		parent.lastChild = child
		parent.lastChildOK = childState == Done
	case subquerySmart:
		parent.state = Smart1A
		parent.lastChild = child
		parent.lastChildOK = childState == Done
	default:
		// Frame pushed for a reason this resolver no longer tracks;
		// resume at Finish defensively rather than get stuck.
		parent.state = Finish
	}
}

// tryGlue implements §4.F GLUE: before issuing any sub-query, scan all
// ancestor frames' answer packets for an RR matching this frame's
// (qname, qtype) or a CNAME at qname.
func (r *Resolver) tryGlue(f *frame) bool {
	idx := -1
	for i, s := range r.stack {
		if s == f {
			idx = i
			break
		}
	}
	for i := 0; i < idx; i++ {
		anc := r.stack[i]
		if anc.answer == nil {
			continue
		}
		m, err := anc.answer.Parse()
		if err != nil {
			continue
		}
		shape := packet.Study(anc.answer, m, f.qname, f.qtype)
		if shape.HasAnswer {
			f.answer = filterAnswer(anc.answer, m, f.qname, f.qtype)
			f.state = Finish
			return true
		}
		if shape.HasCNAME {
			f.answer = filterAnswer(anc.answer, m, f.qname, packet.TypeCNAME)
			f.state = Finish
			return true
		}
	}
	return false
}

// filterAnswer builds a minimal synthetic answer packet containing only
// the Answer-section RRs of src matching (qname, qtype), echoing the
// question. Used by GLUE to avoid carrying a whole ancestor packet
// forward as if it were a direct response to this frame's query.
func filterAnswer(src *packet.Packet, m *packet.Message, qname string, qtype uint16) *packet.Packet {
	buf := make([]byte, src.Size())
	out := packet.New(buf)
	out.Init(0)
	out.SetQR(true)
	out.Push(packet.Question, qname, qtype, packet.ClassIN, 0, nil)
	for _, rr := range m.Answer {
		if !strings.EqualFold(rr.Name, qname) || rr.Type != qtype {
			continue
		}
		rd, err := rr.RDATA(src)
		if err != nil {
			continue
		}
		out.Push(packet.Answer, rr.Name, rr.Type, rr.Class, rr.TTL, rd)
	}
	return out
}

func (r *Resolver) stepSwitch(f *frame) error {
	for f.lookupIdx < len(r.cfg.Resconf.Lookup) {
		lk := r.cfg.Resconf.Lookup[f.lookupIdx]
		f.lookupIdx++
		switch lk {
		case resconf.LookupFile:
			f.state = File
			return nil
		case resconf.LookupBind:
			f.state = Bind
			return nil
		}
	}
	f.state = ServFail
	return nil
}

func (r *Resolver) stepFile(f *frame) {
	if r.cfg.Hosts == nil {
		f.state = Switch
		return
	}
	buf := make([]byte, 512)
	ans := packet.New(buf)
	ans.Init(0)
	ans.SetQR(true)
	ans.Push(packet.Question, f.qname, f.qtype, f.qclass, 0, nil)

	hit, err := r.cfg.Hosts.Query(packet.Question{Name: f.qname, Type: f.qtype, Class: f.qclass}, ans)
	if err != nil || !hit {
		f.state = Switch
		return
	}
	f.answer = ans
	f.state = Finish
}

func (r *Resolver) stepSearch(f *frame) {
	if len(r.stack) != 1 {
		// Only the top-level query expands against the search list.
		f.state = Hints
		return
	}
	if f.search == nil {
		f.search = resconf.NewSearch(r.cfg.Resconf)
	}
	cand, ok := f.search.Next(f.qname)
	if !ok {
		f.state = ServFail
		return
	}
	f.qname = cand
	f.state = Hints
}

func (r *Resolver) stepHints(f *frame) error {
	if r.cfg.Hints == nil {
		f.state = ServFail
		return nil
	}
	buf := make([]byte, 512)
	pkt := packet.New(buf)
	if err := pkt.Init(0); err != nil {
		return err
	}
	q := packet.Question{Name: f.qname, Type: f.qtype, Class: f.qclass}
	pkt.Push(packet.Question, q.Name, q.Type, q.Class, 0, nil)

	hit, err := r.cfg.Hints.Query(q, pkt, r.cfg.Source)
	if err != nil {
		return err
	}
	if !hit {
		f.state = ServFail
		return nil
	}
	f.hintsPkt = pkt
	f.state = Iterate
	return nil
}

func (r *Resolver) stepIterate(f *frame) error {
	f.endAtStart = f.hintsPkt.End()
	f.iterSeed = uint8(randperm.Uint64(r.cfg.Source))
	if f.iterSeed == 0 {
		f.iterSeed = 1
	}
	order, err := buildNSOrder(f.hintsPkt, f.endAtStart, f.iterSeed)
	if err != nil {
		return err
	}
	if len(order) == 0 {
		f.state = ServFail
		return nil
	}
	f.nsOrder = order
	f.nsIdx = 0
	f.addrRRSet = false
	f.state = ForeachNS
	return nil
}

func (r *Resolver) stepForeachNS(f *frame) error {
	if f.nsIdx >= len(f.nsOrder) {
		f.state = ServFail
		return nil
	}
	cur := &f.nsOrder[f.nsIdx]
	if cur.hasGlue {
		f.nsHostname = cur.host
		f.addrRRSet = false
		f.state = ForeachA
		return nil
	}
	if cur.glueAttempted {
		f.nsIdx++
		return nil
	}
	cur.glueAttempted = true
	child := newFrame(cur.host, packet.TypeA, packet.ClassIN)
	child.kind = subqueryNSGlue
	f.nsHostname = cur.host
	f.state = Resolv1NS
	r.stats.GlueSubqueries++
	return r.push(child)
}

func (r *Resolver) stepResolv1NS(f *frame) {
	if f.lastChildOK && f.lastChild != nil && f.lastChild.answer != nil {
		if m, err := f.lastChild.answer.Parse(); err == nil {
			for i := range f.nsOrder {
				if !strings.EqualFold(f.nsOrder[i].host, f.nsHostname) {
					continue
				}
				for _, rr := range m.Answer {
					rd, err := rr.RDATA(f.lastChild.answer)
					if err != nil {
						continue
					}
					a, ok := rd.(packet.A)
					if !ok {
						continue
					}
					// Merge the resolved glue back into hintsPkt itself (§4.F)
					// rather than a frame-local slice, so the next FOREACH_A
					// pass's fresh packet.Iterator scan actually observes it.
					grown, err := appendGlueA(f.hintsPkt, f.nsOrder[i].host, a.Addr)
					if err != nil {
						continue
					}
					f.hintsPkt = grown
					f.nsOrder[i].hasGlue = true
				}
			}
		}
	}
	f.lastChild = nil
	f.state = ForeachNS
}

func (r *Resolver) stepForeachA(f *frame) {
	if f.nsIdx >= len(f.nsOrder) {
		f.state = ServFail
		return
	}
	if !f.addrRRSet {
		rr, ip, ok, err := nextNSAddr(f.hintsPkt, f.nsHostname, packet.RR{}, false)
		if err != nil || !ok {
			f.nsIdx++
			f.state = ForeachNS
			return
		}
		f.addrRR, f.addrIP, f.addrRRSet = rr, ip, true
	}
	maxAttempts := r.cfg.Resconf.Options.Attempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	if f.attempts >= maxAttempts*len(f.nsOrder) {
		f.state = ServFail
		return
	}
	f.state = QueryA
}

// advanceAddr moves f's address cursor to the next A/AAAA RR for the
// current nameserver, rescanning hintsPkt's live Additional section
// rather than a cached slice, then hands control back: to ForeachA when a
// next candidate was found, or, once the current nameserver's addresses
// are exhausted, to ForeachNS to move on to the next nameserver.
func (f *frame) advanceAddr() {
	rr, ip, ok, err := nextNSAddr(f.hintsPkt, f.nsHostname, f.addrRR, true)
	if err != nil || !ok {
		f.addrRRSet = false
		f.nsIdx++
		f.state = ForeachNS
		return
	}
	f.addrRR, f.addrIP = rr, ip
	f.state = ForeachA
}

// stepQueryA submits (on first entry) and advances the transport socket
// for the current nameserver address. Returns again=true when the
// caller should propagate ErrAgain up.
func (r *Resolver) stepQueryA(f *frame) (bool, error) {
	if !f.submitted {
		addr := f.addrIP

		buf := make([]byte, 512)
		q := packet.New(buf)
		if err := q.Init(0); err != nil {
			return false, err
		}
		q.Push(packet.Question, f.qname, f.qtype, f.qclass, 0, nil)
		if !r.cfg.Resconf.Options.Recurse {
			q.SetRD(true)
		}
		peer := &net.UDPAddr{IP: addr, Port: 53}
		if err := r.sock.Submit(q, peer); err != nil {
			if errors.Is(err, transport.ErrRateLimited) {
				// Skip this address rather than failing the whole query
				// outright.
				f.advanceAddr()
				return false, nil
			}
			return false, err
		}
		f.query = q
		f.submitted = true
		f.attempts++
	}

	err := r.sock.Check()
	if err == transport.ErrAgain {
		if r.cfg.Resconf.Options.Timeout > 0 && r.sock.Elapsed() > r.cfg.Resconf.Options.Timeout {
			r.sock.Reset()
			f.submitted = false
			f.advanceAddr()
			return false, nil
		}
		return true, nil
	}
	if err != nil {
		r.sock.Reset()
		f.submitted = false
		f.advanceAddr()
		return false, nil
	}

	ans, err := r.sock.Fetch()
	f.submitted = false
	if err != nil {
		f.advanceAddr()
		return false, nil
	}

	if !r.cfg.Resconf.Options.Recurse {
		f.answer = ans
		f.state = Finish
		return false, nil
	}

	m, err := ans.Parse()
	if err != nil {
		f.advanceAddr()
		return false, nil
	}
	shape := packet.Study(ans, m, f.qname, f.qtype)

	switch {
	case shape.HasAnswer:
		f.answer = ans
		f.state = Finish

	case shape.HasCNAME:
		f.answer = ans
		child := newFrame(packet.Anchor(shape.CNAMETarget), f.qtype, f.qclass)
		child.kind = subqueryCNAME
		r.stats.CNAMEChases++
		f.state = CName1A
		if err := r.push(child); err != nil {
			f.state = Finish
		}

	case shape.HasDelegation:
		f.hintsPkt = ans
		f.state = Iterate

	case ans.AA():
		f.answer = ans
		f.state = Finish

	default:
		f.advanceAddr()
	}
	return false, nil
}

func (r *Resolver) stepCName1A(f *frame) {
	if f.lastChildOK && f.lastChild != nil && f.lastChild.answer != nil && f.answer != nil {
		if merged, err := mergeAnswers(f.answer, f.lastChild.answer); err == nil {
			f.answer = merged
		}
	}
	f.lastChild = nil
	f.state = Finish
}

func (r *Resolver) stepFinish(f *frame) {
	if r.cfg.Resconf.Options.Smart && len(r.stack) == 1 && !f.smartDone {
		f.smartDone = true
		f.state = Smart0A
		return
	}
	f.state = Done
}

// smartTargets gathers the NS/MX/SRV hostnames in f.answer worth
// eagerly resolving to an A record (§4.F Smart follow-up), including
// the MX-zero-records SMTP fallback.
func smartTargets(ans *packet.Packet, qtype uint16) []string {
	if ans == nil {
		return nil
	}
	m, err := ans.Parse()
	if err != nil {
		return nil
	}

	var targets []string
	seen := map[string]bool{}
	add := func(h string) {
		h = strings.ToLower(packet.Anchor(h))
		if !seen[h] {
			seen[h] = true
			targets = append(targets, h)
		}
	}

	mxCount := 0
	for _, rr := range m.Answer {
		switch rr.Type {
		case packet.TypeMX:
			mxCount++
			if rd, err := rr.RDATA(ans); err == nil {
				add(rd.(packet.MX).Host)
			}
		case packet.TypeSRV:
			if rd, err := rr.RDATA(ans); err == nil {
				add(rd.(packet.SRV).Target)
			}
		}
	}
	for _, rr := range m.Authority {
		if rr.Type == packet.TypeNS {
			if rd, err := rr.RDATA(ans); err == nil {
				add(rd.(packet.NS).Host)
			}
		}
	}

	if qtype == packet.TypeMX && mxCount == 0 {
		for _, q := range m.Question {
			add(q.Name)
		}
	}

	return targets
}

func (r *Resolver) stepSmart0A(f *frame) {
	targets := smartTargets(f.answer, f.qtype)
	if f.smartIdx >= len(targets) {
		f.state = Done
		return
	}
	target := targets[f.smartIdx]
	child := newFrame(target, packet.TypeA, packet.ClassIN)
	child.kind = subquerySmart
	r.stats.SmartFollowups++
	f.state = Smart1A
	if err := r.push(child); err != nil {
		f.state = Done
	}
}

func (r *Resolver) stepSmart1A(f *frame) {
	if f.lastChildOK && f.lastChild != nil && f.lastChild.answer != nil && f.answer != nil {
		if m, err := f.lastChild.answer.Parse(); err == nil {
			for _, rr := range m.Answer {
				if rr.Type != packet.TypeA {
					continue
				}
				rd, err := rr.RDATA(f.lastChild.answer)
				if err != nil {
					continue
				}
				f.answer.Push(packet.Additional, rr.Name, rr.Type, rr.Class, rr.TTL, rd)
			}
		}
	}
	f.lastChild = nil
	f.smartIdx++
	f.state = Smart0A
}
