package resolver

import (
	"net"

	"github.com/dnsscience/resolve/internal/packet"
)

// appendGlueA pushes host/addr as an Additional-section A RR into pkt,
// growing into a freshly allocated, larger buffer (up to
// packet.MaxBufferSize) and retrying when the current one is full — the
// same grow-on-ErrNoBufs discipline mergeAnswers uses. This is how a
// RESOLV1_NS sub-query's resolved address gets "merged back into the
// hints packet as AR-section A RRs" (§4.F) so a later FOREACH_A pass's
// fresh scan of the Additional section actually observes it, instead of
// only a frame-local copy that a repeated scan would miss.
func appendGlueA(pkt *packet.Packet, host string, addr net.IP) (*packet.Packet, error) {
	if err := pkt.Push(packet.Additional, host, packet.TypeA, packet.ClassIN, 0, packet.A{Addr: addr}); err == nil {
		return pkt, nil
	} else if err != packet.ErrNoBufs {
		return nil, err
	}

	size := len(pkt.Bytes()) * 2
	if size < 512 {
		size = 512
	}
	for {
		if size > packet.MaxBufferSize {
			size = packet.MaxBufferSize
		}
		grown, err := rebuildPacket(pkt, size)
		if err != nil {
			return nil, err
		}
		err = grown.Push(packet.Additional, host, packet.TypeA, packet.ClassIN, 0, packet.A{Addr: addr})
		if err == nil {
			return grown, nil
		}
		if err != packet.ErrNoBufs || size >= packet.MaxBufferSize {
			return nil, err
		}
		size *= 2
	}
}

// rebuildPacket copies src's header flags, question, and all three RR
// sections into a fresh, larger buffer.
func rebuildPacket(src *packet.Packet, size int) (*packet.Packet, error) {
	m, err := src.Parse()
	if err != nil {
		return nil, err
	}

	out := packet.New(make([]byte, size))
	if err := out.Init(src.ID()); err != nil {
		return nil, err
	}
	out.SetQR(src.QR())
	out.SetAA(src.AA())
	out.SetRD(src.RD())
	out.SetRA(src.RA())
	out.SetRcode(src.Rcode())

	for _, q := range m.Question {
		if err := out.Push(packet.Question, q.Name, q.Type, q.Class, 0, nil); err != nil {
			return nil, err
		}
	}

	copySection := func(rrs []packet.RR, section packet.Section) error {
		for _, rr := range rrs {
			rd, err := rr.RDATA(src)
			if err != nil {
				return err
			}
			if err := out.Push(section, rr.Name, rr.Type, rr.Class, rr.TTL, rd); err != nil {
				return err
			}
		}
		return nil
	}

	if err := copySection(m.Answer, packet.Answer); err != nil {
		return nil, err
	}
	if err := copySection(m.Authority, packet.Authority); err != nil {
		return nil, err
	}
	if err := copySection(m.Additional, packet.Additional); err != nil {
		return nil, err
	}

	return out, nil
}
