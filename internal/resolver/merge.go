package resolver

import "github.com/dnsscience/resolve/internal/packet"

// mergeAnswers builds a new packet containing a's Question plus the
// union of a and b's Answer/Authority/Additional RRs, skipping any RR
// (from either packet) that already appears (by name/type/class/rdata) in
// the running result (§4.F "Merging two answers"). Buffer size grows (up to 65535)
// and the push is retried on ErrNoBufs.
func mergeAnswers(a, b *packet.Packet) (*packet.Packet, error) {
	size := 512
	for {
		out, err := tryMerge(a, b, size)
		if err == nil {
			return out, nil
		}
		if err == packet.ErrNoBufs && size < packet.MaxBufferSize {
			size *= 2
			if size > packet.MaxBufferSize {
				size = packet.MaxBufferSize
			}
			continue
		}
		return nil, err
	}
}

func tryMerge(a, b *packet.Packet, size int) (*packet.Packet, error) {
	ma, err := a.Parse()
	if err != nil {
		return nil, err
	}
	mb, err := b.Parse()
	if err != nil {
		return nil, err
	}

	out := packet.New(make([]byte, size))
	if err := out.Init(a.ID()); err != nil {
		return nil, err
	}
	out.SetQR(true)
	if a.RD() {
		out.SetRD(true)
	}
	if a.AA() || b.AA() {
		out.SetAA(true)
	}

	for _, q := range ma.Question {
		if err := out.Push(packet.Question, q.Name, q.Type, q.Class, 0, nil); err != nil {
			return nil, err
		}
	}

	var merged []packet.RR
	pushDedup := func(p *packet.Packet, rrs []packet.RR, section packet.Section) error {
		for _, rr := range rrs {
			dup := false
			for _, seen := range merged {
				if packet.SameRR(p, rr, out, seen) {
					dup = true
					break
				}
			}
			if dup {
				continue
			}
			rd, err := rr.RDATA(p)
			if err != nil {
				return err
			}
			if err := out.Push(section, rr.Name, rr.Type, rr.Class, rr.TTL, rd); err != nil {
				return err
			}
			m2, err := out.Parse()
			if err != nil {
				return err
			}
			var all []packet.RR
			all = append(all, m2.Answer...)
			all = append(all, m2.Authority...)
			all = append(all, m2.Additional...)
			merged = all
		}
		return nil
	}

	if err := pushDedup(a, ma.Answer, packet.Answer); err != nil {
		return nil, err
	}
	if err := pushDedup(b, mb.Answer, packet.Answer); err != nil {
		return nil, err
	}
	if err := pushDedup(a, ma.Authority, packet.Authority); err != nil {
		return nil, err
	}
	if err := pushDedup(b, mb.Authority, packet.Authority); err != nil {
		return nil, err
	}
	if err := pushDedup(a, ma.Additional, packet.Additional); err != nil {
		return nil, err
	}
	if err := pushDedup(b, mb.Additional, packet.Additional); err != nil {
		return nil, err
	}

	return out, nil
}
