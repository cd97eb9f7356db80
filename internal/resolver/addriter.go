package resolver

import (
	"net"

	"github.com/dnsscience/resolve/internal/packet"
)

// nextNSAddr scans hintsPkt's Additional section for the next A/AAAA RR
// owned by host: the first match when havePrev is false, or the first
// match strictly after prev (per packet.OrderCmp) when havePrev is true.
// It is a fresh packet.NewIterator walk on every call — never a cached
// cursor or a frame-local address slice — so glue a RESOLV1_NS sub-query
// merges into hintsPkt mid-iteration (via appendGlueA) is visible on the
// very next call, honoring the restartable O(N) start/skip discipline
// packet.Iterator (§4.B, Component C) exists to provide for RR-set
// traversal.
func nextNSAddr(hintsPkt *packet.Packet, host string, prev packet.RR, havePrev bool) (packet.RR, net.IP, bool, error) {
	section := packet.Additional
	it := packet.NewIterator(hintsPkt, packet.Filter{Section: &section, Name: &host}, packet.OrderCmp)

	var (
		rr  packet.RR
		ok  bool
		err error
	)
	if havePrev {
		rr, ok, err = it.Skip(prev)
	} else {
		rr, ok, err = it.Start()
	}

	for err == nil && ok {
		switch rr.Type {
		case packet.TypeA:
			rd, rerr := rr.RDATA(hintsPkt)
			if rerr != nil {
				return packet.RR{}, nil, false, rerr
			}
			return rr, rd.(packet.A).Addr, true, nil
		case packet.TypeAAAA:
			rd, rerr := rr.RDATA(hintsPkt)
			if rerr != nil {
				return packet.RR{}, nil, false, rerr
			}
			return rr, rd.(packet.AAAA).Addr, true, nil
		default:
			rr, ok, err = it.Skip(rr)
		}
	}
	return packet.RR{}, nil, false, err
}
