package resolver

import (
	"sort"
	"strings"

	"github.com/dnsscience/resolve/internal/packet"
	"github.com/dnsscience/resolve/internal/randperm"
)

// buildNSOrder extracts the NS/glue candidates from hintsPkt's AUTHORITY
// and ADDITIONAL sections and orders them per nameserv_cmp (§4.F):
// nameservers with A/AAAA glue in the same packet sort before those
// without; among glued, those whose glue RR predates endAtStart (i.e.
// arrived with the original referral rather than from a later
// RESOLV1_NS merge) sort first; ties break by a per-iterator shuffle
// seed.
func buildNSOrder(hintsPkt *packet.Packet, endAtStart int, seed uint8) ([]nsCandidate, error) {
	m, err := hintsPkt.Parse()
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(m.Authority))
	seenHost := map[string]int{}
	for _, rr := range m.Authority {
		if rr.Type != packet.TypeNS {
			continue
		}
		rd, err := rr.RDATA(hintsPkt)
		if err != nil {
			continue
		}
		host := strings.ToLower(rd.(packet.NS).Host)
		if _, ok := seenHost[host]; !ok {
			seenHost[host] = len(order)
			order = append(order, host)
		}
	}

	cands := make([]nsCandidate, len(order))
	for i, host := range order {
		cands[i] = nsCandidate{host: host}
	}

	for _, rr := range m.Additional {
		if rr.Type != packet.TypeA && rr.Type != packet.TypeAAAA {
			continue
		}
		idx, ok := seenHost[strings.ToLower(rr.Name)]
		if !ok {
			continue
		}
		cands[idx].hasGlue = true
		if rr.NameOffset < endAtStart {
			cands[idx].origGlue = true
		}
	}

	idxOf := make(map[string]int, len(cands))
	for i, c := range cands {
		idxOf[c.host] = i
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].hasGlue != cands[j].hasGlue {
			return cands[i].hasGlue
		}
		if cands[i].hasGlue && cands[i].origGlue != cands[j].origGlue {
			return cands[i].origGlue
		}
		si := randperm.Shuffle8(uint8(idxOf[cands[i].host]), seed)
		sj := randperm.Shuffle8(uint8(idxOf[cands[j].host]), seed)
		return si < sj
	})

	return cands, nil
}
