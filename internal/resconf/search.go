package resconf

import "strings"

// searchPhase enumerates the three phases a SearchState walks through.
// The original design packs (phase, srchi, ndots) into a 24-bit
// restartable cursor; here that's simply three struct fields, but the
// state is equally resumable across calls — Next never consults
// anything but its own receiver and the qname/cfg it's given.
type searchPhase int

const (
	phaseAnchored searchPhase = iota
	phaseSearchList
	phaseBare
	phaseDone
)

// SearchState drives the frame-0 search-list expansion (§4.F SEARCH):
// first the anchored qname if ndots is met, then qname+search[i] for
// each configured suffix, then the bare qname. It is restartable: the
// resolver frame owns one SearchState per in-flight top-level query and
// calls Next once per candidate it wants to try.
type SearchState struct {
	phase  searchPhase
	srchi  int
	ndots  int
	search []string
}

// NewSearch builds a SearchState for qname against cfg.
func NewSearch(cfg Config) *SearchState {
	return &SearchState{ndots: cfg.Options.NDots, search: cfg.Search}
}

func dotCount(name string) int {
	s := strings.TrimSuffix(name, ".")
	if s == "" {
		return 0
	}
	return strings.Count(s, ".")
}

// Next returns the next candidate qname to try, and whether one was
// produced (false means the search is exhausted).
func (s *SearchState) Next(qname string) (string, bool) {
	anchoredFirst := dotCount(qname) >= s.ndots
	anchored := strings.TrimSuffix(qname, ".") + "."

	for {
		switch s.phase {
		case phaseAnchored:
			s.phase = phaseSearchList
			if anchoredFirst {
				return anchored, true
			}

		case phaseSearchList:
			if s.srchi < len(s.search) {
				suffix := s.search[s.srchi]
				s.srchi++
				return joinSearch(qname, suffix), true
			}
			s.phase = phaseBare

		case phaseBare:
			s.phase = phaseDone
			if !anchoredFirst {
				return anchored, true
			}

		case phaseDone:
			return "", false
		}
	}
}

func joinSearch(qname, suffix string) string {
	base := strings.TrimSuffix(qname, ".")
	suffix = strings.TrimPrefix(suffix, ".")
	if suffix == "" {
		return base + "."
	}
	return base + "." + suffix
}
