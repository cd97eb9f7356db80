// Package resconf models the external resolver configuration the
// Resolver FSM consumes: nameserver list, search list, lookup order, and
// tuning options. Loading it from YAML or /etc/resolv.conf syntax is
// explicitly out of scope for the core library (spec §1 Non-goals); this
// package defines the shape any such loader must produce, plus a
// hardcoded-root-hints constructor for recursive mode.
package resconf

import (
	"net"
	"time"
)

// Lookup names one source the resolver's SWITCH state tries in order.
type Lookup string

const (
	LookupFile Lookup = "file"
	LookupBind Lookup = "bind"
)

// Options are the tunables carried alongside nameserver/search/lookup.
type Options struct {
	NDots    int
	Timeout  time.Duration
	Attempts int
	EDNS0    bool
	Rotate   bool
	Recurse  bool
	Smart    bool
}

// DefaultOptions mirrors the conventional resolv.conf defaults (§6).
func DefaultOptions() Options {
	return Options{
		NDots:    1,
		Timeout:  5 * time.Second,
		Attempts: 2,
		EDNS0:    false,
		Rotate:   false,
		Recurse:  false,
		Smart:    false,
	}
}

// Config is the full resolver configuration surface (§6 Config inputs).
type Config struct {
	Nameservers []*net.UDPAddr
	Search      []string
	Lookup      []Lookup
	Options     Options
	Interface   *net.UDPAddr
}

// DefaultConfig returns a stub-mode configuration: no nameservers
// configured yet (the caller/loader is expected to fill Nameservers),
// file-then-bind lookup order, and DefaultOptions.
func DefaultConfig() Config {
	return Config{
		Lookup:  []Lookup{LookupFile, LookupBind},
		Options: DefaultOptions(),
	}
}

// rootServers are IANA's published root server addresses, used to seed
// recursive-mode hints when no upstream resolver is configured.
var rootServers = []string{
	"198.41.0.4",     // a.root-servers.net
	"199.9.14.201",   // b.root-servers.net
	"192.33.4.12",    // c.root-servers.net
	"199.7.91.13",    // d.root-servers.net
	"192.203.230.10", // e.root-servers.net
	"192.5.5.241",    // f.root-servers.net
	"192.112.36.4",   // g.root-servers.net
	"198.97.190.53",  // h.root-servers.net
	"192.36.148.17",  // i.root-servers.net
	"192.58.128.30",  // j.root-servers.net
	"193.0.14.129",   // k.root-servers.net
	"199.7.83.42",    // l.root-servers.net
	"202.12.27.33",   // m.root-servers.net
}

// RootServers returns the IANA root server addresses at port 53, for
// seeding a recursive-mode hints.Table.
func RootServers() []*net.UDPAddr {
	out := make([]*net.UDPAddr, 0, len(rootServers))
	for _, ip := range rootServers {
		out = append(out, &net.UDPAddr{IP: net.ParseIP(ip), Port: 53})
	}
	return out
}

// RecursiveConfig returns a Config tuned for driving iteration from root
// hints: no configured nameservers, Recurse enabled (RD=0 on outgoing
// queries and referrals followed, per §4.F "Recursion vs stub"),
// bind-only lookup.
func RecursiveConfig() Config {
	opts := DefaultOptions()
	opts.Recurse = true
	return Config{
		Lookup:  []Lookup{LookupBind},
		Options: opts,
	}
}
