// Package hostsfile loads a hosts.Table from /etc/hosts syntax — one
// address followed by one or more hostnames per line, '#' starting a
// comment to end of line. This is the Go-idiomatic replacement for the
// original dns_hosts_loadfile/dns_hosts_loadpath (William Ahern's
// dns.c): the resolver core takes a pre-built hosts.Table and has no
// filesystem dependency of its own (spec §1 Non-goals push textual
// config parsing out of the core), so this adapter lives outside it.
package hostsfile

import (
	"bufio"
	"io"
	"net"
	"os"
	"strings"

	"github.com/dnsscience/resolve/internal/hosts"
	"github.com/dnsscience/resolve/internal/packet"
)

// DefaultPath is the conventional hosts-file location on Unix systems.
const DefaultPath = "/etc/hosts"

// LoadPath opens path and loads it into a new hosts.Table.
func LoadPath(path string) (*hosts.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load reads hosts-file syntax from r into a new hosts.Table. The
// first whitespace-separated field on a line is the address; every
// field after it is a hostname bound to that address (the first as a
// direct entry, any further names on the same line as aliases of it,
// matching /etc/hosts' one-address-many-names convention).
func Load(r io.Reader) (*hosts.Table, error) {
	t := hosts.New()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		addr := net.ParseIP(fields[0])
		if addr == nil {
			continue
		}
		family := hosts.FamilyINET
		if strings.Contains(fields[0], ":") {
			family = hosts.FamilyINET6
		}

		primary := packet.Anchor(fields[1])
		t.Add(hosts.Entry{FQDN: primary, Family: family, Addr: addr})
		for _, alias := range fields[2:] {
			t.AddAlias(packet.Anchor(alias), primary)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
