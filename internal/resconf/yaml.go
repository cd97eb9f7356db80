package resconf

import (
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// file is the YAML configuration shape, following the teacher's
// cmd/dnsscience-grpc/config.go LoadConfig(path) (*ConfigFile, error)
// pattern: a plain unmarshal target, no custom decoder hooks.
type file struct {
	Nameservers []string `yaml:"nameservers"`
	Search      []string `yaml:"search"`
	Lookup      []string `yaml:"lookup"`
	NDots       int      `yaml:"ndots"`
	Timeout     string   `yaml:"timeout"`
	Attempts    int      `yaml:"attempts"`
	EDNS0       bool     `yaml:"edns0"`
	Rotate      bool     `yaml:"rotate"`
	Recurse     *bool    `yaml:"recurse"`
	Smart       bool     `yaml:"smart"`
}

// LoadPath reads a YAML resolver configuration file and converts it
// into a Config, starting from DefaultOptions for any field the file
// omits. Parsing /etc/resolv.conf syntax itself is out of the core
// library's scope (spec §1 Non-goals); this loader is this module's
// equivalent of dns_resconf_loadpath, just for a YAML source instead.
func LoadPath(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Config{}, err
	}

	opts := DefaultOptions()
	if f.NDots != 0 {
		opts.NDots = f.NDots
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return Config{}, err
		}
		opts.Timeout = d
	}
	if f.Attempts != 0 {
		opts.Attempts = f.Attempts
	}
	opts.EDNS0 = f.EDNS0
	opts.Rotate = f.Rotate
	if f.Recurse != nil {
		opts.Recurse = *f.Recurse
	}
	opts.Smart = f.Smart

	cfg := Config{
		Search:  f.Search,
		Options: opts,
	}

	for _, s := range f.Nameservers {
		addr, err := net.ResolveUDPAddr("udp", withPort(s))
		if err != nil {
			return Config{}, err
		}
		cfg.Nameservers = append(cfg.Nameservers, addr)
	}

	for _, l := range f.Lookup {
		cfg.Lookup = append(cfg.Lookup, Lookup(l))
	}
	if cfg.Lookup == nil {
		cfg.Lookup = []Lookup{LookupFile, LookupBind}
	}

	return cfg, nil
}

// withPort appends the default DNS port to addr if it has none.
func withPort(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, "53")
}
