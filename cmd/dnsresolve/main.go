// Command dnsresolve is a minimal demo harness around the resolver
// library: it submits one query, drives Check() in a poll loop exactly
// as an embedder must, and prints the answer section. It carries no
// hex-dump/printing helpers beyond that — wiring only, matching the
// teacher's cmd/dnsscience-grpc/main.go's flag-parse-then-run shape.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dnsscience/resolve/internal/hints"
	"github.com/dnsscience/resolve/internal/hosts"
	"github.com/dnsscience/resolve/internal/hostsfile"
	"github.com/dnsscience/resolve/internal/metrics"
	"github.com/dnsscience/resolve/internal/packet"
	"github.com/dnsscience/resolve/internal/resconf"
	"github.com/dnsscience/resolve/internal/resolver"
	"github.com/dnsscience/resolve/internal/rrl"
)

func main() {
	qname := flag.String("q", "", "name to resolve (required)")
	qtype := flag.String("type", "A", "record type: A, AAAA, MX, NS, TXT, CNAME, SOA, SRV, PTR")
	cfgPath := flag.String("config", "", "path to a YAML resolver config file")
	hostsPath := flag.String("hosts", "", "path to a hosts(5)-syntax file to consult before querying")
	recursive := flag.Bool("recursive", false, "iterate from the IANA root hints instead of using configured nameservers")
	metricsListen := flag.String("metrics-listen", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	timeout := flag.Duration("timeout", 5*time.Second, "overall deadline for the poll loop")
	flag.Parse()

	if *qname == "" {
		fmt.Fprintln(os.Stderr, "dnsresolve: -q is required")
		flag.Usage()
		os.Exit(2)
	}

	typ, ok := typeByName(*qtype)
	if !ok {
		log.Fatalf("unknown record type %q", *qtype)
	}

	var rec *metrics.Recorder
	if *metricsListen != "" {
		reg := prometheus.NewRegistry()
		rec = metrics.NewRecorder(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Printf("metrics listening on %s", *metricsListen)
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	cfg := resconf.DefaultConfig()
	if *recursive {
		cfg = resconf.RecursiveConfig()
	}
	if *cfgPath != "" {
		loaded, err := resconf.LoadPath(*cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
		if *recursive {
			cfg.Options.Recurse = true
		}
	}

	ht := hosts.New()
	if *hostsPath != "" {
		loaded, err := hostsfile.LoadPath(*hostsPath)
		if err != nil {
			log.Fatalf("load hosts file: %v", err)
		}
		ht = loaded
	}

	hintsTable := hints.New()
	if *recursive || len(cfg.Nameservers) == 0 {
		for _, ns := range resconf.RootServers() {
			hintsTable.Add(".", ns.IP, 0)
		}
	} else {
		for _, ns := range cfg.Nameservers {
			hintsTable.Add(".", ns.IP, 0)
		}
	}

	r := resolver.New(resolver.Config{
		Hosts:   ht,
		Hints:   hintsTable,
		Resconf: cfg,
		Limiter: rrl.NewLimiter(rrl.DefaultConfig()),
		Metrics: rec,
	})

	if err := r.Submit(*qname, typ, packet.ClassIN); err != nil {
		log.Fatalf("submit: %v", err)
	}

	ans, err := run(r, *timeout)
	if err != nil {
		log.Fatalf("resolve %s: %v", *qname, err)
	}

	m, err := ans.Parse()
	if err != nil {
		log.Fatalf("parse answer: %v", err)
	}
	for _, rr := range m.Answer {
		rd, err := rr.RDATA(ans)
		if err != nil {
			fmt.Printf("%s\t%d\tIN\t%d\t<unparsed>\n", rr.Name, rr.TTL, rr.Type)
			continue
		}
		fmt.Printf("%s\t%d\tIN\t%d\t%s\n", rr.Name, rr.TTL, rr.Type, rd.String())
	}
}

// run drives Check() in the poll loop an embedder is required to run:
// ErrAgain means "call again once the socket is readable/writable",
// which here is simulated with a short sleep since this demo has no
// external event loop to hook into.
func run(r *resolver.Resolver, deadline time.Duration) (*packet.Packet, error) {
	start := time.Now()
	for {
		err := r.Check()
		if err == nil {
			return r.Fetch()
		}
		if !errors.Is(err, resolver.ErrAgain) {
			return nil, err
		}
		if time.Since(start) > deadline {
			return nil, fmt.Errorf("dnsresolve: timed out after %s", deadline)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func typeByName(name string) (uint16, bool) {
	switch name {
	case "A":
		return packet.TypeA, true
	case "AAAA":
		return packet.TypeAAAA, true
	case "NS":
		return packet.TypeNS, true
	case "CNAME":
		return packet.TypeCNAME, true
	case "SOA":
		return packet.TypeSOA, true
	case "PTR":
		return packet.TypePTR, true
	case "MX":
		return packet.TypeMX, true
	case "TXT":
		return packet.TypeTXT, true
	case "SRV":
		return packet.TypeSRV, true
	default:
		return 0, false
	}
}
