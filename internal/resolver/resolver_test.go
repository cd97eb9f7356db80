package resolver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnsscience/resolve/internal/hints"
	"github.com/dnsscience/resolve/internal/hosts"
	"github.com/dnsscience/resolve/internal/packet"
	"github.com/dnsscience/resolve/internal/randperm"
	"github.com/dnsscience/resolve/internal/resconf"
)

func build(t *testing.T, pushers ...func(*packet.Packet) error) *packet.Packet {
	t.Helper()
	p := packet.New(make([]byte, 512))
	require.NoError(t, p.Init(0))
	for _, f := range pushers {
		require.NoError(t, f(p))
	}
	return p
}

func TestFrameStackNeverExceedsMaxDepth(t *testing.T) {
	r := &Resolver{}
	for i := 0; i < MaxDepth; i++ {
		require.NoError(t, r.push(newFrame("x.", packet.TypeA, packet.ClassIN)))
	}
	err := r.push(newFrame("y.", packet.TypeA, packet.ClassIN))
	require.ErrorIs(t, err, ErrStackOverflow)
	require.Equal(t, uint64(1), r.stats.StackTruncated)
}

func TestResolverHostsFileShortCircuitsSwitch(t *testing.T) {
	ht := hosts.New()
	ht.Add(hosts.Entry{FQDN: "box.local.", Family: hosts.FamilyINET, Addr: net.ParseIP("10.1.2.3")})

	cfg := resconf.DefaultConfig()
	cfg.Lookup = []resconf.Lookup{resconf.LookupFile}

	r := New(Config{Hosts: ht, Resconf: cfg})
	require.NoError(t, r.Submit("box.local.", packet.TypeA, packet.ClassIN))

	r.stepFile(r.top())
	require.Equal(t, Finish, r.top().state)
	require.NotNil(t, r.top().answer)

	m, err := r.top().answer.Parse()
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)
}

func TestMergeAnswersIdempotent(t *testing.T) {
	a := build(t,
		func(p *packet.Packet) error {
			return p.Push(packet.Question, "example.com.", packet.TypeA, packet.ClassIN, 0, nil)
		},
		func(p *packet.Packet) error {
			return p.Push(packet.Answer, "example.com.", packet.TypeA, packet.ClassIN, 300,
				packet.A{Addr: net.IPv4(1, 2, 3, 4)})
		},
	)

	merged, err := mergeAnswers(a, a)
	require.NoError(t, err)

	m, err := merged.Parse()
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)
}

func TestMergeAnswersUnionsCNAMEChase(t *testing.T) {
	a := build(t,
		func(p *packet.Packet) error {
			return p.Push(packet.Question, "www.example.com.", packet.TypeA, packet.ClassIN, 0, nil)
		},
		func(p *packet.Packet) error {
			return p.Push(packet.Answer, "www.example.com.", packet.TypeCNAME, packet.ClassIN, 300,
				packet.CNAME{Target: "real.example.com."})
		},
	)
	b := build(t,
		func(p *packet.Packet) error {
			return p.Push(packet.Question, "real.example.com.", packet.TypeA, packet.ClassIN, 0, nil)
		},
		func(p *packet.Packet) error {
			return p.Push(packet.Answer, "real.example.com.", packet.TypeA, packet.ClassIN, 300,
				packet.A{Addr: net.IPv4(5, 6, 7, 8)})
		},
	)

	merged, err := mergeAnswers(a, b)
	require.NoError(t, err)

	m, err := merged.Parse()
	require.NoError(t, err)
	require.Len(t, m.Answer, 2)
}

func TestBuildNSOrderPrefersGlued(t *testing.T) {
	p := build(t,
		func(p *packet.Packet) error {
			return p.Push(packet.Authority, "example.com.", packet.TypeNS, packet.ClassIN, 3600,
				packet.NS{Host: "ns1.example.com."})
		},
		func(p *packet.Packet) error {
			return p.Push(packet.Authority, "example.com.", packet.TypeNS, packet.ClassIN, 3600,
				packet.NS{Host: "ns2.example.com."})
		},
		func(p *packet.Packet) error {
			return p.Push(packet.Additional, "ns2.example.com.", packet.TypeA, packet.ClassIN, 3600,
				packet.A{Addr: net.IPv4(9, 9, 9, 9)})
		},
	)

	order, err := buildNSOrder(p, p.End(), 7)
	require.NoError(t, err)
	require.Len(t, order, 2)
	require.Equal(t, "ns2.example.com.", order[0].host)
	require.True(t, order[0].hasGlue)
	require.False(t, order[1].hasGlue)
}

func TestHintsTableFeedsIterate(t *testing.T) {
	ht := hints.New()
	ht.Add("com.", net.ParseIP("192.0.2.1"), 0)

	q := packet.Question{Name: "example.com.", Type: packet.TypeA, Class: packet.ClassIN}
	ans := packet.New(make([]byte, 512))
	require.NoError(t, ans.Init(0))
	require.NoError(t, ans.Push(packet.Question, q.Name, q.Type, q.Class, 0, nil))

	hit, err := ht.Query(q, ans, randperm.Crypto{})
	require.NoError(t, err)
	require.True(t, hit)

	order, err := buildNSOrder(ans, ans.End(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, order)
}
