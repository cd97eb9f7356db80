package hints

import (
	"net"
	"testing"

	"github.com/dnsscience/resolve/internal/packet"
	"github.com/stretchr/testify/require"
)

type fixedSource struct{ v uint32 }

func (f fixedSource) Uint32() uint32 { return f.v }

func TestQueryWalksUpToEnclosingZone(t *testing.T) {
	tbl := New()
	tbl.Add(".", net.IPv4(198, 41, 0, 4), 1)

	buf := make([]byte, 512)
	ans := packet.New(buf)
	require.NoError(t, ans.Init(1))

	hit, err := tbl.Query(packet.Question{Name: "www.example.com.", Type: packet.TypeA}, ans, fixedSource{v: 1})
	require.NoError(t, err)
	require.True(t, hit)

	m, err := ans.Parse()
	require.NoError(t, err)
	require.Len(t, m.Authority, 1)
	require.Equal(t, HintsZoneLabel, func() string {
		rd, _ := m.Authority[0].RDATA(ans)
		return rd.(packet.NS).Host
	}())
	require.Len(t, m.Additional, 1)
}

func TestQueryPrefersMoreSpecificZone(t *testing.T) {
	tbl := New()
	tbl.Add(".", net.IPv4(198, 41, 0, 4), 1)
	tbl.Add("example.com.", net.IPv4(192, 0, 2, 53), 1)

	buf := make([]byte, 512)
	ans := packet.New(buf)
	require.NoError(t, ans.Init(1))

	hit, err := tbl.Query(packet.Question{Name: "www.example.com.", Type: packet.TypeA}, ans, fixedSource{v: 1})
	require.NoError(t, err)
	require.True(t, hit)

	m, err := ans.Parse()
	require.NoError(t, err)
	require.Len(t, m.Additional, 1)
	rd, err := m.Additional[0].RDATA(ans)
	require.NoError(t, err)
	require.Equal(t, "192.0.2.53", rd.(packet.A).Addr.String())
}

func TestQueryOrdersAdditionalByPriority(t *testing.T) {
	tbl := New()
	tbl.Add(".", net.IPv4(1, 1, 1, 1), 5)
	tbl.Add(".", net.IPv4(2, 2, 2, 2), 1)

	buf := make([]byte, 512)
	ans := packet.New(buf)
	require.NoError(t, ans.Init(1))

	hit, err := tbl.Query(packet.Question{Name: "example.com.", Type: packet.TypeA}, ans, fixedSource{v: 3})
	require.NoError(t, err)
	require.True(t, hit)

	m, err := ans.Parse()
	require.NoError(t, err)
	require.Len(t, m.Additional, 2)
	rd, err := m.Additional[0].RDATA(ans)
	require.NoError(t, err)
	require.Equal(t, "2.2.2.2", rd.(packet.A).Addr.String(), "lower-priority address must be emitted first")
}

func TestQueryMissReturnsFalse(t *testing.T) {
	tbl := New()
	buf := make([]byte, 512)
	ans := packet.New(buf)
	require.NoError(t, ans.Init(1))

	hit, err := tbl.Query(packet.Question{Name: "anything.", Type: packet.TypeA}, ans, fixedSource{v: 1})
	require.NoError(t, err)
	require.False(t, hit)
}

func TestAddWrapsAfterMax(t *testing.T) {
	tbl := New()
	for i := 0; i < maxAddrsPerZone+3; i++ {
		tbl.Add(".", net.IPv4(10, 0, 0, byte(i)), 1)
	}
	require.Len(t, tbl.zones["."], maxAddrsPerZone)
}

func TestIteratorStartSkipCoversAllAddresses(t *testing.T) {
	tbl := New()
	tbl.Add(".", net.IPv4(1, 1, 1, 1), 1)
	tbl.Add(".", net.IPv4(2, 2, 2, 2), 1)
	tbl.Add(".", net.IPv4(3, 3, 3, 3), 2)

	it := tbl.NewIterator(".", fixedSource{v: 7})
	var seen []string
	ip, ok := it.Start()
	require.True(t, ok)
	for ok {
		seen = append(seen, ip.String())
		ip, ok = it.Skip(ip)
	}
	require.Len(t, seen, 3)

	// priority 1 addresses must both precede the priority-2 address.
	idx3 := -1
	for i, s := range seen {
		if s == "3.3.3.3" {
			idx3 = i
		}
	}
	require.Equal(t, 2, idx3)
}

func TestIteratorEmptyZone(t *testing.T) {
	tbl := New()
	it := tbl.NewIterator("nowhere.", fixedSource{v: 1})
	_, ok := it.Start()
	require.False(t, ok)
}
