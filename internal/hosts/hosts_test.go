package hosts

import (
	"net"
	"testing"

	"github.com/dnsscience/resolve/internal/packet"
	"github.com/stretchr/testify/require"
)

func newAnswer(t *testing.T) *packet.Packet {
	t.Helper()
	buf := make([]byte, 512)
	p := packet.New(buf)
	require.NoError(t, p.Init(1))
	return p
}

func TestQueryLocalhostA(t *testing.T) {
	tbl := New()
	tbl.Add(Entry{FQDN: "localhost.", Family: FamilyINET, Addr: net.IPv4(127, 0, 0, 1)})

	ans := newAnswer(t)
	hit, err := tbl.Query(packet.Question{Name: "localhost.", Type: packet.TypeA, Class: packet.ClassIN}, ans)
	require.NoError(t, err)
	require.True(t, hit)

	m, err := ans.Parse()
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)
	require.EqualValues(t, 0, m.Answer[0].TTL)
	rd, err := m.Answer[0].RDATA(ans)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", rd.(packet.A).Addr.String())
}

func TestQueryCaseInsensitive(t *testing.T) {
	tbl := New()
	tbl.Add(Entry{FQDN: "Host.Example.com.", Family: FamilyINET, Addr: net.IPv4(10, 0, 0, 5)})

	ans := newAnswer(t)
	hit, err := tbl.Query(packet.Question{Name: "host.example.com.", Type: packet.TypeA}, ans)
	require.NoError(t, err)
	require.True(t, hit)
}

func TestQueryPTRReverse(t *testing.T) {
	tbl := New()
	tbl.Add(Entry{FQDN: "box.example.com.", Family: FamilyINET, Addr: net.IPv4(192, 0, 2, 9)})

	arpa, err := packet.PTRName(net.IPv4(192, 0, 2, 9))
	require.NoError(t, err)

	ans := newAnswer(t)
	hit, err := tbl.Query(packet.Question{Name: arpa, Type: packet.TypePTR}, ans)
	require.NoError(t, err)
	require.True(t, hit)

	m, err := ans.Parse()
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)
	rd, err := m.Answer[0].RDATA(ans)
	require.NoError(t, err)
	require.Equal(t, "box.example.com.", rd.(packet.PTR).Host)
}

func TestQueryAliasFollowsToAddress(t *testing.T) {
	tbl := New()
	tbl.Add(Entry{FQDN: "canonical.example.com.", Family: FamilyINET, Addr: net.IPv4(10, 1, 1, 1)})
	tbl.AddAlias("alias.example.com.", "canonical.example.com.")

	ans := newAnswer(t)
	hit, err := tbl.Query(packet.Question{Name: "alias.example.com.", Type: packet.TypeA}, ans)
	require.NoError(t, err)
	require.True(t, hit)

	m, err := ans.Parse()
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)
}

func TestQueryMiss(t *testing.T) {
	tbl := New()
	tbl.Add(Entry{FQDN: "only.example.com.", Family: FamilyINET, Addr: net.IPv4(1, 1, 1, 1)})

	ans := newAnswer(t)
	hit, err := tbl.Query(packet.Question{Name: "nowhere.example.com.", Type: packet.TypeA}, ans)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestRefcountBalances(t *testing.T) {
	tbl := New()
	require.EqualValues(t, 1, tbl.Refs())
	tbl.Acquire()
	require.EqualValues(t, 2, tbl.Refs())
	tbl.Release()
	tbl.Release()
	require.EqualValues(t, 0, tbl.Refs())
}

func TestStats(t *testing.T) {
	tbl := New()
	tbl.Add(Entry{FQDN: "a.example.com.", Family: FamilyINET, Addr: net.IPv4(1, 1, 1, 1)})
	tbl.AddAlias("b.example.com.", "a.example.com.")

	s := tbl.GetStats()
	require.Equal(t, 2, s.Entries)
	require.Equal(t, 1, s.Aliases)
}
