package packet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func pushAndParseOne(t *testing.T, typ uint16, rd RDATA) RDATA {
	t.Helper()
	buf := make([]byte, 512)
	p := New(buf)
	require.NoError(t, p.Init(1))
	require.NoError(t, p.Push(Answer, "rr.example.com.", typ, ClassIN, 300, rd))

	m, err := p.Parse()
	require.NoError(t, err)
	require.Len(t, m.Answer, 1)

	got, err := m.Answer[0].RDATA(p)
	require.NoError(t, err)
	return got
}

func TestRDATARoundTripA(t *testing.T) {
	got := pushAndParseOne(t, TypeA, A{Addr: net.IPv4(198, 51, 100, 7)})
	require.Equal(t, "198.51.100.7", got.(A).Addr.String())
}

func TestRDATARoundTripAAAA(t *testing.T) {
	ip := net.ParseIP("2001:db8::abcd")
	got := pushAndParseOne(t, TypeAAAA, AAAA{Addr: ip})
	require.Equal(t, ip.String(), got.(AAAA).Addr.String())
}

func TestRDATARoundTripNS(t *testing.T) {
	got := pushAndParseOne(t, TypeNS, NS{Host: "ns1.example.com."})
	require.Equal(t, "ns1.example.com.", got.(NS).Host)
}

func TestRDATARoundTripCNAME(t *testing.T) {
	got := pushAndParseOne(t, TypeCNAME, CNAME{Target: "alias.example.com."})
	require.Equal(t, "alias.example.com.", got.(CNAME).Target)
}

func TestRDATARoundTripPTR(t *testing.T) {
	got := pushAndParseOne(t, TypePTR, PTR{Host: "host.example.com."})
	require.Equal(t, "host.example.com.", got.(PTR).Host)
}

func TestRDATARoundTripMX(t *testing.T) {
	got := pushAndParseOne(t, TypeMX, MX{Preference: 10, Host: "mail.example.com."})
	mx := got.(MX)
	require.EqualValues(t, 10, mx.Preference)
	require.Equal(t, "mail.example.com.", mx.Host)
}

func TestRDATARoundTripSOA(t *testing.T) {
	got := pushAndParseOne(t, TypeSOA, SOA{
		MName: "ns1.example.com.", RName: "hostmaster.example.com.",
		Serial: 2026073001, Refresh: 3600, Retry: 600, Expire: 86400, Minimum: 300,
	})
	soa := got.(SOA)
	require.Equal(t, "ns1.example.com.", soa.MName)
	require.Equal(t, "hostmaster.example.com.", soa.RName)
	require.EqualValues(t, 2026073001, soa.Serial)
	require.EqualValues(t, 300, soa.Minimum)
}

func TestRDATARoundTripSRV(t *testing.T) {
	got := pushAndParseOne(t, TypeSRV, SRV{Priority: 1, Weight: 2, Port: 5060, Target: "sip.example.com."})
	srv := got.(SRV)
	require.EqualValues(t, 1, srv.Priority)
	require.EqualValues(t, 2, srv.Weight)
	require.EqualValues(t, 5060, srv.Port)
	require.Equal(t, "sip.example.com.", srv.Target)
}

func TestRDATARoundTripTXT(t *testing.T) {
	got := pushAndParseOne(t, TypeTXT, TXT{Chunks: [][]byte{[]byte("v=spf1"), []byte("-all")}})
	txt := got.(TXT)
	require.Len(t, txt.Chunks, 2)
	require.Equal(t, "v=spf1", string(txt.Chunks[0]))
	require.Equal(t, "-all", string(txt.Chunks[1]))
}

func TestRDATARoundTripOpaque(t *testing.T) {
	got := pushAndParseOne(t, 65399, Opaque{RRType: 65399, Data: []byte{0xde, 0xad, 0xbe, 0xef}})
	op := got.(Opaque)
	require.EqualValues(t, 65399, op.RRType)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, op.Data)
}

func TestCompareRDATADifferentTypesOrderByTypeNumber(t *testing.T) {
	a := A{Addr: net.IPv4(1, 1, 1, 1)}
	ns := NS{Host: "ns.example.com."}
	require.Equal(t, -1, CompareRDATA(a, ns)) // TypeA(1) < TypeNS(2)
	require.Equal(t, 1, CompareRDATA(ns, a))
}

func TestCompareRDATATXTAlwaysUnordered(t *testing.T) {
	x := TXT{Chunks: [][]byte{[]byte("same")}}
	y := TXT{Chunks: [][]byte{[]byte("same")}}
	require.Equal(t, -1, CompareRDATA(x, y))
	require.Equal(t, -1, CompareRDATA(y, x), "TXT vs TXT always reports -1, never a stable order")
}

func TestCompareRDATASOAOrdersBySerialDescending(t *testing.T) {
	older := SOA{MName: "ns1.example.com.", RName: "hostmaster.example.com.", Serial: 1}
	newer := SOA{MName: "ns1.example.com.", RName: "hostmaster.example.com.", Serial: 2}

	require.Equal(t, -1, CompareRDATA(newer, older), "higher serial must compare as less than")
	require.Equal(t, 1, CompareRDATA(older, newer))
}

func TestCompareRDATAAEqualAddressesCompareEqual(t *testing.T) {
	a := A{Addr: net.IPv4(10, 0, 0, 1)}
	b := A{Addr: net.IPv4(10, 0, 0, 1)}
	require.Equal(t, 0, CompareRDATA(a, b))
}
