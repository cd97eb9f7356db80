package compat

import (
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"github.com/dnsscience/resolve/internal/packet"
)

func TestCompatSimpleARecordAgreesWithMiekg(t *testing.T) {
	buf := make([]byte, 512)
	p := packet.New(buf)
	require.NoError(t, p.Init(0xbeef))
	p.SetQR(true)
	p.SetRD(true)
	require.NoError(t, p.Push(packet.Question, "www.example.com.", packet.TypeA, packet.ClassIN, 0, nil))
	require.NoError(t, p.Push(packet.Answer, "www.example.com.", packet.TypeA, packet.ClassIN, 300,
		packet.A{Addr: net.IPv4(93, 184, 216, 34)}))

	ours, err := p.Parse()
	require.NoError(t, err)

	theirs, err := Unpack(p.Bytes())
	require.NoError(t, err)

	require.Equal(t, uint16(0xbeef), theirs.Id)
	require.Len(t, theirs.Question, 1)
	require.Equal(t, ours.Question[0].Name, theirs.Question[0].Name)

	require.Len(t, theirs.Answer, 1)
	theirA, ok := theirs.Answer[0].(*dns.A)
	require.True(t, ok)

	ourRD, err := ours.Answer[0].RDATA(p)
	require.NoError(t, err)
	ourA, ok := ourRD.(packet.A)
	require.True(t, ok)

	require.True(t, ourA.Addr.Equal(theirA.A))
	require.Equal(t, uint32(300), theirA.Hdr.Ttl)
}

func TestCompatCNAMEChainAgreesWithMiekg(t *testing.T) {
	buf := make([]byte, 512)
	p := packet.New(buf)
	require.NoError(t, p.Init(1))
	p.SetQR(true)
	require.NoError(t, p.Push(packet.Question, "alias.example.com.", packet.TypeA, packet.ClassIN, 0, nil))
	require.NoError(t, p.Push(packet.Answer, "alias.example.com.", packet.TypeCNAME, packet.ClassIN, 60,
		packet.CNAME{Target: "target.example.com."}))
	require.NoError(t, p.Push(packet.Answer, "target.example.com.", packet.TypeA, packet.ClassIN, 60,
		packet.A{Addr: net.IPv4(10, 0, 0, 1)}))

	theirs, err := Unpack(p.Bytes())
	require.NoError(t, err)
	require.Len(t, theirs.Answer, 2)

	cname, ok := theirs.Answer[0].(*dns.CNAME)
	require.True(t, ok)
	require.Equal(t, "target.example.com.", cname.Target)

	a, ok := theirs.Answer[1].(*dns.A)
	require.True(t, ok)
	require.True(t, a.A.Equal(net.IPv4(10, 0, 0, 1)))
}

func TestCompatNSDelegationAgreesWithMiekg(t *testing.T) {
	buf := make([]byte, 512)
	p := packet.New(buf)
	require.NoError(t, p.Init(2))
	require.NoError(t, p.Push(packet.Question, "sub.example.com.", packet.TypeA, packet.ClassIN, 0, nil))
	require.NoError(t, p.Push(packet.Authority, "example.com.", packet.TypeNS, packet.ClassIN, 3600,
		packet.NS{Host: "ns1.example.com."}))
	require.NoError(t, p.Push(packet.Additional, "ns1.example.com.", packet.TypeA, packet.ClassIN, 3600,
		packet.A{Addr: net.IPv4(198, 51, 100, 1)}))

	theirs, err := Unpack(p.Bytes())
	require.NoError(t, err)
	require.Len(t, theirs.Ns, 1)
	ns, ok := theirs.Ns[0].(*dns.NS)
	require.True(t, ok)
	require.Equal(t, "ns1.example.com.", ns.Ns)

	require.Len(t, theirs.Extra, 1)
	glue, ok := theirs.Extra[0].(*dns.A)
	require.True(t, ok)
	require.True(t, glue.A.Equal(net.IPv4(198, 51, 100, 1)))
}

func TestCompatMXAndTXTAgreeWithMiekg(t *testing.T) {
	buf := make([]byte, 512)
	p := packet.New(buf)
	require.NoError(t, p.Init(3))
	require.NoError(t, p.Push(packet.Question, "example.com.", packet.TypeMX, packet.ClassIN, 0, nil))
	require.NoError(t, p.Push(packet.Answer, "example.com.", packet.TypeMX, packet.ClassIN, 3600,
		packet.MX{Preference: 10, Host: "mail.example.com."}))
	require.NoError(t, p.Push(packet.Answer, "example.com.", packet.TypeTXT, packet.ClassIN, 3600,
		packet.TXT{Chunks: [][]byte{[]byte("v=spf1 -all")}}))

	theirs, err := Unpack(p.Bytes())
	require.NoError(t, err)
	require.Len(t, theirs.Answer, 2)

	mx, ok := theirs.Answer[0].(*dns.MX)
	require.True(t, ok)
	require.Equal(t, uint16(10), mx.Preference)
	require.Equal(t, "mail.example.com.", mx.Mx)

	txt, ok := theirs.Answer[1].(*dns.TXT)
	require.True(t, ok)
	require.Equal(t, []string{"v=spf1 -all"}, txt.Txt)
}
