package packet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMultiRRPacket(t *testing.T) *Packet {
	t.Helper()
	buf := make([]byte, 512)
	p := New(buf)
	require.NoError(t, p.Init(1))
	require.NoError(t, p.Push(Question, "example.com.", TypeA, ClassIN, 0, nil))
	require.NoError(t, p.Push(Answer, "example.com.", TypeA, ClassIN, 300, A{Addr: net.IPv4(10, 0, 0, 3)}))
	require.NoError(t, p.Push(Answer, "example.com.", TypeA, ClassIN, 300, A{Addr: net.IPv4(10, 0, 0, 1)}))
	require.NoError(t, p.Push(Answer, "example.com.", TypeA, ClassIN, 300, A{Addr: net.IPv4(10, 0, 0, 2)}))
	return p
}

func drain(t *testing.T, it *Iterator) []RR {
	t.Helper()
	var out []RR
	rr, ok, err := it.Start()
	require.NoError(t, err)
	for ok {
		out = append(out, rr)
		rr, ok, err = it.Skip(rr)
		require.NoError(t, err)
	}
	return out
}

func TestIteratorOrderCmpSortsByRDATA(t *testing.T) {
	p := buildMultiRRPacket(t)
	it := NewIterator(p, Filter{}, OrderCmp)
	rrs := drain(t, it)
	require.Len(t, rrs, 3)

	var addrs []string
	for _, rr := range rrs {
		rd, err := rr.RDATA(p)
		require.NoError(t, err)
		addrs = append(addrs, rd.(A).Addr.String())
	}
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, addrs)
}

func TestIteratorPacketCmpPreservesWriteOrder(t *testing.T) {
	p := buildMultiRRPacket(t)
	it := NewIterator(p, Filter{}, PacketCmp)
	rrs := drain(t, it)
	require.Len(t, rrs, 3)

	var addrs []string
	for _, rr := range rrs {
		rd, _ := rr.RDATA(p)
		addrs = append(addrs, rd.(A).Addr.String())
	}
	require.Equal(t, []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"}, addrs)
}

func TestIteratorFilterByType(t *testing.T) {
	buf := make([]byte, 512)
	p := New(buf)
	require.NoError(t, p.Init(1))
	require.NoError(t, p.Push(Answer, "example.com.", TypeA, ClassIN, 300, A{Addr: net.IPv4(1, 1, 1, 1)}))
	require.NoError(t, p.Push(Answer, "example.com.", TypeNS, ClassIN, 300, NS{Host: "ns1.example.com."}))

	typ := TypeNS
	it := NewIterator(p, Filter{Type: &typ}, PacketCmp)
	rrs := drain(t, it)
	require.Len(t, rrs, 1)
	require.Equal(t, TypeNS, rrs[0].Type)
}

func TestIteratorShuffleCoversAllRecords(t *testing.T) {
	p := buildMultiRRPacket(t)
	it := NewIterator(p, Filter{}, ShuffleCmp(9))
	rrs := drain(t, it)
	require.Len(t, rrs, 3)
}

func TestIteratorIsRestartable(t *testing.T) {
	p := buildMultiRRPacket(t)
	it := NewIterator(p, Filter{}, PacketCmp)
	first := drain(t, it)

	// A fresh iterator over the same packet, with no shared cursor state,
	// must reproduce the same sequence.
	it2 := NewIterator(p, Filter{}, PacketCmp)
	second := drain(t, it2)
	require.Equal(t, first, second)
}
