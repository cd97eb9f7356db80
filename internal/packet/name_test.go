package packet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnchor(t *testing.T) {
	require.Equal(t, ".", Anchor(""))
	require.Equal(t, "foo.bar.", Anchor("foo.bar"))
	require.Equal(t, "foo.bar.", Anchor("foo.bar."))
}

func TestCleave(t *testing.T) {
	require.Equal(t, "b.c.", Cleave("a.b.c."))
	require.Equal(t, "c.", Cleave("b.c."))
	require.Equal(t, ".", Cleave("c."))
	require.Equal(t, ".", Cleave("."))
}

func TestExpandEmptyLabelIsRoot(t *testing.T) {
	buf := make([]byte, 16)
	buf[0] = 0 // root label
	p := New(buf)
	p.SetBuf(buf)
	p.end = 1
	name, next, err := p.expandName(0)
	require.NoError(t, err)
	require.Equal(t, ".", name)
	require.Equal(t, 1, next)
}

func TestPTRNameIPv4(t *testing.T) {
	name, err := PTRName(net.ParseIP("192.0.2.5"))
	require.NoError(t, err)
	require.Equal(t, "5.2.0.192.in-addr.arpa.", name)
}

func TestPTRNameIPv6(t *testing.T) {
	ip := net.ParseIP("2001:db8::1")
	name, err := PTRName(ip)
	require.NoError(t, err)
	require.Equal(t, "ip6.arpa.", name[len(name)-9:])
	require.Equal(t, byte('1'), name[0])
}

func TestLabelTooLongRejected(t *testing.T) {
	buf := make([]byte, 512)
	p := New(buf)
	require.NoError(t, p.Init(1))

	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	err := p.Push(Question, string(long)+".com.", TypeA, ClassIN, 0, nil)
	require.ErrorIs(t, err, ErrLabelTooLong)
}
