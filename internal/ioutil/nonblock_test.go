package ioutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSetNonblockOnUDPConn(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, SetNonblock(conn))
}

func TestIsEAGAINMatchesBothSpellings(t *testing.T) {
	require.True(t, IsEAGAIN(unix.EAGAIN))
	require.True(t, IsEAGAIN(unix.EWOULDBLOCK))
	require.False(t, IsEAGAIN(unix.EINPROGRESS))
}

func TestIsEINPROGRESSMatchesOnlyThatErrno(t *testing.T) {
	require.True(t, IsEINPROGRESS(unix.EINPROGRESS))
	require.False(t, IsEINPROGRESS(unix.EAGAIN))
}
