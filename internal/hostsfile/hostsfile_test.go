package hostsfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dnsscience/resolve/internal/packet"
)

const sample = `
# a comment line
127.0.0.1   localhost loopback
::1         localhost6
10.1.2.3    box.example.com. box alias-box   # trailing comment
`

func TestLoadParsesAddressAndAliases(t *testing.T) {
	tb, err := Load(strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, 6, tb.Len())

	ans := make([]byte, 512)
	p := packet.New(ans)
	require.NoError(t, p.Init(1))
	hit, err := tb.Query(packet.Question{Name: "box.example.com.", Type: packet.TypeA, Class: packet.ClassIN}, p)
	require.NoError(t, err)
	require.True(t, hit)
}

func TestLoadSkipsBlankAndCommentOnlyLines(t *testing.T) {
	tb, err := Load(strings.NewReader("\n# nothing here\n   \n"))
	require.NoError(t, err)
	require.Equal(t, 0, tb.Len())
}

func TestLoadDetectsIPv6Family(t *testing.T) {
	tb, err := Load(strings.NewReader("::1 localhost6"))
	require.NoError(t, err)
	require.Equal(t, 1, tb.Len())
}

func TestLoadIgnoresMalformedAddress(t *testing.T) {
	tb, err := Load(strings.NewReader("not-an-ip somehost\n127.0.0.1 goodhost"))
	require.NoError(t, err)
	require.Equal(t, 1, tb.Len())
}
